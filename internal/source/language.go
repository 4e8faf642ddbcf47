package source

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Language identifies an origin or target language.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
	Go         Language = "go"
	Rust       Language = "rust"
)

// Languages returns every known language in a stable order.
func Languages() []Language {
	return []Language{Python, JavaScript, Go, Rust}
}

var languageAliases = map[string]Language{
	"python":     Python,
	"py":         Python,
	"javascript": JavaScript,
	"js":         JavaScript,
	"node":       JavaScript,
	"go":         Go,
	"golang":     Go,
	"rust":       Rust,
	"rs":         Rust,
}

// ParseLanguage resolves a language tag or one of its aliases.
func ParseLanguage(s string) (Language, error) {
	if lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lang, nil
	}
	return "", fmt.Errorf("unknown language %q (want one of python, javascript, go, rust)", s)
}

// Ext returns the canonical file extension, including the dot.
func (l Language) Ext() string {
	switch l {
	case Python:
		return ".py"
	case JavaScript:
		return ".js"
	case Go:
		return ".go"
	case Rust:
		return ".rs"
	default:
		return ""
	}
}

func (l Language) String() string { return string(l) }

var extLanguages = map[string]Language{
	".py":  Python,
	".js":  JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".go":  Go,
	".rs":  Rust,
}

// DetectLanguage guesses a language from the file extension.
func DetectLanguage(path string) (Language, bool) {
	lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}
