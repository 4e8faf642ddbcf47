package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// DomainUnit separates unit hashes from every other content hash.
const DomainUnit = "rift/unit/v1"

// Unit is one ingested input file. It cannot be changed after NewUnit.
type Unit struct {
	path   string
	lang   Language
	module string
	text   string
	hash   string
}

// NewUnit builds a unit. An empty module defaults to the sanitized file stem.
func NewUnit(path string, lang Language, module string, text []byte) *Unit {
	if module == "" {
		module = ModuleName(path)
	}
	u := &Unit{
		path:   path,
		lang:   lang,
		module: module,
		text:   string(text),
	}
	h := sha256.New()
	h.Write([]byte(DomainUnit))
	h.Write([]byte{0x00})
	h.Write([]byte(lang))
	h.Write([]byte{0x00})
	h.Write([]byte(module))
	h.Write([]byte{0x00})
	h.Write(text)
	u.hash = hex.EncodeToString(h.Sum(nil))
	return u
}

// ReadUnit loads a unit from disk. An empty lang is detected from the
// extension.
func ReadUnit(path string, lang Language, module string) (*Unit, error) {
	if lang == "" {
		detected, ok := DetectLanguage(path)
		if !ok {
			return nil, fmt.Errorf("%s: cannot detect language from extension, tag it as path:lang", path)
		}
		lang = detected
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return NewUnit(path, lang, module, data), nil
}

func (u *Unit) Path() string   { return u.path }
func (u *Unit) Lang() Language { return u.lang }
func (u *Unit) Module() string { return u.module }
func (u *Unit) Text() string   { return u.text }
func (u *Unit) Bytes() []byte  { return []byte(u.text) }
func (u *Unit) Hash() string   { return u.hash }
func (u *Unit) String() string { return fmt.Sprintf("%s (%s, module %s)", u.path, u.lang, u.module) }

// ModuleName derives a module identifier from a file path.
func ModuleName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for _, r := range stem {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" {
		return "main"
	}
	if unicode.IsDigit([]rune(name)[0]) {
		name = "_" + name
	}
	return name
}
