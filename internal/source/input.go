package source

import (
	"fmt"
	"strings"
)

// Input is a parsed command-line input argument of the form
// path[:lang[:module]].
type Input struct {
	Path   string
	Lang   Language
	Module string
}

// ParseInput splits an input argument. The language is detected from the
// extension when it is not given.
func ParseInput(arg string) (Input, error) {
	parts := strings.SplitN(arg, ":", 3)
	in := Input{Path: parts[0]}
	if in.Path == "" {
		return Input{}, fmt.Errorf("input %q: empty path", arg)
	}
	if len(parts) > 1 && parts[1] != "" {
		lang, err := ParseLanguage(parts[1])
		if err != nil {
			return Input{}, fmt.Errorf("input %q: %w", arg, err)
		}
		in.Lang = lang
	}
	if len(parts) > 2 {
		in.Module = parts[2]
	}
	if in.Lang == "" {
		lang, ok := DetectLanguage(in.Path)
		if !ok {
			return Input{}, fmt.Errorf("input %q: cannot detect language, use path:lang", arg)
		}
		in.Lang = lang
	}
	return in, nil
}

// Read loads the unit the input points at.
func (in Input) Read() (*Unit, error) {
	return ReadUnit(in.Path, in.Lang, in.Module)
}
