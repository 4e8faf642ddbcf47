package ir

import (
	"io"
	"reflect"
	"regexp"

	"github.com/sanity-io/litter"
)

var dumpOptions = litter.Options{
	HideZeroValues:    true,
	StripPackageNames: true,
	FieldExclusions:   regexp.MustCompile(`^Pos$`),
	DumpFunc:          dumpKind,
}

var kindType = reflect.TypeOf(Kind(0))

func dumpKind(v reflect.Value, w io.Writer) bool {
	if v.Type() != kindType {
		return false
	}
	io.WriteString(w, Kind(v.Uint()).String())
	return true
}

// Dump renders a tree for humans. Zero-valued attributes and positions are
// omitted.
func Dump(n *Node) string {
	return dumpOptions.Sdump(n)
}

// DumpWithPositions is Dump including source positions.
func DumpWithPositions(n *Node) string {
	opts := dumpOptions
	opts.FieldExclusions = nil
	return opts.Sdump(n)
}
