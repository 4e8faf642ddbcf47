package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/source"
)

// parseTree runs a fresh parser; tree-sitter parsers are not safe to share
// between goroutines.
func parseTree(ctx context.Context, grammar *sitter.Language, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)
	return parser.ParseCtx(ctx, nil, src)
}

// lowerer carries what every language lowering needs: the unit, its bytes and
// the diagnostics collected so far.
type lowerer struct {
	unit  *source.Unit
	src   []byte
	diags diag.List
}

func newLowerer(unit *source.Unit) *lowerer {
	return &lowerer{unit: unit, src: unit.Bytes()}
}

func (l *lowerer) text(n *sitter.Node) string {
	return n.Content(l.src)
}

func (l *lowerer) pos(n *sitter.Node) source.Pos {
	p := n.StartPoint()
	return source.Pos{File: l.unit.Path(), Line: int(p.Row) + 1, Col: int(p.Column) + 1}
}

// unsupported records a construct outside the lowered subset and returns nil
// so callers can `return l.unsupported(...)`.
func (l *lowerer) unsupported(n *sitter.Node, expected string) *ir.Node {
	l.diags.Append(&diag.ParseError{
		Pos:      l.pos(n),
		Expected: expected,
		Found:    describe(n, l.src),
	})
	return nil
}

// syntaxErrors reports every ERROR and MISSING node. It returns true when
// the tree had any.
func (l *lowerer) syntaxErrors(root *sitter.Node) bool {
	if !root.HasError() {
		return false
	}
	found := false
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch {
		case n.Type() == "ERROR":
			found = true
			l.diags.Append(&diag.ParseError{
				Pos:      l.pos(n),
				Expected: fmt.Sprintf("valid %s syntax", l.unit.Lang()),
				Found:    quoteSnippet(l.text(n)),
			})
			return
		case n.IsMissing():
			found = true
			l.diags.Append(&diag.ParseError{
				Pos:      l.pos(n),
				Expected: strconv.Quote(n.Type()),
				Found:    "nothing",
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)
	return found
}

// newModule starts the fragment root for the unit.
func (l *lowerer) newModule() *ir.Node {
	return &ir.Node{
		Kind: ir.KindModule,
		Name: l.unit.Module(),
		Lang: l.unit.Lang(),
		Pos:  source.Pos{File: l.unit.Path(), Line: 1, Col: 1},
	}
}

// finish tags top-level children with the origin language and returns the
// module, or nil when lowering reported errors.
func (l *lowerer) finish(mod *ir.Node) (*ir.Node, diag.List) {
	if l.diags.HasErrors() {
		return nil, l.diags
	}
	for _, c := range mod.Children {
		c.Lang = l.unit.Lang()
	}
	return mod, l.diags
}

// named returns the named children of n, skipping comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func describe(n *sitter.Node, src []byte) string {
	return fmt.Sprintf("%s %s", n.Type(), quoteSnippet(n.Content(src)))
}

func quoteSnippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "..."
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return strconv.Quote(s)
}

// parseIntLiteral accepts Go-style prefixes and underscores, which covers
// the integer syntax of every adapted language.
func parseIntLiteral(text string) (int64, error) {
	text = strings.ToLower(text)
	if len(text) > 1 && text[0] == '0' && text[1] >= '0' && text[1] <= '9' {
		// legacy octal (0755) is not accepted by every language
		if strings.Trim(text, "0_") != "" {
			return 0, fmt.Errorf("ambiguous octal literal %q", text)
		}
	}
	return strconv.ParseInt(text, 0, 64)
}

// normalizeFloat removes separators and adds a leading zero so the literal
// is valid in every target.
func normalizeFloat(text string) string {
	text = strings.ReplaceAll(text, "_", "")
	if strings.HasPrefix(text, ".") {
		text = "0" + text
	}
	return text
}

// decodeEscapes resolves backslash escapes shared by Python and JavaScript
// string literals. Unknown escapes are kept verbatim.
func decodeEscapes(body string) (string, error) {
	if !strings.Contains(body, `\`) {
		return body, nil
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"':
			b.WriteByte(e)
		case '\n':
			// line continuation
		case 'x':
			r, n, err := hexRune(body[i+1:], 2)
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		case 'u':
			if i+1 < len(body) && body[i+1] == '{' {
				end := strings.IndexByte(body[i:], '}')
				if end < 0 {
					return "", fmt.Errorf("unterminated \\u{...} escape")
				}
				r, _, err := hexRune(body[i+2:i+end], end-2)
				if err != nil {
					return "", err
				}
				b.WriteRune(r)
				i += end
				continue
			}
			r, n, err := hexRune(body[i+1:], 4)
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		case 'U':
			r, n, err := hexRune(body[i+1:], 8)
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}

func hexRune(s string, digits int) (rune, int, error) {
	if len(s) < digits || digits == 0 {
		return 0, 0, fmt.Errorf("short escape %q", s)
	}
	v, err := strconv.ParseUint(s[:digits], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("bad escape %q", s[:digits])
	}
	return rune(v), digits, nil
}
