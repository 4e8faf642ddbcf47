package manifest

import (
	"strings"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/source"
)

type parser struct {
	lex   *lexer
	tok   token
	diags diag.List
}

func (p *parser) advance() token {
	prev := p.tok
	p.tok = p.lex.next()
	return prev
}

func (p *parser) fail(expected string, found token) {
	f := found.describe()
	if found.typ == tokIllegal {
		f = "illegal " + f
	}
	p.diags.Append(&diag.ParseError{Pos: found.pos, Expected: expected, Found: f, Code: diag.CodeManifest})
}

func (p *parser) expect(tt tokenType) (token, bool) {
	if p.tok.typ != tt {
		p.fail(tt.String(), p.tok)
		return p.tok, false
	}
	return p.advance(), true
}

// skipTo discards tokens until one of types (or EOF) is current.
func (p *parser) skipTo(types ...tokenType) {
	for p.tok.typ != tokEOF {
		for _, t := range types {
			if p.tok.typ == t {
				return
			}
		}
		p.advance()
	}
}

// rift parses `@rift name { item* }`.
func (p *parser) rift() *Rift {
	start := p.advance()
	name, ok := p.expect(tokIdent)
	if !ok {
		p.skipTo(tokRift, tokTask, tokCall)
		return nil
	}
	if _, ok := p.expect(tokLBrace); !ok {
		p.skipTo(tokRift, tokTask, tokCall)
		return nil
	}
	r := &Rift{Name: name.text, Pos: start.pos}
	errs := len(p.diags)
	for p.tok.typ != tokRBrace {
		switch p.tok.typ {
		case tokTarget:
			p.target(r)
		case tokFuse:
			p.fuse(r)
		case tokSemi:
			p.advance()
		case tokEOF:
			p.fail("} closing @rift "+r.Name, p.tok)
			return nil
		default:
			p.fail("@target, @fuse or }", p.tok)
			p.skipTo(tokTarget, tokFuse, tokRBrace, tokRift, tokTask)
			if p.tok.typ == tokRift || p.tok.typ == tokTask {
				return nil
			}
		}
	}
	p.advance()
	if len(r.Fuses) == 0 {
		p.diags.Append(&diag.ParseError{Pos: r.Pos, Expected: "at least one @fuse", Found: "an empty rift", Code: diag.CodeManifest})
	}
	if len(p.diags) > errs {
		return nil
	}
	return r
}

// task parses `@task name { (@target "lang" | call)* }`.
func (p *parser) task() *Task {
	start := p.advance()
	name, ok := p.expect(tokIdent)
	if !ok {
		p.skipTo(tokRift, tokTask, tokCall)
		return nil
	}
	if _, ok := p.expect(tokLBrace); !ok {
		p.skipTo(tokRift, tokTask, tokCall)
		return nil
	}
	t := &Task{Name: name.text, Pos: start.pos}
	errs := len(p.diags)
	for p.tok.typ != tokRBrace {
		switch p.tok.typ {
		case tokTarget:
			p.advance()
			tok, ok := p.expect(tokString)
			if !ok {
				p.skipTo(tokTarget, tokCall, tokRBrace)
				continue
			}
			if lang, ok := p.language(tok); ok {
				t.Targets = append(t.Targets, lang)
			}
		case tokCall:
			if c := p.call(); c != nil {
				t.Calls = append(t.Calls, c)
			}
		case tokSemi:
			p.advance()
		case tokEOF:
			p.fail("} closing @task "+t.Name, p.tok)
			return nil
		default:
			p.fail("@target, call or }", p.tok)
			p.skipTo(tokTarget, tokCall, tokRBrace, tokRift, tokTask)
			if p.tok.typ == tokRift || p.tok.typ == tokTask {
				return nil
			}
		}
	}
	p.advance()
	if len(t.Calls) == 0 {
		p.diags.Append(&diag.ParseError{Pos: t.Pos, Expected: "at least one call", Found: "an empty task", Code: diag.CodeManifest})
	}
	if len(p.diags) > errs {
		return nil
	}
	return t
}

// call parses `call name;` or `call action with name;`.
func (p *parser) call() *Call {
	start := p.advance()
	name, ok := p.expect(tokIdent)
	if !ok {
		p.skipTo(tokSemi, tokRBrace, tokRift, tokTask, tokCall)
		return nil
	}
	c := &Call{Name: name.text, Pos: start.pos}
	if p.tok.typ == tokWith {
		p.advance()
		if name.text != ActionOptimize {
			p.fail("an action ("+ActionOptimize+")", name)
			p.skipTo(tokSemi, tokRBrace, tokRift, tokTask, tokCall)
			return nil
		}
		target, ok := p.expect(tokIdent)
		if !ok {
			p.skipTo(tokSemi, tokRBrace, tokRift, tokTask, tokCall)
			return nil
		}
		c.Action, c.Name = name.text, target.text
	}
	if _, ok := p.expect(tokSemi); !ok {
		p.skipTo(tokSemi, tokRBrace, tokRift, tokTask, tokCall)
		return nil
	}
	return c
}

func (p *parser) language(tok token) (source.Language, bool) {
	lang, err := source.ParseLanguage(tok.text)
	if err != nil {
		p.fail("a language (python, javascript, go, rust)", tok)
		return "", false
	}
	return lang, true
}

// target parses `@target "lang"`.
func (p *parser) target(r *Rift) {
	p.advance()
	tok, ok := p.expect(tokString)
	if !ok {
		p.skipTo(tokTarget, tokFuse, tokRBrace)
		return
	}
	if lang, ok := p.language(tok); ok {
		r.Targets = append(r.Targets, lang)
	}
}

// fuse parses `@fuse "lang" [module] { "code"... }` or
// `@fuse "lang" [module] from "path"`.
func (p *parser) fuse(r *Rift) {
	start := p.advance()
	tok, ok := p.expect(tokString)
	if !ok {
		p.skipTo(tokTarget, tokFuse, tokRBrace)
		return
	}
	lang, ok := p.language(tok)
	if !ok {
		p.skipTo(tokTarget, tokFuse, tokRBrace)
		return
	}
	f := &Fuse{Lang: lang, Pos: start.pos}
	if p.tok.typ == tokIdent {
		f.Module = strings.ReplaceAll(p.advance().text, "-", "_")
	}
	switch p.tok.typ {
	case tokFrom:
		p.advance()
		path, ok := p.expect(tokString)
		if !ok {
			p.skipTo(tokTarget, tokFuse, tokRBrace)
			return
		}
		if path.text == "" {
			p.fail("a file path", path)
			return
		}
		f.From = path.text
	case tokLBrace:
		p.advance()
		var code strings.Builder
		for p.tok.typ == tokString {
			code.WriteString(p.advance().text)
		}
		if _, ok := p.expect(tokRBrace); !ok {
			p.skipTo(tokTarget, tokFuse, tokRBrace)
			return
		}
		f.Code = code.String()
	default:
		p.fail("{ or from", p.tok)
		p.skipTo(tokTarget, tokFuse, tokRBrace)
		return
	}
	r.Fuses = append(r.Fuses, f)
}
