// Package manifest reads .rift manifests: named fusion jobs that list inline
// or file-backed source fragments and the targets to emit, plus tasks that
// re-run rifts for other targets.
//
//	@rift shapes {
//	  @target "go"
//	  @fuse "python" geometry { "def area(r):\n    return r * r\n" }
//	  @fuse "javascript" from "lib/util.js"
//	}
//
//	@task native {
//	  @target "rust"
//	  call optimize with shapes;
//	}
//
//	call shapes;
//	call native;
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/source"
)

// Ext is the manifest file extension.
const Ext = ".rift"

// Manifest is a parsed .rift file.
type Manifest struct {
	Path  string
	Rifts []*Rift
	Tasks []*Task
	// Calls are the top-level call statements, run in order when no rift
	// or task is named.
	Calls []*Call
}

// Rift is one named fusion job.
type Rift struct {
	Name    string
	Pos     source.Pos
	Targets []source.Language
	Fuses   []*Fuse
}

// Task is a named list of calls. Targets set in a task replace those of the
// rifts it calls.
type Task struct {
	Name    string
	Pos     source.Pos
	Targets []source.Language
	Calls   []*Call
}

// ActionOptimize is the action of `call optimize with <name>;`, which runs
// the optimizer even where the configuration turns it off.
const ActionOptimize = "optimize"

// Call runs a rift or task: `call <name>;` or `call <action> with <name>;`.
type Call struct {
	Name   string // rift or task
	Action string // empty or ActionOptimize
	Pos    source.Pos
}

// Fuse is one source fragment. Exactly one of Code and From is set.
type Fuse struct {
	Lang   source.Language
	Module string // empty means the rift name
	Code   string
	From   string
	Pos    source.Pos
}

// Load reads and parses a manifest file. Syntax problems come back as
// diagnostics; err is reserved for I/O failures.
func Load(path string) (*Manifest, diag.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	m, diags := Parse(path, data)
	return m, diags, nil
}

// Parse parses manifest text. The manifest is nil when any error is
// reported.
func Parse(path string, src []byte) (*Manifest, diag.List) {
	m, diags := ParseFragment(path, src)
	if m == nil {
		return nil, diags
	}
	diags = append(diags, m.Check()...)
	if diags.HasErrors() {
		return nil, diags
	}
	return m, diags
}

// ParseFragment parses manifest text without checking that calls name a
// rift or task, for input that refers to definitions made elsewhere.
func ParseFragment(path string, src []byte) (*Manifest, diag.List) {
	p := &parser{lex: newLexer(path, string(src))}
	p.advance()
	m := &Manifest{Path: path}
	for p.tok.typ != tokEOF {
		switch p.tok.typ {
		case tokRift:
			if r := p.rift(); r != nil {
				m.Rifts = append(m.Rifts, r)
			}
		case tokTask:
			if t := p.task(); t != nil {
				m.Tasks = append(m.Tasks, t)
			}
		case tokCall:
			if c := p.call(); c != nil {
				m.Calls = append(m.Calls, c)
			}
		default:
			p.fail("@rift, @task or call", p.tok)
			p.skipTo(tokRift, tokTask, tokCall)
		}
	}
	if p.diags.HasErrors() {
		return nil, p.diags
	}
	return m, p.diags
}

// Check reports duplicate names, calls to unknown names and tasks that
// call themselves.
func (m *Manifest) Check() diag.List {
	var diags diag.List
	report := func(pos source.Pos, msg string, related ...source.Pos) {
		diags.Add(diag.Diagnostic{
			Severity: diag.Error,
			Code:     diag.CodeManifest,
			Kind:     diag.KindParse,
			Pos:      pos,
			Message:  msg,
			Related:  related,
		})
	}
	seen := make(map[string]source.Pos)
	declare := func(kind, name string, pos source.Pos) {
		if first, ok := seen[name]; ok {
			report(pos, fmt.Sprintf("duplicate %s %q", kind, name), first)
			return
		}
		seen[name] = pos
	}
	for _, r := range m.Rifts {
		declare("rift", r.Name, r.Pos)
	}
	for _, t := range m.Tasks {
		declare("task", t.Name, t.Pos)
	}

	calls := slices.Clone(m.Calls)
	for _, t := range m.Tasks {
		calls = append(calls, t.Calls...)
	}
	for _, c := range calls {
		if _, ok := seen[c.Name]; !ok {
			report(c.Pos, fmt.Sprintf("call to unknown rift or task %q", c.Name))
		}
	}
	if diags.HasErrors() {
		return diags
	}
	for _, t := range m.Tasks {
		if cycle := m.taskCycle(t, nil); cycle != nil {
			report(t.Pos, "task cycle: "+strings.Join(cycle, " -> "))
			break
		}
	}
	return diags
}

// Merge returns a manifest holding the definitions of m and then those of
// other, where other's rifts and tasks replace m's of the same name. Its
// calls are other's.
func (m *Manifest) Merge(other *Manifest) *Manifest {
	out := &Manifest{Path: m.Path, Calls: other.Calls}
	for _, r := range m.Rifts {
		if other.rift(r.Name) == nil {
			out.Rifts = append(out.Rifts, r)
		}
	}
	out.Rifts = append(out.Rifts, other.Rifts...)
	for _, t := range m.Tasks {
		if other.task(t.Name) == nil {
			out.Tasks = append(out.Tasks, t)
		}
	}
	out.Tasks = append(out.Tasks, other.Tasks...)
	return out
}

func (m *Manifest) rift(name string) *Rift {
	for _, r := range m.Rifts {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// taskCycle returns the chain of task names that leads back to t, if any.
func (m *Manifest) taskCycle(t *Task, path []string) []string {
	if slices.Contains(path, t.Name) {
		return append(path, t.Name)
	}
	path = append(path, t.Name)
	for _, c := range t.Calls {
		if inner := m.task(c.Name); inner != nil {
			if cycle := m.taskCycle(inner, path); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func (m *Manifest) task(name string) *Task {
	for _, t := range m.Tasks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Rift returns the rift with the given name, or the only rift when name is
// empty.
func (m *Manifest) Rift(name string) (*Rift, error) {
	if name == "" {
		if len(m.Rifts) != 1 {
			return nil, fmt.Errorf("%s: %d rifts defined, choose one with --name", m.Path, len(m.Rifts))
		}
		return m.Rifts[0], nil
	}
	for _, r := range m.Rifts {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%s: no rift named %q", m.Path, name)
}

// Run is one rift to fuse, as scheduled by a call.
type Run struct {
	Rift     *Rift
	Targets  []source.Language // from the nearest task that sets any, else the rift's
	Optimize bool
	Task     string // innermost task that scheduled the run
}

// Plan lists the runs for name. A rift runs once and a task runs its calls
// in order. An empty name runs the top-level calls, or the only rift when
// there are none.
func (m *Manifest) Plan(name string) ([]Run, error) {
	if name == "" && len(m.Calls) > 0 {
		var runs []Run
		for _, c := range m.Calls {
			more, err := m.expand(c.Name, nil, c.Action == ActionOptimize, "", nil)
			if err != nil {
				return nil, err
			}
			runs = append(runs, more...)
		}
		return runs, nil
	}
	if name != "" && m.task(name) != nil {
		return m.expand(name, nil, false, "", nil)
	}
	r, err := m.Rift(name)
	if err != nil {
		return nil, err
	}
	return []Run{{Rift: r, Targets: r.Targets}}, nil
}

func (m *Manifest) expand(name string, targets []source.Language, optimize bool, task string, stack []string) ([]Run, error) {
	if t := m.task(name); t != nil {
		if slices.Contains(stack, name) {
			return nil, fmt.Errorf("%s: task cycle through %q", m.Path, name)
		}
		if len(t.Targets) > 0 {
			targets = t.Targets
		}
		var runs []Run
		for _, c := range t.Calls {
			more, err := m.expand(c.Name, targets, optimize || c.Action == ActionOptimize, t.Name, append(stack, name))
			if err != nil {
				return nil, err
			}
			runs = append(runs, more...)
		}
		return runs, nil
	}
	for _, r := range m.Rifts {
		if r.Name == name {
			if len(targets) == 0 {
				targets = r.Targets
			}
			return []Run{{Rift: r, Targets: slices.Clone(targets), Optimize: optimize, Task: task}}, nil
		}
	}
	return nil, fmt.Errorf("%s: no rift or task named %q", m.Path, name)
}

// Units turns the rift's fragments into source units. Inline fragments are
// labelled <manifest>#<rift>.<n><ext>; file fragments resolve relative to
// the manifest's directory.
func (r *Rift) Units(manifestPath string) ([]*source.Unit, error) {
	dir := filepath.Dir(manifestPath)
	units := make([]*source.Unit, 0, len(r.Fuses))
	for i, f := range r.Fuses {
		module := f.Module
		if module == "" {
			module = r.Name
		}
		if f.From == "" {
			label := fmt.Sprintf("%s#%s.%d%s", manifestPath, r.Name, i+1, f.Lang.Ext())
			units = append(units, source.NewUnit(label, f.Lang, module, []byte(f.Code)))
			continue
		}
		path := f.From
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		u, err := source.ReadUnit(path, f.Lang, module)
		if err != nil {
			return nil, fmt.Errorf("%s: fuse %d: %w", f.Pos, i+1, err)
		}
		units = append(units, u)
	}
	return units, nil
}
