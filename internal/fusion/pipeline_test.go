package fusion

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/rift/internal/diag"
	"github.com/roach88/rift/internal/ir"
	"github.com/roach88/rift/internal/manifest"
	"github.com/roach88/rift/internal/optimize"
	"github.com/roach88/rift/internal/source"
	"github.com/roach88/rift/internal/store"
	"github.com/roach88/rift/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	geometryPy = "def area(w: int, h: int) -> int:\n    return w * h\n"
	mainGo     = `package main

import (
	"fmt"
	"geometry"
)

func main() {
	fmt.Println(geometry.area(3, 4))
}
`
)

func unit(path, module, text string) *source.Unit {
	lang, _ := source.DetectLanguage(path)
	return source.NewUnit(path, lang, module, []byte(text))
}

func shapesJob(targets ...source.Language) *Job {
	return NewJob("shapes", []*source.Unit{
		unit("geometry.py", "", geometryPy),
		unit("main.go", "", mainGo),
	}, targets)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunFusesAcrossLanguages(t *testing.T) {
	res, err := New(Options{}).Run(context.Background(), shapesJob(source.Go, source.Python))
	require.NoError(t, err)
	require.True(t, res.OK(), res.Diags.Format())

	assert.Equal(t, StageEmit, res.Stage)
	assert.Equal(t, "shapes", res.Program.Name)
	assert.NotEmpty(t, res.Fingerprint)
	require.NotNil(t, res.Optimizer)
	require.Len(t, res.Artifacts, 2)

	goOut, pyOut := res.Artifacts[0], res.Artifacts[1]
	assert.Equal(t, source.Go, goOut.Target)
	assert.Equal(t, "shapes.go", goOut.FileName)
	assert.Contains(t, goOut.Text, "package main")
	assert.Contains(t, goOut.Text, "func area(w int, h int) int")
	assert.Equal(t, source.Python, pyOut.Target)
	assert.Contains(t, pyOut.Text, "def area(w: int, h: int) -> int:")
	assert.Contains(t, pyOut.Text, "main()\n")
}

func TestRunStopsOnParseErrors(t *testing.T) {
	job := NewJob("broken", []*source.Unit{
		unit("bad.py", "", "def f(:\n    return 1\n"),
		unit("main.go", "", mainGo),
	}, []source.Language{source.Go})

	res, err := New(Options{}).Run(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, StageParse, res.Stage)
	assert.NotEmpty(t, res.Diags.ByCode(diag.CodeParse))
	assert.Nil(t, res.Program, "no unification on broken fragments")
	assert.Empty(t, res.Artifacts)
}

func TestRunReportsExactlyOneConflict(t *testing.T) {
	job := NewJob("clash", []*source.Unit{
		unit("a.py", "shared", "def foo(a, b):\n    return a\n"),
		unit("b.js", "shared", "function foo(a) { return a; }\n"),
	}, []source.Language{source.Python})

	res, err := New(Options{}).Run(context.Background(), job)
	require.NoError(t, err)
	conflicts := res.Diags.ByCode(diag.CodeConflict)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "a.py", conflicts[0].Pos.File)
	assert.Equal(t, []source.Pos{{File: "b.js", Line: 1, Col: 1}}, conflicts[0].Related)
	assert.Equal(t, StageUnify, res.Stage)
	assert.Empty(t, res.Artifacts)
}

func TestRunUnsupportedConstructIsADiagnostic(t *testing.T) {
	job := NewJob("pow", []*source.Unit{
		unit("p.py", "", "def sq(a):\n    return a ** 2\n"),
	}, []source.Language{source.Python, source.Go})

	res, err := New(Options{}).Run(context.Background(), job)
	require.NoError(t, err)
	unsupported := res.Diags.ByCode(diag.CodeUnsupported)
	require.Len(t, unsupported, 1)
	assert.Contains(t, unsupported[0].Message, "go")
	assert.Empty(t, res.Artifacts, "emitters are fail-fast across targets")
}

func TestRunToStopsAtEachStage(t *testing.T) {
	p := New(Options{})
	tests := []struct {
		stage     Stage
		fragments bool
		program   bool
		optimized bool
	}{
		{StageParse, true, false, false},
		{StageUnify, false, true, false},
		{StageOptimize, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			res, err := p.RunTo(context.Background(), shapesJob(source.Go), tt.stage)
			require.NoError(t, err)
			assert.Equal(t, tt.stage, res.Stage)
			assert.Equal(t, tt.fragments, len(res.Fragments) == 2)
			assert.Equal(t, tt.program, res.Program != nil)
			assert.Equal(t, tt.optimized, res.Optimizer != nil)
			assert.Empty(t, res.Artifacts)
		})
	}
}

func TestRunDisableOptimize(t *testing.T) {
	res, err := New(Options{DisableOptimize: true}).Run(context.Background(), shapesJob(source.Go))
	require.NoError(t, err)
	assert.Nil(t, res.Optimizer)
	assert.Contains(t, res.Artifacts[0].Text, "area(3, 4)")

	job := shapesJob(source.Go)
	job.Optimize = true
	res, err = New(Options{DisableOptimize: true}).Run(context.Background(), job)
	require.NoError(t, err)
	require.NotNil(t, res.Optimizer, "a job asking for the optimizer gets it")
	assert.Contains(t, res.Artifacts[0].Text, "fmt.Println(12)")
}

func TestRunIsIdempotentOverOptimizedPrograms(t *testing.T) {
	p := New(Options{})
	first, err := p.RunTo(context.Background(), shapesJob(), StageOptimize)
	require.NoError(t, err)

	again := ir.Clone(first.Program)
	_, err = optimize.Optimize(context.Background(), again, optimize.Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, ir.MustFingerprint(again))
}

func TestRunUsesArtifactCache(t *testing.T) {
	s := openStore(t)
	p := New(Options{Store: s})
	ctx := context.Background()

	first, err := p.Run(ctx, shapesJob(source.Go, source.JavaScript))
	require.NoError(t, err)
	assert.Zero(t, first.CacheHits)

	second, err := p.Run(ctx, shapesJob(source.Go, source.JavaScript))
	require.NoError(t, err)
	assert.Equal(t, 2, second.CacheHits)
	for i := range first.Artifacts {
		assert.Equal(t, *first.Artifacts[i], *second.Artifacts[i])
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Artifacts)
	assert.Equal(t, 2, stats.Runs)

	runs, err := s.ListRuns(ctx, store.RunFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunOK, runs[0].Status)
	assert.Equal(t, 2, runs[0].CacheHits)
	assert.Equal(t, []string{"go", "javascript"}, runs[0].Targets)
	assert.Equal(t, second.Fingerprint, runs[0].ProgramHash)
}

func TestRunRecordsDiagnosticRuns(t *testing.T) {
	s := openStore(t)
	job := NewJob("broken", []*source.Unit{unit("bad.py", "", "x = (\n")}, []source.Language{source.Go})

	_, err := New(Options{Store: s}).Run(context.Background(), job)
	require.NoError(t, err)

	runs, err := s.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunError, runs[0].Status)
	assert.Equal(t, job.ID, runs[0].ID)
	assert.Positive(t, runs[0].Errors)
}

func TestRunNonConvergence(t *testing.T) {
	s := openStore(t)
	restless := optimize.NewPass("restless", func(*ir.Node) bool { return true })
	p := New(Options{Store: s, Passes: []optimize.Pass{restless}, MaxIterations: 3})

	res, err := p.Run(context.Background(), shapesJob(source.Go))
	var nc *diag.NonConvergenceError
	require.True(t, errors.As(err, &nc), "got %v", err)
	assert.Equal(t, "restless", nc.Pass)
	require.NotNil(t, res)
	assert.Empty(t, res.Artifacts)

	runs, err := s.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunFailed, runs[0].Status)
}

func TestRunCancelledLeavesNoArtifacts(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(Options{Store: s}).Run(ctx, shapesJob(source.Go))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Artifacts)
	assert.Zero(t, stats.Runs, "cancelled runs are not recorded")
}

func TestRunCancelledBetweenPasses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := optimize.NewPass("stop", func(*ir.Node) bool {
		cancel()
		return false
	})
	p := New(Options{Passes: []optimize.Pass{stop, optimize.DefaultPasses()[0]}})

	res, err := p.Run(ctx, shapesJob(source.Go))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestJobValidate(t *testing.T) {
	_, err := New(Options{}).Run(context.Background(), NewJob("empty", nil, nil))
	assert.ErrorContains(t, err, "no source units")

	_, err = New(Options{}).Run(context.Background(), NewJob("", []*source.Unit{unit("a.py", "", "x = 1\n")}, nil))
	assert.ErrorContains(t, err, "empty name")
}

func TestNewJobDropsDuplicateTargets(t *testing.T) {
	j := NewJob("x", nil, []source.Language{source.Go, source.Rust, source.Go})
	assert.Equal(t, []source.Language{source.Go, source.Rust}, j.Targets)
	assert.Empty(t, j.ID)
}

func TestRunAssignsJobIDs(t *testing.T) {
	s := openStore(t)
	p := New(Options{Store: s, IDs: testutil.NewSequenceIDs("job")})

	first := shapesJob(source.Go)
	_, err := p.Run(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "job-1", first.ID)

	preset := shapesJob(source.Go)
	preset.ID = "mine"
	_, err = p.Run(context.Background(), preset)
	require.NoError(t, err)
	assert.Equal(t, "mine", preset.ID)

	runs, err := s.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "mine", runs[0].ID)
	assert.Equal(t, "job-1", runs[1].ID)
}

func TestUUIDv7Generator(t *testing.T) {
	id, err := uuid.Parse(UUIDv7Generator{}.Generate())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	job := shapesJob(source.Go)
	_, err = New(Options{}).Run(context.Background(), job)
	require.NoError(t, err)
	id, err = uuid.Parse(job.ID)
	require.NoError(t, err, "default job IDs are UUIDs")
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestJobsFromManifest(t *testing.T) {
	src := `@rift shapes {
  @target "go"
  @fuse "python" geometry { "def area(w: int, h: int) -> int:\n    return w * h\n" }
}`
	m, diags := manifest.Parse("shapes.rift", []byte(src))
	require.False(t, diags.HasErrors(), diags.Format())

	jobs, err := JobsFromManifest(m, "", []source.Language{source.Rust, source.Go})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, "shapes", job.Name)
	assert.Equal(t, []source.Language{source.Go, source.Rust}, job.Targets)
	assert.False(t, job.Optimize)
	require.Len(t, job.Units, 1)
	assert.Equal(t, "geometry", job.Units[0].Module())
}

func TestJobsFromManifestTasks(t *testing.T) {
	src := `@rift shapes {
  @target "go"
  @fuse "python" geometry { "def area(w: int, h: int) -> int:\n    return w * h\n" }
}

@task scripts {
  @target "js"
  @target "py"
  call optimize with shapes;
}

call shapes;
call scripts;
`
	m, diags := manifest.Parse("shapes.rift", []byte(src))
	require.False(t, diags.HasErrors(), diags.Format())

	jobs, err := JobsFromManifest(m, "", nil)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, []source.Language{source.Go}, jobs[0].Targets)
	assert.False(t, jobs[0].Optimize)
	assert.Equal(t, []source.Language{source.JavaScript, source.Python}, jobs[1].Targets)
	assert.True(t, jobs[1].Optimize)
	assert.NotSame(t, jobs[0].Units[0], jobs[1].Units[0], "each run reads its own units")

	jobs, err = JobsFromManifest(m, "scripts", nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "shapes", jobs[0].Name)
}

func TestParseStage(t *testing.T) {
	for _, s := range []Stage{StageParse, StageUnify, StageOptimize, StageEmit} {
		got, err := ParseStage(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStage("lowered")
	assert.Error(t, err)
}
