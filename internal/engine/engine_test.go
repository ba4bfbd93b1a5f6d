package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rebuild/internal/compiler"
	"rebuild/internal/config"
	"rebuild/internal/extract"
	"rebuild/internal/scan"
)

type fakeCompiler struct {
	calls [][]string
	fail  bool
	err   error
}

func (f *fakeCompiler) Compile(_ context.Context, unitPaths []string, _ compiler.Options) (compiler.Result, error) {
	f.calls = append(f.calls, append([]string(nil), unitPaths...))
	if f.err != nil {
		return compiler.Result{}, f.err
	}
	if f.fail {
		return compiler.Result{Success: false, Diagnostics: "B.java:3: cannot find symbol"}, nil
	}
	return compiler.Result{Success: true}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.SourceRoot = filepath.Join(root, "src")
	cfg.ArtifactDir = filepath.Join(root, "bin")
	cfg.DepsDir = filepath.Join(root, ".deps")
	cfg.HashStore = filepath.Join(root, ".rebuild", "hashes.json")
	require.NoError(t, os.MkdirAll(cfg.SourceRoot, 0755))
	return cfg
}

func writeUnit(t *testing.T, cfg *config.Config, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceRoot, name), []byte(content), 0644))
}

func newEngine(t *testing.T, cfg *config.Config, comp compiler.Compiler) *Engine {
	t.Helper()
	e, err := New(cfg, &extract.ScanExtractor{}, comp)
	require.NoError(t, err)
	return e
}

func TestRun_FirstBuildCompilesEverything(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A { B b; }")
	writeUnit(t, cfg, "B.java", "public class B {}")

	comp := &fakeCompiler{}
	e := newEngine(t, cfg, comp)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Scanned)
	require.Equal(t, []string{"A.java", "B.java"}, res.Changed)
	require.Equal(t, []string{"A.java", "B.java"}, res.Impacted)
	require.True(t, res.Built)
	require.Len(t, comp.calls, 1)
	require.ElementsMatch(t, []string{
		filepath.Join(cfg.SourceRoot, "A.java"),
		filepath.Join(cfg.SourceRoot, "B.java"),
	}, comp.calls[0])
}

func TestRun_UnchangedIsNoop(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A {}")

	comp := &fakeCompiler{}
	e := newEngine(t, cfg, comp)

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Changed)
	require.Empty(t, res.Impacted)
	require.False(t, res.Built)
	require.True(t, res.NoChanges())
	require.Len(t, comp.calls, 1)
}

func TestRun_EditRebuildsDependents(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A {}")
	writeUnit(t, cfg, "B.java", "public class B { A a; }")
	writeUnit(t, cfg, "C.java", "public class C {}")

	comp := &fakeCompiler{}
	e := newEngine(t, cfg, comp)
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	writeUnit(t, cfg, "A.java", "public class A { int x; }")

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A.java"}, res.Changed)
	require.Equal(t, []string{"A.java", "B.java"}, res.Impacted)
	require.NotContains(t, res.Impacted, "C.java")
}

func TestRun_TransitiveImpact(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A {}")
	writeUnit(t, cfg, "B.java", "public class B extends A {}")
	writeUnit(t, cfg, "C.java", "public class C extends B {}")

	comp := &fakeCompiler{}
	e := newEngine(t, cfg, comp)
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	writeUnit(t, cfg, "A.java", "public class A { int x; }")

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A.java", "B.java", "C.java"}, res.Impacted)
}

func TestRun_DeleteCleansUpState(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A {}")
	writeUnit(t, cfg, "B.java", "public class B {}")

	e := newEngine(t, cfg, &fakeCompiler{})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	// Simulate an artifact from the successful build.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ArtifactDir, "B.class"), []byte{0xCA, 0xFE}, 0644))
	require.FileExists(t, filepath.Join(cfg.DepsDir, "B.java.deps"))

	require.NoError(t, os.Remove(filepath.Join(cfg.SourceRoot, "B.java")))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"B.java"}, res.Deleted)
	require.NoFileExists(t, filepath.Join(cfg.ArtifactDir, "B.class"))
	require.NoFileExists(t, filepath.Join(cfg.DepsDir, "B.java.deps"))

	// A fresh engine reloads the store from disk; the deleted unit must not
	// resurface as deleted again.
	res2, err := newEngine(t, cfg, &fakeCompiler{}).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, res2.Deleted)
}

func TestRun_DanglingImportWarnPolicyContinues(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dangling = "warn"
	writeUnit(t, cfg, "A.java", "import util.B;\npublic class A {}")
	writeUnit(t, cfg, "B.java", "public class B {}")

	e := newEngine(t, cfg, &fakeCompiler{})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(cfg.SourceRoot, "B.java")))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []DanglingRef{{Unit: "A.java", Target: "B.java"}}, res.Dangling)
}

func TestRun_DanglingImportErrorPolicyAborts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dangling = "error"
	writeUnit(t, cfg, "A.java", "import util.B;\npublic class A {}")
	writeUnit(t, cfg, "B.java", "public class B {}")

	comp := &fakeCompiler{}
	e := newEngine(t, cfg, comp)
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	callsAfterFirst := len(comp.calls)

	require.NoError(t, os.Remove(filepath.Join(cfg.SourceRoot, "B.java")))

	_, err = e.Run(context.Background())
	require.ErrorIs(t, err, ErrDanglingRefs)
	require.Len(t, comp.calls, callsAfterFirst)
}

func TestRun_FailedBuildDoesNotCommitDigests(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A {}")

	comp := &fakeCompiler{fail: true}
	e := newEngine(t, cfg, comp)

	res, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrBuildFailed)
	require.True(t, res.Built)
	require.Contains(t, res.Diagnostics, "cannot find symbol")

	// Without any edit the same units stay impacted until a build succeeds.
	comp.fail = false
	res2, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A.java"}, res2.Impacted)

	res3, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, res3.Impacted)
}

func TestRun_CompilerInvocationErrorAborts(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A {}")

	comp := &fakeCompiler{err: errors.New("javac not found")}
	e := newEngine(t, cfg, comp)

	res, err := e.Run(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBuildFailed)
	require.False(t, res.Built)
}

func TestRun_SuccessPersistsAcrossEngines(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A {}")

	_, err := newEngine(t, cfg, &fakeCompiler{}).Run(context.Background())
	require.NoError(t, err)

	comp := &fakeCompiler{}
	res, err := newEngine(t, cfg, comp).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Impacted)
	require.Empty(t, comp.calls)
}

func TestRun_OnImpactedFiresBeforeCompile(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A {}")

	comp := &fakeCompiler{}
	e := newEngine(t, cfg, comp)

	var seen []string
	var callsAtNotify int
	e.OnImpacted = func(impacted []string) {
		seen = append([]string(nil), impacted...)
		callsAtNotify = len(comp.calls)
	}

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A.java"}, seen)
	require.Zero(t, callsAtNotify)
}

func TestRun_ExtractionFailureDegradesToNoRefs(t *testing.T) {
	cfg := testConfig(t)
	writeUnit(t, cfg, "A.java", "public class A {}")

	e, err := New(cfg, failingExtractor{}, &fakeCompiler{})
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A.java"}, res.Impacted)
}

type failingExtractor struct{}

func (failingExtractor) Extract(_ scan.Unit, _ []byte, _ map[string]string) (extract.Result, error) {
	return extract.Result{}, errors.New("parse failed")
}
