package bundler

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// newProject writes files (relative path → contents) into a temp dir and
// returns a default configuration rooted there.
func newProject(t *testing.T, files map[string]string) buildcfg.Config {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	s := buildcfg.DefaultSettings()
	s.WorkingDir = dir

	cfg, err := buildcfg.New(s)
	require.NoError(t, err)

	return cfg
}

// ---------------------------------------------------------------------------
// Rebuild
// ---------------------------------------------------------------------------

func TestRebuild_WritesBundleAndSourcemap(t *testing.T) {
	cfg := newProject(t, map[string]string{
		"src/index.js": "import { greet } from './greet.ts'\nconsole.log(greet('world'))\n",
		"src/greet.ts": "export function greet(name: string): string { return `hello ${name}` }\n",
	})

	c, err := Open(cfg, nil)
	require.NoError(t, err)
	defer c.Dispose()

	res := c.Rebuild()
	require.NoError(t, res.Err())

	for _, p := range cfg.OutputPaths() {
		assert.FileExists(t, p)
	}

	require.Len(t, res.Outputs, 2)
	assert.Equal(t, "dist-node/index.js", filepath.ToSlash(res.Outputs[0].Path))
	assert.Equal(t, "dist-node/index.js.map", filepath.ToSlash(res.Outputs[1].Path))
	assert.Positive(t, res.Outputs[0].Bytes)
	assert.NotEmpty(t, res.Metafile)

	bundle, err := os.ReadFile(cfg.OutputPaths()[0])
	require.NoError(t, err)
	assert.Contains(t, string(bundle), "hello")
	assert.Contains(t, string(bundle), "sourceMappingURL=index.js.map")
}

func TestRebuild_MissingEntryPoint(t *testing.T) {
	cfg := newProject(t, nil)

	c, err := Open(cfg, nil)
	require.NoError(t, err)
	defer c.Dispose()

	res := c.Rebuild()
	err = res.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "src/index.js")
	assert.Empty(t, res.Outputs)
	assert.NoFileExists(t, cfg.OutputPaths()[0])
}

func TestRebuild_UnsupportedSyntaxForTarget(t *testing.T) {
	cfg := newProject(t, map[string]string{
		"src/index.js": "export function f(n) { const x = n * 2; return x }\n",
	})

	s := cfg.Settings()
	s.Target = []string{"edge12"}
	edge12, err := buildcfg.New(s)
	require.NoError(t, err)

	c, err := Open(edge12, nil)
	require.NoError(t, err)
	defer c.Dispose()

	err = c.Rebuild().Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "not supported yet")
	assert.NoFileExists(t, edge12.OutputPaths()[0])
}

func TestOpen_CallsOnEnd(t *testing.T) {
	cfg := newProject(t, map[string]string{"src/index.js": "console.log(1)\n"})

	var (
		mu      sync.Mutex
		results []Result
	)

	c, err := Open(cfg, func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer c.Dispose()

	require.NoError(t, c.Rebuild().Err())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err())
	assert.NotEmpty(t, results[0].Outputs)
}

// ---------------------------------------------------------------------------
// Watch
// ---------------------------------------------------------------------------

func TestWatch_FirstBuildReported(t *testing.T) {
	cfg := newProject(t, map[string]string{"src/index.js": "console.log(1)\n"})

	done := make(chan Result, 4)

	c, err := Open(cfg, func(r Result) { done <- r })
	require.NoError(t, err)
	defer c.Dispose()

	require.NoError(t, c.Watch())

	select {
	case r := <-done:
		require.NoError(t, r.Err())
		assert.FileExists(t, cfg.OutputPaths()[0])
	case <-time.After(10 * time.Second):
		t.Fatal("watch mode did not report its first build")
	}
}

func TestWatch_Twice(t *testing.T) {
	cfg := newProject(t, map[string]string{"src/index.js": "console.log(1)\n"})

	c, err := Open(cfg, nil)
	require.NoError(t, err)
	defer c.Dispose()

	require.NoError(t, c.Watch())

	err = c.Watch()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Kind
	}{
		{`Could not resolve "src/index.js"`, KindConfig},
		{`Transforming const to the configured target environment ("edge12") is not supported yet`, KindConfig},
		{`Failed to write to output file: open dist/index.js: permission denied`, KindIO},
		{`Failed to create output directory: mkdir dist: read-only file system`, KindIO},
		{`Cannot read file "src/index.js": is a directory`, KindIO},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, classify([]api.Message{{Text: tt.text}}))
		})
	}
}

func TestError_Is(t *testing.T) {
	cfgErr := newError([]api.Message{{Text: "Could not resolve \"x\""}})
	ioErr := newError([]api.Message{{Text: "Failed to write to output file: x"}})

	assert.ErrorIs(t, cfgErr, ErrConfig)
	assert.NotErrorIs(t, cfgErr, ErrIO)
	assert.ErrorIs(t, ioErr, ErrIO)
	assert.NotErrorIs(t, ioErr, ErrConfig)

	var target *Error
	require.True(t, errors.As(error(ioErr), &target))
	assert.Equal(t, KindIO, target.Kind)
}

func TestError_MessageIsEsbuildDiagnostic(t *testing.T) {
	err := newError([]api.Message{{Text: "Could not resolve \"src/index.js\""}})
	assert.Contains(t, err.Error(), `Could not resolve "src/index.js"`)
	assert.NotContains(t, err.Error(), "\x1b[", "diagnostics must be uncolored")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "configuration error", KindConfig.String())
	assert.Equal(t, "i/o error", KindIO.String())
	assert.Equal(t, "unknown error", Kind(0).String())
}

// ---------------------------------------------------------------------------
// Metafile
// ---------------------------------------------------------------------------

func TestParseMetafile(t *testing.T) {
	mf, err := ParseMetafile(`{
		"inputs": {"src/index.js": {"bytes": 10}},
		"outputs": {
			"dist/index.js.map": {"bytes": 200},
			"dist/index.js": {"bytes": 50, "entryPoint": "src/index.js"}
		}
	}`)
	require.NoError(t, err)

	assert.Equal(t, 10, mf.Inputs["src/index.js"].Bytes)
	assert.Equal(t, "src/index.js", mf.Outputs["dist/index.js"].EntryPoint)
	assert.Equal(t, []Output{
		{Path: "dist/index.js", Bytes: 50},
		{Path: "dist/index.js.map", Bytes: 200},
	}, mf.SortedOutputs())
}

func TestParseMetafile_Invalid(t *testing.T) {
	_, err := ParseMetafile("{")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing metafile")
}
