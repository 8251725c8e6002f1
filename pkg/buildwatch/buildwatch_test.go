package buildwatch_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/buildwatch/pkg/buildwatch"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func writeEntry(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	p := filepath.Join(dir, "src", "index.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644)) //nolint:gosec // test

	return dir
}

func TestBuild_Defaults(t *testing.T) {
	dir := writeEntry(t, "console.log('hello')\n")

	result, err := buildwatch.Build(context.Background(), buildwatch.WithWorkingDir(dir))
	require.NoError(t, err)
	require.Len(t, result.Outputs, 2)
	assert.Equal(t, "dist-node/index.js", filepath.ToSlash(result.Outputs[0].Path))
	assert.Equal(t, "dist-node/index.js.map", filepath.ToSlash(result.Outputs[1].Path))
	assert.NotEmpty(t, result.Metafile)
}

func TestBuild_WithOptions(t *testing.T) {
	dir := writeEntry(t, "const greeting = 'hello'\nconsole.log(greeting)\n")

	result, err := buildwatch.Build(context.Background(),
		buildwatch.WithWorkingDir(dir),
		buildwatch.WithOutfile("out/app.js"),
		buildwatch.WithMinify(false),
		buildwatch.WithSourcemap(false),
		buildwatch.WithBundle(false),
		buildwatch.WithTargets("es2020"),
		buildwatch.WithMetafile("out/meta.json"),
	)
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)

	bundle, err := os.ReadFile(filepath.Join(dir, "out", "app.js")) //nolint:gosec // test
	require.NoError(t, err)
	assert.Contains(t, string(bundle), "greeting")
	assert.FileExists(t, filepath.Join(dir, "out", "meta.json"))
}

func TestBuild_CustomLoader(t *testing.T) {
	dir := writeEntry(t, "import text from './note.txt'\nconsole.log(text)\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "note.txt"), []byte("a note"), 0o644)) //nolint:gosec // test

	_, err := buildwatch.Build(context.Background(),
		buildwatch.WithWorkingDir(dir),
		buildwatch.WithLoader(map[string]string{".txt": "text"}),
	)
	require.NoError(t, err)

	bundle, err := os.ReadFile(filepath.Join(dir, "dist-node", "index.js")) //nolint:gosec // test
	require.NoError(t, err)
	assert.Contains(t, string(bundle), "a note")
}

func TestBuild_MissingEntryPoint(t *testing.T) {
	_, err := buildwatch.Build(context.Background(),
		buildwatch.WithWorkingDir(t.TempDir()),
		buildwatch.WithEntryPoints("src/missing.js"),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, buildwatch.ErrConfig)
	assert.True(t, buildwatch.IsConfigError(err))
	assert.Contains(t, err.Error(), "src/missing.js")
}

func TestBuild_InvalidTarget(t *testing.T) {
	_, err := buildwatch.Build(context.Background(), buildwatch.WithTargets("netscape4"))
	require.Error(t, err)
	assert.True(t, buildwatch.IsConfigError(err))
}

func TestBuild_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := buildwatch.Build(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStart_StatusLineThenCancel(t *testing.T) {
	dir := writeEntry(t, "console.log('watch')\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan error, 1)

	go func() {
		done <- buildwatch.Start(ctx, buildwatch.WithWorkingDir(dir), buildwatch.WithOutput(out))
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), buildwatch.StatusLine)
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, buildwatch.StatusLine+"\n", out.String())
}

func TestStart_InvalidConfigWritesNothing(t *testing.T) {
	var out bytes.Buffer

	err := buildwatch.Start(context.Background(), buildwatch.WithEntryPoints(), buildwatch.WithOutput(&out))
	require.Error(t, err)
	assert.ErrorIs(t, err, buildwatch.ErrConfig)
	assert.Empty(t, out.String())
}
