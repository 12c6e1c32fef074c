package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 200, cfg.MaxRerolls)
	assert.Equal(t, 10, cfg.CategoryRetries)
	assert.Equal(t, 36, cfg.Canvas().X)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	yml := `
layers: art
concurrency: 2
collection: Crowd
layerOrder: [hat, head, background]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(yml), 0o644))
	t.Setenv("STRATA_CONCURRENCY", "8")
	t.Setenv("STRATA_IMAGE_CID", "QmXyz")

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "art", cfg.Layers)
	assert.Equal(t, "Crowd", cfg.Collection)
	assert.Equal(t, []string{"hat", "head", "background"}, cfg.LayerOrder)
	assert.Equal(t, 8, cfg.Concurrency, "environment wins over the file")
	assert.Equal(t, "ipfs://QmXyz/{file}", cfg.ImageTemplate())
}

func TestLoad_JSONByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"maxRerolls": 50, "imageRef": "digest"}`), 0o644))

	cfg, err := Load(dir, path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxRerolls)
	assert.Equal(t, ImageRefDigest, cfg.ImageRef)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STRATA_REDIS_ADDR=localhost:6379\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("STRATA_REDIS_ADDR") })

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("concurrency: [oops"), 0o644))

	_, err := Load(dir, "")
	assert.ErrorIs(t, err, domain.ErrMalformedConfiguration)
}

func TestValidate_AggregatesProblems(t *testing.T) {
	cfg := Default()
	cfg.Concurrency = 0
	cfg.CacheSize = -1
	cfg.ImageRef = "cid"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedConfiguration)
	assert.Len(t, schema.ValidationErrors(err), 3)
}

func TestOutputSize_Clamped(t *testing.T) {
	cfg := Default()
	cfg.OutputWidth = 10
	cfg.OutputHeight = 100000

	w, h := cfg.OutputSize()
	assert.Equal(t, domain.MinOutputSize, w)
	assert.Equal(t, domain.MaxOutputSize, h)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("proj", "out"), Resolve("proj", "out"))
	assert.Equal(t, "/abs/out", Resolve("proj", "/abs/out"))
	assert.Equal(t, "", Resolve("proj", ""))
}
