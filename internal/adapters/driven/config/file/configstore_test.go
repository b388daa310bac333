package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_ReadsNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[ingestion]
chunk_size = 800
pipeline = ["chunker", "min_length"]

[retrieval]
similarity_threshold = 0.65
top_k = 3

[reconcile]
enabled = false

[embedding]
provider = "ollama"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 800, store.GetInt("ingestion.chunk_size"))
	assert.Equal(t, []string{"chunker", "min_length"}, store.GetStringSlice("ingestion.pipeline"))
	assert.InDelta(t, 0.65, store.GetFloat("retrieval.similarity_threshold"), 1e-9)
	assert.InDelta(t, 3.0, store.GetFloat("retrieval.top_k"), 1e-9)
	assert.False(t, store.GetBool("reconcile.enabled"))
	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
}

func TestConfigStore_SetPersistsAsTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("retrieval.top_k", 7))
	require.NoError(t, store.Set("embedding.model", "all-minilm"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[retrieval]")
	assert.Contains(t, string(raw), "[embedding]")

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.GetInt("retrieval.top_k"))
	assert.Equal(t, "all-minilm", reloaded.GetString("embedding.model"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("embedding.api_key", "sk-test"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_EnvOverrides(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("retrieval.top_k", 5))
	require.NoError(t, store.Set("embedding.api_key", "from-file"))

	t.Setenv("KBASE_RETRIEVAL_TOP_K", "9")
	t.Setenv("KBASE_EMBEDDING_API_KEY", "from-env")
	t.Setenv("KBASE_RETRIEVAL_SIMILARITY_THRESHOLD", "0.5")
	t.Setenv("KBASE_RECONCILE_ENABLED", "true")
	t.Setenv("KBASE_INGESTION_PIPELINE", "chunker, min_length")

	assert.Equal(t, 9, store.GetInt("retrieval.top_k"))
	assert.Equal(t, "from-env", store.GetString("embedding.api_key"))
	assert.InDelta(t, 0.5, store.GetFloat("retrieval.similarity_threshold"), 1e-9)
	assert.True(t, store.GetBool("reconcile.enabled"))
	assert.Equal(t, []string{"chunker", "min_length"}, store.GetStringSlice("ingestion.pipeline"))

	// Overrides are not persisted.
	require.NoError(t, store.Save())
	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "from-env")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "KBASE_VECTOR_INDEX_QDRANT_HOST", EnvKey("vector_index.qdrant_host"))
	assert.Equal(t, "KBASE_SERVER_HTTP_ADDR", EnvKey("server.http_addr"))
}

func TestParseEnvValue(t *testing.T) {
	assert.Equal(t, true, parseEnvValue("true"))
	assert.Equal(t, int64(42), parseEnvValue("42"))
	assert.Equal(t, 0.25, parseEnvValue("0.25"))
	assert.Equal(t, "localhost:6379", parseEnvValue("localhost:6379"))
}

func TestConfigStore_Load_NonExistent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("k.v", "x"))
	require.NoError(t, os.Remove(store.Path()))

	require.NoError(t, store.Load())
	_, ok := store.Get("k.v")
	assert.False(t, ok)
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Set("test.key", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("another.key", "value"))
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestNestMap_InvertsFlatten(t *testing.T) {
	flat := map[string]any{"a.b": 1, "a.c.d": "x", "top": true}

	assert.Equal(t, flat, flattenMap(nestMap(flat), ""))
}
