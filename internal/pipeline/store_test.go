package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "sepsis-pico", NormalizeName("  Sepsis PICO  "))
	assert.Equal(t, "weird-name", NormalizeName("Weird!!  Name@@"))
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, NormalizeName(string(long)), 64)
}

func TestStoreSaveLoadDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir+"/workspace", dir+"/global")

	cfg := models.PipelineConfig{
		Name:  "My Pipeline",
		Steps: []models.PipelineStep{{ID: "s1", Action: models.ActionSearch, Params: map[string]interface{}{"query": "sepsis"}}},
	}
	require.NoError(t, store.Save(cfg))

	loaded, err := store.Load("My Pipeline")
	require.NoError(t, err)
	assert.Equal(t, "my-pipeline", loaded.Name)
	assert.Equal(t, models.ScopeWorkspace, loaded.Scope)
	assert.Len(t, loaded.Steps, 1)

	entries, err := store.List(models.ScopeWorkspace)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "my-pipeline", entries[0].Name)

	require.NoError(t, store.Delete("my-pipeline", models.ScopeWorkspace))
	_, err = store.Load("my-pipeline")
	assert.Error(t, err)

	entries, err = store.List(models.ScopeWorkspace)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoreLoadPrefersWorkspaceOverGlobal(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir+"/workspace", dir+"/global")

	wsCfg := models.PipelineConfig{Name: "shared", Scope: models.ScopeWorkspace, Steps: []models.PipelineStep{{ID: "a", Action: models.ActionSearch, Params: map[string]interface{}{"query": "x"}}}}
	glCfg := models.PipelineConfig{Name: "shared", Scope: models.ScopeGlobal, Steps: []models.PipelineStep{{ID: "b", Action: models.ActionSearch, Params: map[string]interface{}{"query": "y"}}}}
	require.NoError(t, store.Save(wsCfg))
	require.NoError(t, store.Save(glCfg))

	loaded, err := store.Load("shared")
	require.NoError(t, err)
	assert.Equal(t, models.ScopeWorkspace, loaded.Scope)
	assert.Equal(t, "a", loaded.Steps[0].ID)
}

func TestContentHashStableAndRunHistoryOrdered(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir+"/workspace", dir+"/global")

	cfg := models.PipelineConfig{Name: "hashed", Steps: []models.PipelineStep{{ID: "s1", Action: models.ActionSearch, Params: map[string]interface{}{"query": "q"}}}}
	h1, err := ContentHash(cfg)
	require.NoError(t, err)
	h2, err := ContentHash(cfg)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	run1 := models.PipelineRun{StartedAt: 1}
	run2 := models.PipelineRun{StartedAt: 2}
	require.NoError(t, store.RecordRun(models.ScopeWorkspace, h1, run1))
	require.NoError(t, store.RecordRun(models.ScopeWorkspace, h1, run2))

	history, err := store.History(h1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].StartedAt)
	assert.Equal(t, int64(2), history[1].StartedAt)
}
