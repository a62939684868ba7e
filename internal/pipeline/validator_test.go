package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

func TestValidateCleanConfigPassesUntouched(t *testing.T) {
	cfg := models.PipelineConfig{
		Name: "clean",
		Steps: []models.PipelineStep{
			{ID: "s1", Action: models.ActionSearch, Params: map[string]interface{}{"query": "sepsis"}},
			{ID: "s2", Action: models.ActionFilter, Inputs: []string{"s1"}},
		},
	}

	fixed, fixes, errs := Validate(cfg)
	require.Empty(t, errs)
	assert.Empty(t, fixes)
	assert.Equal(t, cfg.Steps, fixed.Steps)
}

func TestValidateRejectsEmptyAndOversizedPipelines(t *testing.T) {
	_, _, errs := Validate(models.PipelineConfig{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "no steps")

	big := models.PipelineConfig{}
	for i := 0; i < MaxSteps+1; i++ {
		big.Steps = append(big.Steps, models.PipelineStep{
			ID: "s", Action: models.ActionFilter,
		})
	}
	_, _, errs = Validate(big)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "exceeding the limit")
}

func TestValidateAssignsMissingIDs(t *testing.T) {
	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{Action: models.ActionSearch, Params: map[string]interface{}{"query": "x"}},
			{Action: models.ActionFilter},
		},
	}

	fixed, fixes, errs := Validate(cfg)
	require.Empty(t, errs)
	assert.Equal(t, "step-1", fixed.Steps[0].ID)
	assert.Equal(t, "step-2", fixed.Steps[1].ID)
	require.Len(t, fixes, 2)
	assert.Equal(t, "info", fixes[0].Severity)
}

func TestValidateDeduplicatesRepeatedIDs(t *testing.T) {
	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "dup", Action: models.ActionSearch, Params: map[string]interface{}{"query": "x"}},
			{ID: "dup", Action: models.ActionFilter},
		},
	}

	fixed, fixes, errs := Validate(cfg)
	require.Empty(t, errs)
	assert.Equal(t, "dup", fixed.Steps[0].ID)
	assert.Equal(t, "dup-2", fixed.Steps[1].ID)
	require.Len(t, fixes, 1)
	assert.Equal(t, "warning", fixes[0].Severity)
}

func TestValidateFuzzyMatchesActionNames(t *testing.T) {
	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "s1", Action: "serach", Params: map[string]interface{}{"query": "x"}},
			{ID: "s2", Action: "fliter", Inputs: []string{"s1"}},
		},
	}

	fixed, fixes, errs := Validate(cfg)
	require.Empty(t, errs)
	assert.Equal(t, models.ActionSearch, fixed.Steps[0].Action)
	assert.Equal(t, models.ActionFilter, fixed.Steps[1].Action)
	assert.Len(t, fixes, 2)
}

func TestValidateRejectsUnmatchableAction(t *testing.T) {
	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "s1", Action: "frobnicate"},
		},
	}

	_, _, errs := Validate(cfg)
	require.Len(t, errs, 1)
	assert.Equal(t, "s1", errs[0].StepID)
	assert.Contains(t, errs[0].Message, "unknown action")
}

func TestValidateRequiresSearchQueryParam(t *testing.T) {
	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "s1", Action: models.ActionSearch},
		},
	}

	_, _, errs := Validate(cfg)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, `requires param "query"`)
}

func TestValidateRepairsDanglingDependency(t *testing.T) {
	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "search-1", Action: models.ActionSearch, Params: map[string]interface{}{"query": "x"}},
			{ID: "merge-1", Action: models.ActionMerge, Inputs: []string{"search-9"}},
		},
	}

	fixed, fixes, errs := Validate(cfg)
	require.Empty(t, errs)
	assert.Equal(t, []string{"search-1"}, fixed.Steps[1].Inputs)
	require.Len(t, fixes, 1)
	assert.Equal(t, "search-9", fixes[0].Before)
	assert.Equal(t, "search-1", fixes[0].After)
}

func TestValidateBreaksCycleByDroppingHighestID(t *testing.T) {
	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "a", Action: models.ActionFilter, Inputs: []string{"b"}},
			{ID: "b", Action: models.ActionFilter, Inputs: []string{"a"}},
		},
	}

	fixed, fixes, errs := Validate(cfg)
	require.Empty(t, errs)
	// "b" sorts highest, so its back-edge is the one dropped.
	assert.Empty(t, fixed.Steps[1].Inputs)
	assert.Equal(t, []string{"b"}, fixed.Steps[0].Inputs)
	require.Len(t, fixes, 1)
	assert.Equal(t, "b", fixes[0].StepID)

	_, err := topoSort(fixed.Steps)
	assert.NoError(t, err)
}

// A config that survives validation must execute without ever tripping a
// validation-class failure: every action is known, IDs are unique, and the
// step graph topo-sorts.
func TestValidatedConfigAlwaysExecutable(t *testing.T) {
	nasty := []models.PipelineConfig{
		{Steps: []models.PipelineStep{
			{Action: "serach", Params: map[string]interface{}{"query": "a"}},
			{Action: "serach", Params: map[string]interface{}{"query": "b"}},
			{ID: "m", Action: "mrege", Inputs: []string{"step-1", "setp-2"}},
		}},
		{Steps: []models.PipelineStep{
			{ID: "x", Action: models.ActionFilter, Inputs: []string{"y"}},
			{ID: "y", Action: models.ActionFilter, Inputs: []string{"x"}},
			{ID: "z", Action: models.ActionMetrics, Inputs: []string{"y"}},
		}},
	}

	for _, cfg := range nasty {
		fixed, _, errs := Validate(cfg)
		require.Empty(t, errs)

		seen := map[string]bool{}
		for _, s := range fixed.Steps {
			assert.True(t, isValidAction(s.Action), "action %q", s.Action)
			assert.False(t, seen[s.ID], "duplicate id %q", s.ID)
			seen[s.ID] = true
		}
		_, err := topoSort(fixed.Steps)
		assert.NoError(t, err)
	}
}
