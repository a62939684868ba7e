package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

func TestBuildTimelineSortsChronologicallyAndFiltersNonMilestones(t *testing.T) {
	articles := []*models.UnifiedArticle{
		{ID: "3", Year: year(2010), Title: "Landmark randomized controlled trial"},
		{ID: "1", Year: year(1995), Title: "First report of the mechanism"},
		{ID: "2", Year: year(2020), Title: "An unremarkable note with no milestone cues"},
	}
	tl := BuildTimeline("topic", articles)
	require.Len(t, tl.Events, 2)
	assert.Equal(t, 1995, tl.Events[0].Year)
	assert.Equal(t, 2010, tl.Events[1].Year)
	assert.Equal(t, 1995, tl.YearRangeStart)
	assert.Equal(t, 2010, tl.YearRangeEnd)
}

func TestBuildTimelineProducesDecadeBuckets(t *testing.T) {
	articles := []*models.UnifiedArticle{
		{ID: "1", Year: year(1991), Title: "First report of discovery"},
		{ID: "2", Year: year(1999), Title: "Mechanism of action discovery"},
		{ID: "3", Year: year(2005), Title: "Landmark randomized controlled trial"},
	}
	tl := BuildTimeline("topic", articles)
	require.Len(t, tl.Periods, 2)
	assert.Equal(t, "1990s", tl.Periods[0].Label)
	assert.Equal(t, 2, tl.Periods[0].Events)
	assert.Equal(t, "2000s", tl.Periods[1].Label)
}

func TestBuildTreeOmitsEmptyBranches(t *testing.T) {
	events := []models.TimelineEvent{
		{ID: "1", Year: 2000, MilestoneType: models.MilestoneDiscovery},
	}
	tree := BuildTree("topic", events)
	require.Len(t, tree.Branches, 1)
	assert.Equal(t, models.BranchDiscoveryMechanism, models.BranchCategory(tree.Branches[0].Label))
}

func TestBuildTreeSplitsClinicalDevelopmentWhenBothSubPopulationsPresent(t *testing.T) {
	events := []models.TimelineEvent{
		{ID: "1", Year: 2000, MilestoneType: models.MilestonePhaseI},
		{ID: "2", Year: 2002, MilestoneType: models.MilestonePhaseIII},
	}
	tree := BuildTree("topic", events)
	require.Len(t, tree.Branches, 1)
	require.Len(t, tree.Branches[0].SubBranches, 2)
	assert.Equal(t, "Phase I/II", tree.Branches[0].SubBranches[0].Label)
	assert.Equal(t, "Phase III/IV", tree.Branches[0].SubBranches[1].Label)
}

func TestBuildTreeDoesNotSplitClinicalDevelopmentWhenOnlyOneSubPopulation(t *testing.T) {
	events := []models.TimelineEvent{
		{ID: "1", Year: 2000, MilestoneType: models.MilestonePhaseI},
		{ID: "2", Year: 2001, MilestoneType: models.MilestonePhaseII},
	}
	tree := BuildTree("topic", events)
	require.Len(t, tree.Branches, 1)
	assert.Empty(t, tree.Branches[0].SubBranches)
}

func TestBranchIDIsStableSlug(t *testing.T) {
	assert.Equal(t, "discovery-mechanism", branchID(models.BranchDiscoveryMechanism))
	assert.Equal(t, "clinical-development", branchID(models.BranchClinicalDev))
}
