package timeline

import (
	"sort"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// milestoneToBranch buckets each fine-grained milestone type into one of
// the glossary's 8 branch categories.
var milestoneToBranch = map[models.MilestoneType]models.BranchCategory{
	models.MilestoneFirstReport:        models.BranchDiscoveryMechanism,
	models.MilestoneMechanism:          models.BranchDiscoveryMechanism,
	models.MilestoneDiscovery:          models.BranchDiscoveryMechanism,
	models.MilestonePreclinical:        models.BranchDiscoveryMechanism,
	models.MilestonePhaseI:             models.BranchClinicalDev,
	models.MilestonePhaseII:            models.BranchClinicalDev,
	models.MilestonePhaseIII:           models.BranchClinicalDev,
	models.MilestonePhaseIV:            models.BranchClinicalDev,
	models.MilestoneLandmarkRCT:        models.BranchLandmarkStudies,
	models.MilestoneApproval:           models.BranchRegulatory,
	models.MilestoneLabelExpansion:     models.BranchRegulatory,
	models.MilestoneWithdrawal:         models.BranchRegulatory,
	models.MilestoneMetaAnalysis:       models.BranchEvidenceSynthesis,
	models.MilestoneSystematicReview:   models.BranchEvidenceSynthesis,
	models.MilestoneCochraneReview:     models.BranchEvidenceSynthesis,
	models.MilestoneGuideline:          models.BranchGuidelinesPractice,
	models.MilestoneGuidelineUpdate:    models.BranchGuidelinesPractice,
	models.MilestoneConsensusStatement: models.BranchGuidelinesPractice,
	models.MilestoneSafetySignal:       models.BranchSafety,
	models.MilestoneBlackBoxWarning:    models.BranchSafety,
	models.MilestoneRecall:             models.BranchSafety,
	models.MilestoneOther:              models.BranchOther,
}

var branchIcons = map[models.BranchCategory]string{
	models.BranchDiscoveryMechanism: "flask",
	models.BranchClinicalDev:        "stethoscope",
	models.BranchRegulatory:         "gavel",
	models.BranchEvidenceSynthesis:  "layers",
	models.BranchGuidelinesPractice: "clipboard-check",
	models.BranchSafety:             "shield-alert",
	models.BranchLandmarkStudies:    "star",
	models.BranchOther:              "circle",
}

// branchOrder fixes a stable display order for BuildTree's output.
var branchOrder = []models.BranchCategory{
	models.BranchDiscoveryMechanism,
	models.BranchClinicalDev,
	models.BranchRegulatory,
	models.BranchEvidenceSynthesis,
	models.BranchGuidelinesPractice,
	models.BranchSafety,
	models.BranchLandmarkStudies,
	models.BranchOther,
}

// ToEvent converts an enriched article with a detected milestone into a
// TimelineEvent, or returns ok=false if the article has no year or no
// milestone type.
func ToEvent(a *models.UnifiedArticle) (models.TimelineEvent, bool) {
	if a.Year == nil {
		return models.TimelineEvent{}, false
	}
	milestone, label, _ := DetectMilestone(a)
	if milestone == models.MilestoneOther {
		return models.TimelineEvent{}, false
	}
	citations := 0
	evidenceLevel := ""
	if a.Citations != nil {
		citations = a.Citations.CitationCount
	}
	for _, t := range a.ArticleTypeList {
		if evidenceLevel == "" {
			evidenceLevel = t
		}
	}
	return models.TimelineEvent{
		ID:             a.ID,
		Year:           *a.Year,
		Title:          a.Title,
		MilestoneType:  milestone,
		MilestoneLabel: label,
		CitationCount:  citations,
		EvidenceLevel:  evidenceLevel,
	}, true
}

// BuildTimeline filters articles to those with a detected milestone
// type, sorts chronologically,
// segments into decade periods, and tallies a milestone-type histogram.
func BuildTimeline(topic string, articles []*models.UnifiedArticle) models.ResearchTimeline {
	var events []models.TimelineEvent
	for _, a := range articles {
		if ev, ok := ToEvent(a); ok {
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Year < events[j].Year })

	histogram := make(map[string]int, len(events))
	for _, ev := range events {
		histogram[string(ev.MilestoneType)]++
	}

	yearMin, yearMax := 0, 0
	if len(events) > 0 {
		yearMin, yearMax = events[0].Year, events[len(events)-1].Year
	}

	return models.ResearchTimeline{
		Topic:              topic,
		Events:             events,
		YearRangeStart:     yearMin,
		YearRangeEnd:       yearMax,
		Periods:            decadeBuckets(events),
		MilestoneHistogram: histogram,
	}
}

// decadeBuckets segments events into decade-wide periods. Biomedical
// milestone timelines rarely span more than a century, so decades stay
// readable without logarithmic bins.
func decadeBuckets(events []models.TimelineEvent) []models.PeriodBucket {
	if len(events) == 0 {
		return nil
	}
	counts := make(map[int]int)
	for _, ev := range events {
		decade := (ev.Year / 10) * 10
		counts[decade]++
	}
	decades := make([]int, 0, len(counts))
	for d := range counts {
		decades = append(decades, d)
	}
	sort.Ints(decades)

	buckets := make([]models.PeriodBucket, 0, len(decades))
	for _, d := range decades {
		buckets = append(buckets, models.PeriodBucket{
			Label:  decadeLabel(d),
			Start:  d,
			End:    d + 9,
			Events: counts[d],
		})
	}
	return buckets
}

func decadeLabel(decade int) string {
	return itoa(decade) + "s"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

// BuildTree buckets timeline events by milestone type into branch
// categories, splitting Clinical
// Development into Phase I/II and Phase III/IV sub-branches only when
// both sub-populations are non-empty. Empty branches are omitted.
func BuildTree(topic string, events []models.TimelineEvent) models.ResearchTree {
	byBranch := make(map[models.BranchCategory][]models.TimelineEvent)
	for _, ev := range events {
		branch := milestoneToBranch[ev.MilestoneType]
		byBranch[branch] = append(byBranch[branch], ev)
	}

	var branches []models.ResearchBranch
	for _, category := range branchOrder {
		evs, ok := byBranch[category]
		if !ok || len(evs) == 0 {
			continue
		}
		branch := models.ResearchBranch{
			ID:     branchID(category),
			Label:  string(category),
			Icon:   branchIcons[category],
			Events: evs,
		}
		if category == models.BranchClinicalDev {
			branch.SubBranches = clinicalSubBranches(evs)
		}
		branches = append(branches, branch)
	}

	return models.ResearchTree{Topic: topic, Branches: branches}
}

func clinicalSubBranches(evs []models.TimelineEvent) []models.ResearchBranch {
	var earlyPhase, latePhase []models.TimelineEvent
	for _, ev := range evs {
		switch ev.MilestoneType {
		case models.MilestonePhaseI, models.MilestonePhaseII:
			earlyPhase = append(earlyPhase, ev)
		case models.MilestonePhaseIII, models.MilestonePhaseIV:
			latePhase = append(latePhase, ev)
		}
	}
	if len(earlyPhase) == 0 || len(latePhase) == 0 {
		return nil
	}
	return []models.ResearchBranch{
		{ID: "clinical-development-phase-1-2", Label: "Phase I/II", Icon: "flask-conical", Events: earlyPhase},
		{ID: "clinical-development-phase-3-4", Label: "Phase III/IV", Icon: "flask-round", Events: latePhase},
	}
}

func branchID(category models.BranchCategory) string {
	id := make([]byte, 0, len(category))
	lastWasHyphen := true // suppress a leading hyphen
	for _, r := range string(category) {
		switch {
		case r >= 'A' && r <= 'Z':
			id = append(id, byte(r-'A'+'a'))
			lastWasHyphen = false
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			id = append(id, byte(r))
			lastWasHyphen = false
		case r == ' ' || r == '&':
			if !lastWasHyphen {
				id = append(id, '-')
				lastWasHyphen = true
			}
		}
	}
	for len(id) > 0 && id[len(id)-1] == '-' {
		id = id[:len(id)-1]
	}
	return string(id)
}
