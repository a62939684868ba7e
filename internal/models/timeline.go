package models

// MilestoneType enumerates the ~22 fine-grained milestone kinds the branch
// detector groups into the 8 branch categories in the glossary.
type MilestoneType string

const (
	MilestoneFirstReport        MilestoneType = "first_report"
	MilestoneMechanism          MilestoneType = "mechanism_elucidation"
	MilestoneDiscovery          MilestoneType = "discovery"
	MilestonePreclinical        MilestoneType = "preclinical_model"
	MilestonePhaseI             MilestoneType = "phase_1_trial"
	MilestonePhaseII            MilestoneType = "phase_2_trial"
	MilestonePhaseIII           MilestoneType = "phase_3_trial"
	MilestonePhaseIV            MilestoneType = "phase_4_trial"
	MilestoneLandmarkRCT        MilestoneType = "landmark_rct"
	MilestoneApproval           MilestoneType = "regulatory_approval"
	MilestoneLabelExpansion     MilestoneType = "label_expansion"
	MilestoneWithdrawal         MilestoneType = "regulatory_withdrawal"
	MilestoneMetaAnalysis       MilestoneType = "meta_analysis"
	MilestoneSystematicReview   MilestoneType = "systematic_review"
	MilestoneCochraneReview     MilestoneType = "cochrane_review"
	MilestoneGuideline          MilestoneType = "guideline"
	MilestoneGuidelineUpdate    MilestoneType = "guideline_update"
	MilestoneConsensusStatement MilestoneType = "consensus_statement"
	MilestoneSafetySignal       MilestoneType = "safety_signal"
	MilestoneBlackBoxWarning    MilestoneType = "black_box_warning"
	MilestoneRecall             MilestoneType = "recall"
	MilestoneOther              MilestoneType = "other"
)

// BranchCategory is one of the 8 research-tree branches from the glossary.
type BranchCategory string

const (
	BranchDiscoveryMechanism BranchCategory = "Discovery & Mechanism"
	BranchClinicalDev        BranchCategory = "Clinical Development"
	BranchRegulatory         BranchCategory = "Regulatory"
	BranchEvidenceSynthesis  BranchCategory = "Evidence Synthesis"
	BranchGuidelinesPractice BranchCategory = "Guidelines & Practice"
	BranchSafety             BranchCategory = "Safety"
	BranchLandmarkStudies    BranchCategory = "Landmark Studies"
	BranchOther              BranchCategory = "Other"
)

// TimelineEvent is one article placed on a ResearchTimeline.
type TimelineEvent struct {
	ID             string        `json:"id"`
	Year           int           `json:"year"`
	Title          string        `json:"title"`
	MilestoneType  MilestoneType `json:"milestone_type"`
	MilestoneLabel string        `json:"milestone_label"`
	CitationCount  int           `json:"citation_count"`
	EvidenceLevel  string        `json:"evidence_level"`
}

// PeriodBucket is one decade-wide segment of a ResearchTimeline.
type PeriodBucket struct {
	Label  string `json:"label"`
	Start  int    `json:"start_year"`
	End    int    `json:"end_year"`
	Events int    `json:"event_count"`
}

// ResearchTimeline is the chronological view over a topic's milestone
// articles.
type ResearchTimeline struct {
	Topic               string            `json:"topic"`
	Events              []TimelineEvent   `json:"events"`
	YearRangeStart       int              `json:"year_range_start"`
	YearRangeEnd         int              `json:"year_range_end"`
	Periods              []PeriodBucket   `json:"periods"`
	MilestoneHistogram   map[string]int   `json:"milestone_histogram"`
}

// ResearchBranch is one node of a ResearchTree.
type ResearchBranch struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Icon        string           `json:"icon"`
	Events      []TimelineEvent  `json:"events"`
	SubBranches []ResearchBranch `json:"sub_branches,omitempty"`
}

// ResearchTree groups a topic's timeline events into labeled branches.
type ResearchTree struct {
	Topic    string           `json:"topic"`
	Branches []ResearchBranch `json:"branches"`
}
