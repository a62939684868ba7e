// Package pipeline implements the DAG pipeline executor, validator,
// templates, and persistence store: a declarative step DAG is validated
// and auto-repaired before it is ever run.
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// validActions is the fixed ten-verb vocabulary a step's action may name.
var validActions = []models.StepAction{
	models.ActionSearch, models.ActionPICO, models.ActionExpand,
	models.ActionDetails, models.ActionRelated, models.ActionCiting,
	models.ActionReferences, models.ActionMetrics, models.ActionMerge,
	models.ActionFilter,
}

// requiredParams names the params an action cannot run without.
var requiredParams = map[models.StepAction][]string{
	models.ActionSearch: {"query"},
	models.ActionPICO:   {"P", "I", "C", "O"},
}

// MaxSteps bounds how many steps a single pipeline may declare.
const MaxSteps = 20

// Validate runs the validator's aggressive auto-fix pass over cfg and
// returns the repaired config, the list of fixes applied, and any
// unfixable errors, which abort validation.
func Validate(cfg models.PipelineConfig) (models.PipelineConfig, []models.ValidationFix, []models.ValidationError) {
	var fixes []models.ValidationFix
	var errs []models.ValidationError

	if len(cfg.Steps) == 0 {
		errs = append(errs, models.ValidationError{Message: "pipeline has no steps"})
		return cfg, fixes, errs
	}
	if len(cfg.Steps) > MaxSteps {
		errs = append(errs, models.ValidationError{
			Message: fmt.Sprintf("pipeline has %d steps, exceeding the limit of %d", len(cfg.Steps), MaxSteps),
		})
		return cfg, fixes, errs
	}

	steps := append([]models.PipelineStep(nil), cfg.Steps...)

	steps, fixes = assignMissingIDs(steps, fixes)
	steps, fixes = dedupIDs(steps, fixes)
	steps, fixes, errs = fixActionNames(steps, fixes, errs)
	steps, fixes, errs = checkRequiredParams(steps, fixes, errs)
	steps, fixes = repairDependencies(steps, fixes)
	steps, fixes, errs = breakCycles(steps, fixes, errs)

	cfg.Steps = steps
	return cfg, fixes, errs
}

func assignMissingIDs(steps []models.PipelineStep, fixes []models.ValidationFix) ([]models.PipelineStep, []models.ValidationFix) {
	for i := range steps {
		if steps[i].ID != "" {
			continue
		}
		generated := fmt.Sprintf("step-%d", i+1)
		fixes = append(fixes, models.ValidationFix{
			Severity: "info",
			Message:  "auto-generated missing step id",
			Before:   "",
			After:    generated,
		})
		steps[i].ID = generated
	}
	return steps, fixes
}

func dedupIDs(steps []models.PipelineStep, fixes []models.ValidationFix) ([]models.PipelineStep, []models.ValidationFix) {
	seen := make(map[string]int)
	for i := range steps {
		id := steps[i].ID
		seen[id]++
		if seen[id] == 1 {
			continue
		}
		newID := fmt.Sprintf("%s-%d", id, seen[id])
		fixes = append(fixes, models.ValidationFix{
			StepID:   newID,
			Severity: "warning",
			Message:  "deduplicated repeated step id by suffixing",
			Before:   id,
			After:    newID,
		})
		steps[i].ID = newID
		seen[newID]++
	}
	return steps, fixes
}

func fixActionNames(steps []models.PipelineStep, fixes []models.ValidationFix, errs []models.ValidationError) ([]models.PipelineStep, []models.ValidationFix, []models.ValidationError) {
	for i := range steps {
		action := steps[i].Action
		if isValidAction(action) {
			continue
		}
		match, ok := fuzzyMatchAction(string(action))
		if !ok {
			errs = append(errs, models.ValidationError{
				StepID:  steps[i].ID,
				Message: fmt.Sprintf("unknown action %q (no fuzzy match within edit distance 2)", action),
			})
			continue
		}
		fixes = append(fixes, models.ValidationFix{
			StepID:   steps[i].ID,
			Severity: "warning",
			Message:  "fuzzy-matched unknown action name to nearest known action",
			Before:   string(action),
			After:    string(match),
		})
		steps[i].Action = match
	}
	return steps, fixes, errs
}

func isValidAction(a models.StepAction) bool {
	for _, v := range validActions {
		if v == a {
			return true
		}
	}
	return false
}

// fuzzyMatchAction finds the closest known action name within edit
// distance 2, preferring the shortest edit distance then lexicographic
// order to break ties deterministically.
func fuzzyMatchAction(name string) (models.StepAction, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	best := models.StepAction("")
	bestDist := 3
	for _, v := range validActions {
		d := editDistance(name, string(v))
		if d < bestDist || (d == bestDist && v < best) {
			bestDist = d
			best = v
		}
	}
	if bestDist > 2 {
		return "", false
	}
	return best, true
}

func checkRequiredParams(steps []models.PipelineStep, fixes []models.ValidationFix, errs []models.ValidationError) ([]models.PipelineStep, []models.ValidationFix, []models.ValidationError) {
	for _, s := range steps {
		for _, req := range requiredParams[s.Action] {
			if _, ok := s.Params[req]; !ok {
				errs = append(errs, models.ValidationError{
					StepID:  s.ID,
					Message: fmt.Sprintf("action %q requires param %q", s.Action, req),
				})
			}
		}
	}
	return steps, fixes, errs
}

// repairDependencies fuzzy-matches any step's Inputs entry that doesn't
// name an existing step ID to the closest existing ID, within edit
// distance 2; unmatched references are left as-is (they'll surface as
// empty input at execution time, consistent with "skip" semantics rather
// than a hard validation error).
func repairDependencies(steps []models.PipelineStep, fixes []models.ValidationFix) ([]models.PipelineStep, []models.ValidationFix) {
	ids := make([]string, len(steps))
	idSet := make(map[string]struct{}, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
		idSet[s.ID] = struct{}{}
	}

	for i := range steps {
		for j, ref := range steps[i].Inputs {
			if _, ok := idSet[ref]; ok {
				continue
			}
			match, bestDist := "", 3
			for _, id := range ids {
				if id == steps[i].ID {
					continue
				}
				d := editDistance(ref, id)
				if d < bestDist {
					bestDist, match = d, id
				}
			}
			if match == "" {
				continue
			}
			fixes = append(fixes, models.ValidationFix{
				StepID:   steps[i].ID,
				Severity: "warning",
				Message:  "fuzzy-matched dangling dependency reference to nearest existing step id",
				Before:   ref,
				After:    match,
			})
			steps[i].Inputs[j] = match
		}
	}
	return steps, fixes
}

// breakCycles detects cycles in the step dependency graph and breaks each
// one by dropping the back-edge whose source step has the highest
// lexicographic id. If breaking edges would remove every step in a
// cycle's reach entirely (no steps left), that's reported as an unfixable
// ValidationError instead.
func breakCycles(steps []models.PipelineStep, fixes []models.ValidationFix, errs []models.ValidationError) ([]models.PipelineStep, []models.ValidationFix, []models.ValidationError) {
	byID := make(map[string]int, len(steps))
	for i, s := range steps {
		byID[s.ID] = i
	}

	for {
		cyclePath, ok := findCycle(steps, byID)
		if !ok {
			break
		}
		if len(cyclePath) == 0 {
			errs = append(errs, models.ValidationError{Message: "cycle detected that cannot be broken without losing all steps"})
			break
		}
		// Drop the back-edge from the highest-lexicographic-id step in the
		// cycle to the step that closes the loop.
		ordered := append([]string(nil), cyclePath...)
		sort.Strings(cyclePath)
		dropFrom := cyclePath[len(cyclePath)-1]
		idx := byID[dropFrom]
		closes := ""
		for k, id := range ordered {
			if id == dropFrom {
				closes = ordered[(k+1)%len(ordered)]
			}
		}
		var kept, removed []string
		for _, in := range steps[idx].Inputs {
			if in == closes {
				removed = append(removed, in)
			} else {
				kept = append(kept, in)
			}
		}
		steps[idx].Inputs = kept
		fixes = append(fixes, models.ValidationFix{
			StepID:   dropFrom,
			Severity: "warning",
			Message:  "broke dependency cycle by dropping back-edge from highest-lexicographic-id step",
			Before:   strings.Join(removed, ","),
			After:    "",
		})
	}
	return steps, fixes, errs
}

// findCycle returns the set of step IDs participating in any cycle found
// via DFS, or ok=false if the graph is acyclic.
func findCycle(steps []models.PipelineStep, byID map[string]int) ([]string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		stack = append(stack, id)
		idx, exists := byID[id]
		if exists {
			for _, dep := range steps[idx].Inputs {
				if _, ok := byID[dep]; !ok {
					continue
				}
				switch color[dep] {
				case white:
					if cyc := visit(dep); cyc != nil {
						return cyc
					}
				case gray:
					for k, id2 := range stack {
						if id2 == dep {
							return append([]string(nil), stack[k:]...)
						}
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, s := range steps {
		if color[s.ID] == white {
			if cyc := visit(s.ID); cyc != nil {
				return cyc, true
			}
		}
	}
	return nil, false
}

// editDistance is a standard Levenshtein distance over runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			cur[j] = min3(del, ins, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
