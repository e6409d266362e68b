// Package scoring holds the pure derivations consumed by every read path:
// inherent and residual risk levels, module compliance percentages and the
// protocol approval aggregate. None of these values is ever persisted.
package scoring

import (
	"math"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
)

// inherentMatrix folds probability (row) and impact (column) into one 1–5
// severity band. It follows the classic heat map bands of probability×impact:
// 1–2 → 1, 3–4 → 2, 5–9 → 3, 10–15 → 4, 16–25 → 5.
var inherentMatrix = [5][5]int{
	{1, 1, 2, 2, 3},
	{1, 2, 3, 3, 4},
	{2, 3, 3, 4, 4},
	{2, 3, 4, 5, 5},
	{3, 4, 4, 5, 5},
}

// residualMatrix is indexed by inherent level (row) and rounded mean control
// effectiveness (column). Weak controls never raise inherent risk, and
// inherent level 1 stays at 1.
var residualMatrix = [5][5]int{
	{1, 1, 1, 1, 1},
	{2, 2, 1, 1, 1},
	{3, 3, 2, 2, 1},
	{4, 4, 3, 2, 1},
	{5, 5, 4, 3, 2},
}

func checkLevel(field string, v int) error {
	return models.ValidateScale(field, v)
}

// InherentLevel maps raw probability and impact onto the 1–5 inherent band.
func InherentLevel(probability, impact int) (int, error) {
	if err := checkLevel("probability", probability); err != nil {
		return 0, err
	}
	if err := checkLevel("impact", impact); err != nil {
		return 0, err
	}
	return inherentMatrix[probability-1][impact-1], nil
}

// RoundedMean averages effectiveness scores and rounds half away from zero.
func RoundedMean(scores []int) (int, error) {
	if len(scores) == 0 {
		return 0, apperr.New(apperr.CodeValidation, "no effectiveness scores to average")
	}
	sum := 0
	for _, s := range scores {
		if err := checkLevel("effectiveness", s); err != nil {
			return 0, err
		}
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(scores)))), nil
}

// Residual returns the residual level for a risk with the given inherent
// level and the numeric effectiveness of its linked controls. With no scores
// the inherent level is returned unchanged.
func Residual(inherent int, effectiveness []int) (int, error) {
	if err := checkLevel("inherent level", inherent); err != nil {
		return 0, err
	}
	if len(effectiveness) == 0 {
		return inherent, nil
	}
	avg, err := RoundedMean(effectiveness)
	if err != nil {
		return 0, err
	}
	return residualMatrix[inherent-1][avg-1], nil
}

// ControlScores extracts the numeric ratings; untested controls carry none.
func ControlScores(controls []models.Control) []int {
	scores := make([]int, 0, len(controls))
	for _, c := range controls {
		if s, ok := c.Effectiveness.Score(); ok {
			scores = append(scores, s)
		}
	}
	return scores
}

// RiskLevels computes inherent and residual levels for r given its controls.
func RiskLevels(r models.Risk, controls []models.Control) (inherent, residual int, err error) {
	inherent, err = InherentLevel(r.Probability, r.Impact)
	if err != nil {
		return 0, 0, err
	}
	residual, err = Residual(inherent, ControlScores(controls))
	if err != nil {
		return 0, 0, err
	}
	return inherent, residual, nil
}

// Percent is compliant/applicable×100 rounded to the nearest integer; zero
// applicable requirements yield 0.
func Percent(compliant, applicable int) int {
	if applicable <= 0 {
		return 0
	}
	return int(math.Round(float64(compliant) * 100 / float64(applicable)))
}

// ModuleTally counts a module's requirements by their tenant status. A
// requirement with no status row counts as not started.
type ModuleTally struct {
	Applicable    int
	Compliant     int
	NotApplicable int
}

func TallyModule(requirementIDs []uint, statuses map[uint]models.ComplianceState) ModuleTally {
	var t ModuleTally
	for _, id := range requirementIDs {
		switch st, ok := statuses[id]; {
		case ok && st == models.StatusNotApplicable:
			t.NotApplicable++
		case ok && st == models.StatusCompliant:
			t.Applicable++
			t.Compliant++
		default:
			t.Applicable++
		}
	}
	return t
}

func (t ModuleTally) Pct() int {
	return Percent(t.Compliant, t.Applicable)
}

// ProtocolApproved is true iff there is at least one approval row and every
// row is approved.
func ProtocolApproved(states []models.ApprovalState) bool {
	if len(states) == 0 {
		return false
	}
	for _, s := range states {
		if s != models.ApprovalApproved {
			return false
		}
	}
	return true
}
