package requirement

import (
	"math"

	"github.com/rpggio/gradcredits/internal/domain/credit"
)

// Key identifies a requirement row independent of its display label.
type Key string

const (
	KeyMajor             Key = "MAJOR"
	KeyLiberal           Key = "LIBERAL"
	KeyEngineeringCommon Key = "ENGINEERING_COMMON"
	KeySecondMajor       Key = "SECOND_MAJOR"
	KeyGraduation        Key = "GRADUATION"
)

// Status is one evaluated requirement row.
type Status struct {
	Key        Key     `json:"key"`
	Label      string  `json:"label"`
	Current    float64 `json:"current"`
	Required   float64 `json:"required"`
	Remaining  float64 `json:"remaining"`
	IsComplete bool    `json:"is_complete"`
	Percentage float64 `json:"percentage"`
}

// NewStatus evaluates a single row. A non-positive minimum is vacuously met.
func NewStatus(key Key, label string, current, required float64) Status {
	s := Status{
		Key:        key,
		Label:      label,
		Current:    current,
		Required:   required,
		Remaining:  math.Max(0, required-current),
		IsComplete: current >= required,
	}
	if required <= 0 {
		s.Percentage = 100
		s.IsComplete = true
		return s
	}
	s.Percentage = math.Min(100, 100*current/required)
	return s
}

// ComputeStatus evaluates entries against policy. Rows are returned in a
// fixed order; the second-major row is present only when secondMajor is set.
func ComputeStatus(entries []credit.Entry, policy Policy, secondMajor bool) []Status {
	return StatusFromTotals(ComputeTotals(entries), policy, secondMajor)
}

// StatusFromTotals is ComputeStatus for already aggregated totals.
func StatusFromTotals(t Totals, policy Policy, secondMajor bool) []Status {
	majorRequired := policy.MajorOverall
	if secondMajor {
		majorRequired = SecondMajorActiveMajorMin
	}

	rows := make([]Status, 0, 5)
	rows = append(rows,
		NewStatus(KeyMajor, "Major", t.Major, majorRequired),
		NewStatus(KeyLiberal, "Liberal", t.Liberal, policy.LiberalMin),
		NewStatus(KeyEngineeringCommon, "Engineering-common", t.EngineeringCommon, policy.EngCommonMin),
	)
	if secondMajor {
		rows = append(rows, NewStatus(KeySecondMajor, "Second major", t.SecondMajor, policy.SecondMajorOverall))
	}
	rows = append(rows, NewStatus(KeyGraduation, "Graduation", t.Graduation, policy.GraduationMin))
	return rows
}

// EligibleIgnoringSecondMajor reports whether every row other than the
// second-major row is complete.
func EligibleIgnoringSecondMajor(rows []Status) bool {
	for _, r := range rows {
		if r.Key == KeySecondMajor {
			continue
		}
		if !r.IsComplete {
			return false
		}
	}
	return true
}

// EligibleRespectingSecondMajor reports whether every produced row,
// including a second-major row when present, is complete.
func EligibleRespectingSecondMajor(rows []Status) bool {
	for _, r := range rows {
		if !r.IsComplete {
			return false
		}
	}
	return true
}

// Eligible evaluates entries and applies the check matching secondMajor.
func Eligible(entries []credit.Entry, policy Policy, secondMajor bool) bool {
	rows := ComputeStatus(entries, policy, secondMajor)
	if secondMajor {
		return EligibleRespectingSecondMajor(rows)
	}
	return EligibleIgnoringSecondMajor(rows)
}
