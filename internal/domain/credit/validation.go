package credit

import (
	"math"
	"strings"
)

// MaxCredits is the largest credit value accepted for a single entry.
const MaxCredits = 30

// ValidateCredits reports whether credits is non-negative, finite, at most
// MaxCredits and a multiple of 0.5.
func ValidateCredits(credits float64) bool {
	if math.IsNaN(credits) || math.IsInf(credits, 0) {
		return false
	}
	if credits < 0 || credits > MaxCredits {
		return false
	}
	doubled := credits * 2
	return doubled == math.Trunc(doubled)
}

// ValidateEntryInput checks the fields a caller supplies when recording credits.
func ValidateEntryInput(bucket Bucket, credits float64, track MajorTrack) error {
	if !bucket.Valid() {
		return ErrInvalidBucket
	}
	if !track.Valid() {
		return ErrInvalidMajorTrack
	}
	if !ValidateCredits(credits) {
		return ErrInvalidCredits
	}
	return nil
}

// NormalizeText trims optional free text fields.
func NormalizeText(s string) string {
	return strings.TrimSpace(s)
}
