package credit

import "errors"

var (
	// ErrInvalidCredits indicates a credit value outside 0..MaxCredits or not in half units.
	ErrInvalidCredits = errors.New("invalid credit value")
	// ErrInvalidBucket indicates an unknown bucket.
	ErrInvalidBucket = errors.New("invalid bucket")
	// ErrInvalidMajorTrack indicates an unknown major track.
	ErrInvalidMajorTrack = errors.New("invalid major track")
	// ErrInvalidTerm indicates a term key that is not of the form {year}-{1|2}.
	ErrInvalidTerm = errors.New("invalid term")
)
