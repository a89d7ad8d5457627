package credit

import "time"

// Bucket classifies a credit entry into one requirement category.
type Bucket string

const (
	BucketMajorRequired       Bucket = "MAJOR_REQUIRED"
	BucketMajorElective       Bucket = "MAJOR_ELECTIVE"
	BucketLiberal             Bucket = "LIBERAL"
	BucketEngineeringCommon   Bucket = "ENGINEERING_COMMON"
	BucketSecondMajorRequired Bucket = "SECOND_MAJOR_REQUIRED"
	BucketSecondMajorElective Bucket = "SECOND_MAJOR_ELECTIVE"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{
	BucketMajorRequired,
	BucketMajorElective,
	BucketLiberal,
	BucketEngineeringCommon,
	BucketSecondMajorRequired,
	BucketSecondMajorElective,
}

// Valid reports whether b is one of the known buckets.
func (b Bucket) Valid() bool {
	switch b {
	case BucketMajorRequired, BucketMajorElective, BucketLiberal,
		BucketEngineeringCommon, BucketSecondMajorRequired, BucketSecondMajorElective:
		return true
	}
	return false
}

// IsMajor reports whether the bucket belongs to the primary or second major.
func (b Bucket) IsMajor() bool {
	switch b {
	case BucketMajorRequired, BucketMajorElective, BucketSecondMajorRequired, BucketSecondMajorElective:
		return true
	}
	return false
}

// Label returns the human readable bucket name.
func (b Bucket) Label() string {
	switch b {
	case BucketMajorRequired:
		return "Major required"
	case BucketMajorElective:
		return "Major elective"
	case BucketLiberal:
		return "Liberal"
	case BucketEngineeringCommon:
		return "Engineering common"
	case BucketSecondMajorRequired:
		return "Second major required"
	case BucketSecondMajorElective:
		return "Second major elective"
	}
	return string(b)
}

// MajorTrack tags a major-bucket entry with the major it counts toward.
type MajorTrack string

const (
	TrackPrimary   MajorTrack = "PRIMARY"
	TrackSecondary MajorTrack = "SECONDARY"
)

// Valid reports whether t is empty or a known track.
func (t MajorTrack) Valid() bool {
	return t == "" || t == TrackPrimary || t == TrackSecondary
}

// Entry is one recorded course credit.
type Entry struct {
	ID         string     `json:"id"`
	Term       string     `json:"term"`
	Bucket     Bucket     `json:"bucket"`
	MajorTrack MajorTrack `json:"major_track,omitempty"`
	Credits    float64    `json:"credits"`
	CourseName string     `json:"course_name,omitempty"`
	Note       string     `json:"note,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
