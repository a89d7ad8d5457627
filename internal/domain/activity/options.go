package activity

import "time"

// ListActivityOptions filters a listing. Nil and empty fields match everything.
type ListActivityOptions struct {
	EntryID *string
	Term    *string
	Types   []ActivityType
	// Since keeps entries created at or after the given instant.
	Since  *time.Time
	Limit  int
	Offset int
}
