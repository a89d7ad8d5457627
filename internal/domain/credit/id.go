package credit

import "github.com/google/uuid"

// NewEntryID returns a time-ordered identifier: a millisecond timestamp
// prefix followed by random bits (UUIDv7).
func NewEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
