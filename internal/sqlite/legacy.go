package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
)

// legacyLedgerVersion is the first persisted ledger shape: camelCase fields,
// short bucket codes and a MAJOR/DUAL major tag.
const legacyLedgerVersion = 1

type legacyLedger struct {
	Transactions []legacyTxn `json:"transactions"`
	Semesters    []string    `json:"semesters"`
}

type legacyTxn struct {
	ID         string    `json:"id"`
	Term       string    `json:"term"`
	Bucket     string    `json:"bucket"`
	Major      string    `json:"major,omitempty"`
	Credits    float64   `json:"credits"`
	CourseName string    `json:"courseName,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

var legacyBuckets = map[string]credit.Bucket{
	"MR":  credit.BucketMajorRequired,
	"ME":  credit.BucketMajorElective,
	"LB":  credit.BucketLiberal,
	"EC":  credit.BucketEngineeringCommon,
	"OMR": credit.BucketSecondMajorRequired,
	"OME": credit.BucketSecondMajorElective,
}

var legacyTracks = map[string]credit.MajorTrack{
	"":      "",
	"MAJOR": credit.TrackPrimary,
	"DUAL":  credit.TrackSecondary,
}

// upgradeLegacyLedger converts a version 1 body to the current document.
func upgradeLegacyLedger(body []byte) (*tracker.LedgerDocument, error) {
	var legacy legacyLedger
	if err := json.Unmarshal(body, &legacy); err != nil {
		return nil, fmt.Errorf("decoding legacy ledger: %w", err)
	}

	doc := &tracker.LedgerDocument{
		Entries: make([]credit.Entry, 0, len(legacy.Transactions)),
		Terms:   legacy.Semesters,
	}
	for _, txn := range legacy.Transactions {
		bucket, ok := legacyBuckets[txn.Bucket]
		if !ok {
			return nil, fmt.Errorf("legacy entry %s: %w: %q", txn.ID, credit.ErrInvalidBucket, txn.Bucket)
		}
		track, ok := legacyTracks[txn.Major]
		if !ok {
			return nil, fmt.Errorf("legacy entry %s: %w: %q", txn.ID, credit.ErrInvalidMajorTrack, txn.Major)
		}
		id := txn.ID
		if id == "" {
			id = credit.NewEntryID()
		}
		doc.Entries = append(doc.Entries, credit.Entry{
			ID:         id,
			Term:       txn.Term,
			Bucket:     bucket,
			MajorTrack: track,
			Credits:    txn.Credits,
			CourseName: txn.CourseName,
			Note:       txn.Note,
			CreatedAt:  txn.CreatedAt,
		})
	}
	return doc, nil
}
