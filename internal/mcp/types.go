package mcp

import (
	"time"

	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
)

type TermParams struct {
	Term string `json:"term"`
}

type AddCreditParams struct {
	Term       string            `json:"term"`
	Bucket     credit.Bucket     `json:"bucket"`
	Credits    *float64          `json:"credits"`
	CourseName string            `json:"course_name,omitempty"`
	MajorTrack credit.MajorTrack `json:"major_track,omitempty"`
	Note       string            `json:"note,omitempty"`
}

type UpdateCreditParams struct {
	ID         string            `json:"id"`
	Credits    *float64          `json:"credits"`
	CourseName string            `json:"course_name,omitempty"`
	MajorTrack credit.MajorTrack `json:"major_track,omitempty"`
	Note       string            `json:"note,omitempty"`
}

type EntryIDParams struct {
	ID string `json:"id"`
}

type ClearCreditsParams struct {
	Confirm bool `json:"confirm"`
}

type ListCreditsParams struct {
	Term string `json:"term,omitempty"`
}

type SetSecondMajorParams struct {
	Enabled bool `json:"enabled"`
}

type CompleteSignInParams struct {
	CallbackURL string `json:"callback_url"`
}

type SignOutParams struct {
	Scope string `json:"scope,omitempty"`
}

type GetRecentActivityParams struct {
	EntryID string   `json:"entry_id,omitempty"`
	Term    string   `json:"term,omitempty"`
	Types   []string `json:"types,omitempty"`
	Since   string   `json:"since,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
}

// Responses

type TermsResponse struct {
	Terms []tracker.TermInfo `json:"terms"`
}

type EntryResponse struct {
	Entry       *credit.Entry `json:"entry"`
	SyncWarning string        `json:"sync_warning,omitempty"`
}

type RemoveCreditResponse struct {
	Removed     bool   `json:"removed"`
	SyncWarning string `json:"sync_warning,omitempty"`
}

type ClearCreditsResponse struct {
	Removed     int    `json:"removed"`
	SyncWarning string `json:"sync_warning,omitempty"`
}

type CreditsResponse struct {
	Term    string         `json:"term,omitempty"`
	Entries []credit.Entry `json:"entries"`
	Total   float64        `json:"total"`
}

type ProgressResponse struct {
	tracker.Progress
	SyncWarning string `json:"sync_warning,omitempty"`
}

type SignInURLResponse struct {
	URL string `json:"url"`
}

type SyncResponse struct {
	Direction reconcile.Direction `json:"direction"`
	Account   reconcile.Account   `json:"account"`
}

type ActivityEntryResponse struct {
	ID        int64                 `json:"id"`
	Type      activity.ActivityType `json:"type"`
	EntryID   string                `json:"entry_id,omitempty"`
	Term      string                `json:"term,omitempty"`
	Summary   string                `json:"summary"`
	CreatedAt time.Time             `json:"created_at"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
