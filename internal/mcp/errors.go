package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/ledger"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalidParams(format string, args ...any) *APIError {
	return &APIError{Code: "INVALID_PARAMS", Message: fmt.Sprintf(format, args...)}
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, credit.ErrInvalidCredits):
		return &APIError{Code: "INVALID_CREDITS", Message: err.Error(), RecoveryHint: "Use a multiple of 0.5 between 0 and 30"}
	case errors.Is(err, credit.ErrInvalidBucket):
		return &APIError{Code: "INVALID_BUCKET", Message: err.Error(), RecoveryHint: "Read gradcredits://docs/buckets for valid buckets"}
	case errors.Is(err, credit.ErrInvalidMajorTrack):
		return &APIError{Code: "INVALID_MAJOR_TRACK", Message: err.Error(), RecoveryHint: "Use PRIMARY, SECONDARY or omit"}
	case errors.Is(err, credit.ErrInvalidTerm):
		return &APIError{Code: "INVALID_TERM", Message: err.Error(), RecoveryHint: "Terms look like 3-2 (year 3, half 2)"}
	case errors.Is(err, tracker.ErrUnknownTerm):
		return &APIError{Code: "UNKNOWN_TERM", Message: err.Error(), RecoveryHint: "Call add_term first"}
	case errors.Is(err, ledger.ErrEntryNotFound):
		return &APIError{Code: "ENTRY_NOT_FOUND", Message: "credit entry not found", RecoveryHint: "Call list_credits for current ids"}
	case errors.Is(err, ledger.ErrTermExists):
		return &APIError{Code: "TERM_EXISTS", Message: err.Error()}
	case errors.Is(err, ledger.ErrTermNotFound):
		return &APIError{Code: "TERM_NOT_FOUND", Message: err.Error(), RecoveryHint: "Call list_terms"}
	case errors.Is(err, ledger.ErrCanonicalTerm):
		return &APIError{Code: "CANONICAL_TERM", Message: err.Error()}
	case errors.Is(err, ledger.ErrTermInUse):
		return &APIError{Code: "TERM_IN_USE", Message: err.Error(), RecoveryHint: "Remove the term's credit entries first"}
	case errors.Is(err, tracker.ErrInvalidInput), errors.Is(err, activity.ErrInvalidInput):
		return &APIError{Code: "INVALID_PARAMS", Message: err.Error()}
	case errors.Is(err, reconcile.ErrAlreadySignedIn):
		return &APIError{Code: "ALREADY_SIGNED_IN", Message: err.Error(), RecoveryHint: "Call sign_out before signing in again"}
	case errors.Is(err, reconcile.ErrNotReconciled):
		return &APIError{Code: "SYNC_PENDING", Message: err.Error(), RecoveryHint: "Retry once sign-in finishes"}
	case errors.Is(err, reconcile.ErrNotAuthenticated):
		return &APIError{Code: "NOT_SIGNED_IN", Message: "not signed in", RecoveryHint: "Call begin_sign_in"}
	case errors.Is(err, identity.ErrNotConfigured):
		return &APIError{Code: "SIGN_IN_UNAVAILABLE", Message: err.Error(), RecoveryHint: "Configure oauth.client_id"}
	case errors.Is(err, identity.ErrInvalidCallback), errors.Is(err, reconcile.ErrNoSession):
		return &APIError{Code: "SIGN_IN_FAILED", Message: err.Error(), RecoveryHint: "Start again with begin_sign_in"}
	}

	var syncErr *reconcile.SyncError
	if errors.As(err, &syncErr) {
		return &APIError{Code: "SYNC_FAILED", Message: err.Error(), RecoveryHint: "Local data is kept; retry with sync_now"}
	}
	var authErr *reconcile.AuthError
	if errors.As(err, &authErr) {
		return &APIError{Code: "AUTH_FAILED", Message: err.Error(), RecoveryHint: "Start again with begin_sign_in"}
	}
	return nil
}
