package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
	"github.com/rpggio/gradcredits/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type accountStub struct {
	account    reconcile.Account
	beginFn    func(context.Context) (string, error)
	completeFn func(context.Context, string) (*reconcile.SignInResult, error)
	signOutFn  func(context.Context, identity.Scope) error
	syncFn     func(context.Context) (reconcile.Direction, error)
	dismissed  bool
}

func (a *accountStub) Account() reconcile.Account { return a.account }
func (a *accountStub) BeginSignIn(ctx context.Context) (string, error) {
	return a.beginFn(ctx)
}
func (a *accountStub) CompleteSignIn(ctx context.Context, callbackURL string) (*reconcile.SignInResult, error) {
	return a.completeFn(ctx, callbackURL)
}
func (a *accountStub) SignOut(ctx context.Context, scope identity.Scope) error {
	return a.signOutFn(ctx, scope)
}
func (a *accountStub) DismissError() {
	a.dismissed = true
	a.account.LastError = ""
}
func (a *accountStub) Sync(ctx context.Context) (reconcile.Direction, error) {
	return a.syncFn(ctx)
}

type activityStub struct {
	listFn func(context.Context, activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

func (s activityStub) GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	return s.listFn(ctx, opts)
}

func newTracker(t *testing.T) *tracker.Service {
	t.Helper()
	store := &mocks.LocalStore{}
	store.On("SaveLedger", mock.Anything, mock.Anything).Return(nil)
	store.On("SaveProfile", mock.Anything, mock.Anything).Return(nil)
	return tracker.NewService(store, tracker.Options{}, nil)
}

func newTestHandler(t *testing.T, accounts *accountStub, act activityStub) (*Handler, *tracker.Service) {
	t.Helper()
	trk := newTracker(t)
	if accounts == nil {
		accounts = &accountStub{}
	}
	return NewHandler(Services{Tracker: trk, Accounts: accounts, Activity: act}, nil), trk
}

func call(t *testing.T, h *Handler, method string, params any) (any, error) {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		raw = data
	}
	return h.Handle(context.Background(), method, raw)
}

func requireAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, code, apiErr.Code)
}

func TestHandler_AddAndListCredits(t *testing.T) {
	h, _ := newTestHandler(t, nil, activityStub{})

	res, err := call(t, h, "add_credit", map[string]any{
		"term": "1-1", "bucket": "LIBERAL", "credits": 3, "course_name": "Writing",
	})
	require.NoError(t, err)
	added := res.(EntryResponse)
	require.NotEmpty(t, added.Entry.ID)
	require.Equal(t, credit.BucketLiberal, added.Entry.Bucket)
	require.Empty(t, added.SyncWarning)

	_, err = call(t, h, "add_credit", map[string]any{"term": "2-1", "bucket": "MAJOR_REQUIRED", "credits": 2.5})
	require.NoError(t, err)

	res, err = call(t, h, "list_credits", map[string]any{"term": "1-1"})
	require.NoError(t, err)
	list := res.(CreditsResponse)
	require.Len(t, list.Entries, 1)
	require.Equal(t, 3.0, list.Total)

	res, err = call(t, h, "list_credits", nil)
	require.NoError(t, err)
	require.Len(t, res.(CreditsResponse).Entries, 2)
	require.Equal(t, 5.5, res.(CreditsResponse).Total)
}

func TestHandler_AddCreditValidation(t *testing.T) {
	h, _ := newTestHandler(t, nil, activityStub{})

	_, err := call(t, h, "add_credit", map[string]any{"term": "1-1", "bucket": "LIBERAL"})
	requireAPIError(t, err, "INVALID_PARAMS")

	_, err = call(t, h, "add_credit", map[string]any{"term": "1-1", "bucket": "LIBERAL", "credits": 0.3})
	requireAPIError(t, err, "INVALID_CREDITS")

	_, err = call(t, h, "add_credit", map[string]any{"term": "1-1", "bucket": "ART", "credits": 1})
	requireAPIError(t, err, "INVALID_BUCKET")

	_, err = call(t, h, "add_credit", map[string]any{"term": "9-1", "bucket": "LIBERAL", "credits": 1})
	requireAPIError(t, err, "UNKNOWN_TERM")

	_, err = call(t, h, "add_credit", map[string]any{"term": "spring", "bucket": "LIBERAL", "credits": 1})
	requireAPIError(t, err, "INVALID_TERM")

	_, err = h.Handle(context.Background(), "add_credit", json.RawMessage(`{"credits":"three"}`))
	requireAPIError(t, err, "INVALID_PARAMS")
}

func TestHandler_UpdateAndRemoveCredit(t *testing.T) {
	h, trk := newTestHandler(t, nil, activityStub{})
	entry, _, err := trk.AddCredit(context.Background(), tracker.AddCreditRequest{
		Term: "1-2", Bucket: credit.BucketMajorElective, Credits: 3,
	})
	require.NoError(t, err)

	res, err := call(t, h, "update_credit", map[string]any{"id": entry.ID, "credits": 4, "note": "retake"})
	require.NoError(t, err)
	require.Equal(t, 4.0, res.(EntryResponse).Entry.Credits)
	require.Equal(t, "retake", res.(EntryResponse).Entry.Note)

	_, err = call(t, h, "update_credit", map[string]any{"id": "missing", "credits": 1})
	requireAPIError(t, err, "ENTRY_NOT_FOUND")

	res, err = call(t, h, "remove_credit", map[string]any{"id": "missing"})
	require.NoError(t, err)
	require.False(t, res.(RemoveCreditResponse).Removed)

	res, err = call(t, h, "remove_credit", map[string]any{"id": entry.ID})
	require.NoError(t, err)
	require.True(t, res.(RemoveCreditResponse).Removed)
	require.Zero(t, trk.Len())
}

func TestHandler_ClearCreditsRequiresConfirm(t *testing.T) {
	h, trk := newTestHandler(t, nil, activityStub{})
	_, _, err := trk.AddCredit(context.Background(), tracker.AddCreditRequest{Term: "1-1", Bucket: credit.BucketLiberal, Credits: 2})
	require.NoError(t, err)

	_, err = call(t, h, "clear_credits", nil)
	requireAPIError(t, err, "CONFIRMATION_REQUIRED")
	require.Equal(t, 1, trk.Len())

	res, err := call(t, h, "clear_credits", map[string]any{"confirm": true})
	require.NoError(t, err)
	require.Equal(t, 1, res.(ClearCreditsResponse).Removed)
	require.Zero(t, trk.Len())
}

func TestHandler_Terms(t *testing.T) {
	h, trk := newTestHandler(t, nil, activityStub{})

	res, err := call(t, h, "list_terms", nil)
	require.NoError(t, err)
	require.Len(t, res.(TermsResponse).Terms, 8)

	res, err = call(t, h, "add_term", map[string]any{"term": "5-1"})
	require.NoError(t, err)
	terms := res.(TermsResponse).Terms
	require.Len(t, terms, 9)
	require.Equal(t, "5-1", terms[8].Term)
	require.False(t, terms[8].Canonical)

	_, err = call(t, h, "add_term", map[string]any{"term": "5-1"})
	requireAPIError(t, err, "TERM_EXISTS")

	_, err = call(t, h, "remove_term", map[string]any{"term": "1-1"})
	requireAPIError(t, err, "CANONICAL_TERM")

	_, _, err = trk.AddCredit(context.Background(), tracker.AddCreditRequest{Term: "5-1", Bucket: credit.BucketLiberal, Credits: 1})
	require.NoError(t, err)
	_, err = call(t, h, "remove_term", map[string]any{"term": "5-1"})
	requireAPIError(t, err, "TERM_IN_USE")

	_, err = call(t, h, "remove_term", map[string]any{"term": "6-2"})
	requireAPIError(t, err, "TERM_NOT_FOUND")
}

func TestHandler_ProgressAndSecondMajor(t *testing.T) {
	h, _ := newTestHandler(t, nil, activityStub{})

	res, err := call(t, h, "get_progress", nil)
	require.NoError(t, err)
	progress := res.(ProgressResponse)
	require.False(t, progress.SecondMajorEnabled)
	require.Len(t, progress.Requirements, 4)
	require.Equal(t, 62.0, progress.Requirements[0].Required)

	res, err = call(t, h, "set_second_major", map[string]any{"enabled": true})
	require.NoError(t, err)
	progress = res.(ProgressResponse)
	require.True(t, progress.SecondMajorEnabled)
	require.Len(t, progress.Requirements, 5)
	require.Equal(t, 48.0, progress.Requirements[0].Required)
}

func TestHandler_Account(t *testing.T) {
	accounts := &accountStub{
		account: reconcile.Account{State: identity.StateAnonymous, LastError: "sync push: boom"},
		beginFn: func(context.Context) (string, error) { return "https://idp/auth?state=x", nil },
		completeFn: func(_ context.Context, cb string) (*reconcile.SignInResult, error) {
			if cb == "bad" {
				return nil, &reconcile.AuthError{Op: "complete", Err: identity.ErrInvalidCallback}
			}
			return &reconcile.SignInResult{User: identity.User{ID: "u1"}, Direction: reconcile.DirectionPush}, nil
		},
		signOutFn: func(_ context.Context, scope identity.Scope) error {
			if scope != identity.ScopeGlobal {
				return errors.New("unexpected scope")
			}
			return nil
		},
		syncFn: func(context.Context) (reconcile.Direction, error) {
			return "", reconcile.ErrNotAuthenticated
		},
	}
	h, _ := newTestHandler(t, accounts, activityStub{})

	res, err := call(t, h, "begin_sign_in", nil)
	require.NoError(t, err)
	require.Equal(t, "https://idp/auth?state=x", res.(SignInURLResponse).URL)

	res, err = call(t, h, "complete_sign_in", map[string]any{"callback_url": "http://localhost/cb?code=1"})
	require.NoError(t, err)
	require.Equal(t, reconcile.DirectionPush, res.(*reconcile.SignInResult).Direction)

	_, err = call(t, h, "complete_sign_in", map[string]any{"callback_url": "bad"})
	requireAPIError(t, err, "SIGN_IN_FAILED")

	_, err = call(t, h, "complete_sign_in", nil)
	requireAPIError(t, err, "INVALID_PARAMS")

	_, err = call(t, h, "sign_out", map[string]any{"scope": "global"})
	require.NoError(t, err)
	_, err = call(t, h, "sign_out", map[string]any{"scope": "everywhere"})
	requireAPIError(t, err, "INVALID_PARAMS")

	res, err = call(t, h, "get_account", nil)
	require.NoError(t, err)
	require.Equal(t, "sync push: boom", res.(reconcile.Account).LastError)

	res, err = call(t, h, "dismiss_error", nil)
	require.NoError(t, err)
	require.True(t, accounts.dismissed)
	require.Empty(t, res.(reconcile.Account).LastError)

	_, err = call(t, h, "sync_now", nil)
	requireAPIError(t, err, "NOT_SIGNED_IN")
}

func TestHandler_RecentActivity(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entryID := "e1"
	var seen []activity.ListActivityOptions
	act := activityStub{listFn: func(_ context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
		seen = append(seen, opts)
		for _, typ := range opts.Types {
			if !typ.Valid() {
				return nil, activity.ErrInvalidInput
			}
		}
		return []activity.ActivityEntry{{ID: 1, ActivityType: activity.TypeEntryAdded, EntryID: &entryID, Summary: "added", CreatedAt: now}}, nil
	}}
	h, _ := newTestHandler(t, nil, act)

	res, err := call(t, h, "get_recent_activity", map[string]any{"entry_id": "e1", "limit": 5})
	require.NoError(t, err)
	list := res.([]ActivityEntryResponse)
	require.Len(t, list, 1)
	require.Equal(t, "e1", list[0].EntryID)
	require.Equal(t, "e1", *seen[0].EntryID)
	require.Equal(t, 5, seen[0].Limit)
	require.Nil(t, seen[0].Since)

	_, err = call(t, h, "get_recent_activity", map[string]any{
		"types": []string{"pushed", "sync_failed"},
		"since": "2024-05-01T00:00:00Z",
	})
	require.NoError(t, err)
	last := seen[len(seen)-1]
	require.Equal(t, []activity.ActivityType{activity.TypePushed, activity.TypeSyncFailed}, last.Types)
	require.NotNil(t, last.Since)
	require.True(t, last.Since.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	_, err = call(t, h, "get_recent_activity", map[string]any{"types": []string{"bogus"}})
	requireAPIError(t, err, "INVALID_PARAMS")

	_, err = call(t, h, "get_recent_activity", map[string]any{"since": "yesterday"})
	requireAPIError(t, err, "INVALID_PARAMS")
}

func TestHandler_UnknownTool(t *testing.T) {
	h, _ := newTestHandler(t, nil, activityStub{})
	_, err := call(t, h, "delete_everything", nil)
	requireAPIError(t, err, "UNKNOWN_TOOL")
}

func TestMapError_PassesThroughUnknown(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Nil(t, MapError(errors.New("disk full")))
	apiErr := MapError(&reconcile.SyncError{Op: "push", Err: errors.New("boom")})
	require.Equal(t, "SYNC_FAILED", apiErr.Code)
	require.Equal(t, "ALREADY_SIGNED_IN", MapError(&reconcile.AuthError{Op: "complete sign-in", Err: reconcile.ErrAlreadySignedIn}).Code)
	require.Equal(t, "SYNC_PENDING", MapError(reconcile.ErrNotReconciled).Code)
}
