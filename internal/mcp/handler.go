package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
)

// Handler dispatches MCP tool calls.
type Handler struct {
	tracker  TrackerService
	accounts AccountService
	activity ActivityService
	logger   *slog.Logger
}

// NewHandler creates a new MCP handler.
func NewHandler(services Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		tracker:  services.Tracker,
		accounts: services.Accounts,
		activity: services.Activity,
		logger:   logger,
	}
}

// Handle dispatches a tool call to domain services.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "list_terms":
		return TermsResponse{Terms: h.tracker.Terms()}, nil

	case "add_term":
		var req TermParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if err := h.tracker.AddTerm(ctx, req.Term); err != nil {
			return nil, mapError(err)
		}
		return TermsResponse{Terms: h.tracker.Terms()}, nil

	case "remove_term":
		var req TermParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if err := h.tracker.RemoveTerm(ctx, req.Term); err != nil {
			return nil, mapError(err)
		}
		return TermsResponse{Terms: h.tracker.Terms()}, nil

	case "add_credit":
		var req AddCreditParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.Credits == nil {
			return nil, invalidParams("credits is required")
		}
		entry, warning, err := h.tracker.AddCredit(ctx, tracker.AddCreditRequest{
			Term:       req.Term,
			Bucket:     req.Bucket,
			Credits:    *req.Credits,
			CourseName: req.CourseName,
			MajorTrack: req.MajorTrack,
			Note:       req.Note,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return EntryResponse{Entry: entry, SyncWarning: warningText(warning)}, nil

	case "update_credit":
		var req UpdateCreditParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ID == "" || req.Credits == nil {
			return nil, invalidParams("id and credits are required")
		}
		entry, warning, err := h.tracker.UpdateCredit(ctx, tracker.UpdateCreditRequest{
			ID:         req.ID,
			Credits:    *req.Credits,
			CourseName: req.CourseName,
			MajorTrack: req.MajorTrack,
			Note:       req.Note,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return EntryResponse{Entry: entry, SyncWarning: warningText(warning)}, nil

	case "remove_credit":
		var req EntryIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ID == "" {
			return nil, invalidParams("id is required")
		}
		removed, warning, err := h.tracker.RemoveCredit(ctx, req.ID)
		if err != nil {
			return nil, mapError(err)
		}
		return RemoveCreditResponse{Removed: removed, SyncWarning: warningText(warning)}, nil

	case "clear_credits":
		var req ClearCreditsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if !req.Confirm {
			return nil, &APIError{
				Code:         "CONFIRMATION_REQUIRED",
				Message:      "clear_credits deletes every entry",
				RecoveryHint: "Call again with confirm=true",
			}
		}
		n, warning, err := h.tracker.ClearCredits(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return ClearCreditsResponse{Removed: n, SyncWarning: warningText(warning)}, nil

	case "list_credits":
		var req ListCreditsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		entries := h.tracker.Entries(req.Term)
		total := 0.0
		for _, e := range entries {
			total += e.Credits
		}
		if entries == nil {
			entries = []credit.Entry{}
		}
		return CreditsResponse{Term: req.Term, Entries: entries, Total: total}, nil

	case "get_progress":
		return ProgressResponse{Progress: h.tracker.Progress()}, nil

	case "set_second_major":
		var req SetSecondMajorParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		progress, warning, err := h.tracker.SetSecondMajor(ctx, req.Enabled)
		if err != nil {
			return nil, mapError(err)
		}
		return ProgressResponse{Progress: *progress, SyncWarning: warningText(warning)}, nil

	case "begin_sign_in":
		url, err := h.accounts.BeginSignIn(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return SignInURLResponse{URL: url}, nil

	case "complete_sign_in":
		var req CompleteSignInParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.CallbackURL == "" {
			return nil, invalidParams("callback_url is required")
		}
		result, err := h.accounts.CompleteSignIn(ctx, req.CallbackURL)
		if err != nil {
			return nil, mapError(err)
		}
		return result, nil

	case "sign_out":
		var req SignOutParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		scope := identity.ScopeLocal
		switch req.Scope {
		case "", string(identity.ScopeLocal):
		case string(identity.ScopeGlobal):
			scope = identity.ScopeGlobal
		default:
			return nil, invalidParams("scope must be local or global")
		}
		if err := h.accounts.SignOut(ctx, scope); err != nil {
			return nil, mapError(err)
		}
		return h.accounts.Account(), nil

	case "get_account":
		return h.accounts.Account(), nil

	case "dismiss_error":
		h.accounts.DismissError()
		return h.accounts.Account(), nil

	case "sync_now":
		dir, err := h.accounts.Sync(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return SyncResponse{Direction: dir, Account: h.accounts.Account()}, nil

	case "get_recent_activity":
		var req GetRecentActivityParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.recentActivity(ctx, req)
	}

	h.logger.Warn("unknown tool", "tool", method)
	return nil, &APIError{Code: "UNKNOWN_TOOL", Message: fmt.Sprintf("unknown tool %q", method)}
}

func (h *Handler) recentActivity(ctx context.Context, req GetRecentActivityParams) (any, error) {
	opts := activity.ListActivityOptions{Limit: req.Limit, Offset: req.Offset}
	if req.EntryID != "" {
		opts.EntryID = &req.EntryID
	}
	if req.Term != "" {
		opts.Term = &req.Term
	}
	for _, t := range req.Types {
		opts.Types = append(opts.Types, activity.ActivityType(t))
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return nil, invalidParams("since must be an RFC 3339 timestamp")
		}
		opts.Since = &since
	}

	entries, err := h.activity.GetRecentActivity(ctx, opts)
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]ActivityEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toActivityResponse(e))
	}
	return out, nil
}

func toActivityResponse(e activity.ActivityEntry) ActivityEntryResponse {
	resp := ActivityEntryResponse{
		ID:        e.ID,
		Type:      e.ActivityType,
		Summary:   e.Summary,
		CreatedAt: e.CreatedAt,
	}
	if e.EntryID != nil {
		resp.EntryID = *e.EntryID
	}
	if e.Term != nil {
		resp.Term = *e.Term
	}
	return resp
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return invalidParams("malformed arguments: %v", err)
	}
	return nil
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}

func warningText(w *tracker.SyncWarning) string {
	if w == nil {
		return ""
	}
	return w.Message
}
