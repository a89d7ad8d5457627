package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/repository"
)

// Method names served by the store.
const (
	MethodFindUser       = "users.find"
	MethodUpsertUser     = "users.upsert"
	MethodGetProfile     = "profiles.get"
	MethodUpsertProfile  = "profiles.upsert"
	MethodListEntries    = "entries.list"
	MethodReplaceEntries = "entries.replace"
)

type findUserParams struct {
	ExternalID string `json:"external_id"`
}

type userIDParams struct {
	UserID string `json:"user_id"`
}

type replaceEntriesParams struct {
	UserID  string         `json:"user_id"`
	Entries []credit.Entry `json:"entries"`
}

type entriesResult struct {
	Entries []credit.Entry `json:"entries"`
}

// Handler dispatches JSON-RPC calls onto a RemoteStore.
type Handler struct {
	store  reconcile.RemoteStore
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(store reconcile.RemoteStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{store: store, logger: logger}
}

// Handle implements transport.RPCHandler.
func (h *Handler) Handle(ctx context.Context, clientID, method string, params json.RawMessage) (any, error) {
	result, err := h.dispatch(ctx, method, params)
	if err != nil {
		h.logger.Debug("rpc failed", "client_id", clientID, "method", method, "error", err)
		return nil, toRPCError(err)
	}
	return result, nil
}

func (h *Handler) dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodFindUser:
		var p findUserParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return h.store.FindUser(ctx, p.ExternalID)

	case MethodUpsertUser:
		var u reconcile.RemoteUser
		if err := decodeParams(params, &u); err != nil {
			return nil, err
		}
		return h.store.UpsertUser(ctx, &u)

	case MethodGetProfile:
		var p userIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return h.store.GetProfile(ctx, p.UserID)

	case MethodUpsertProfile:
		var p reconcile.RemoteProfile
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := h.store.UpsertProfile(ctx, &p); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case MethodListEntries:
		var p userIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		entries, err := h.store.ListEntries(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []credit.Entry{}
		}
		return entriesResult{Entries: entries}, nil

	case MethodReplaceEntries:
		var p replaceEntriesParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := h.store.ReplaceEntries(ctx, p.UserID, p.Entries); err != nil {
			return nil, err
		}
		return struct{}{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing params", repository.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}
	return nil
}
