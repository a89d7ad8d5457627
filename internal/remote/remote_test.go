package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/repository"
	"github.com/rpggio/gradcredits/internal/repository/mocks"
	"github.com/rpggio/gradcredits/internal/transport"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type keyResolver struct{}

func (keyResolver) ResolveClient(_ context.Context, keyHash string) (string, error) {
	if keyHash == transport.HashToken("secret") {
		return "client1", nil
	}
	return "", transport.ErrUnauthorized
}

func newTestClient(t *testing.T, store *mocks.RemoteStore, key string) *Client {
	t.Helper()
	router := transport.NewServer(NewHandler(store, nil), transport.Options{
		Auth: transport.AuthMiddleware(keyResolver{}),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return NewClient(server.URL, ClientOptions{APIKey: key, Timeout: 2 * time.Second}, nil)
}

func TestClient_FindUser(t *testing.T) {
	store := &mocks.RemoteStore{}
	store.On("FindUser", mock.Anything, "ext-1").
		Return(&reconcile.RemoteUser{ID: "u1", ExternalID: "ext-1", Email: "a@b.c"}, nil)
	store.On("FindUser", mock.Anything, "ext-2").Return(nil, repository.ErrNotFound)

	client := newTestClient(t, store, "secret")

	user, err := client.FindUser(context.Background(), "ext-1")
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, "a@b.c", user.Email)

	_, err = client.FindUser(context.Background(), "ext-2")
	require.ErrorIs(t, err, repository.ErrNotFound)
	store.AssertExpectations(t)
}

func TestClient_UpsertAndProfile(t *testing.T) {
	store := &mocks.RemoteStore{}
	store.On("UpsertUser", mock.Anything, mock.MatchedBy(func(u *reconcile.RemoteUser) bool {
		return u.ExternalID == "ext-1" && u.Email == "a@b.c"
	})).Return(&reconcile.RemoteUser{ID: "u1", ExternalID: "ext-1", Email: "a@b.c"}, nil)
	store.On("UpsertProfile", mock.Anything, mock.MatchedBy(func(p *reconcile.RemoteProfile) bool {
		return p.UserID == "u1" && p.SecondMajorEnabled
	})).Return(nil)
	store.On("GetProfile", mock.Anything, "u1").
		Return(&reconcile.RemoteProfile{UserID: "u1", SecondMajorEnabled: true, Settings: json.RawMessage(`{"a":1}`)}, nil)
	store.On("GetProfile", mock.Anything, "u2").Return(nil, repository.ErrNotFound)

	client := newTestClient(t, store, "secret")
	ctx := context.Background()

	user, err := client.UpsertUser(ctx, &reconcile.RemoteUser{ExternalID: "ext-1", Email: "a@b.c"})
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)

	require.NoError(t, client.UpsertProfile(ctx, &reconcile.RemoteProfile{UserID: "u1", SecondMajorEnabled: true}))

	profile, err := client.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.True(t, profile.SecondMajorEnabled)
	require.JSONEq(t, `{"a":1}`, string(profile.Settings))

	_, err = client.GetProfile(ctx, "u2")
	require.ErrorIs(t, err, repository.ErrNotFound)
	store.AssertExpectations(t)
}

func TestClient_Entries(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	entries := []credit.Entry{
		{ID: "e1", Term: "1-1", Bucket: credit.BucketLiberal, Credits: 3, CreatedAt: created},
		{ID: "e2", Term: "1-2", Bucket: credit.BucketMajorRequired, MajorTrack: credit.TrackPrimary, Credits: 2.5, CreatedAt: created.Add(time.Minute)},
	}

	store := &mocks.RemoteStore{}
	store.On("ListEntries", mock.Anything, "u1").Return(entries, nil)
	store.On("ListEntries", mock.Anything, "u2").Return([]credit.Entry{}, nil)
	store.On("ReplaceEntries", mock.Anything, "u1", mock.MatchedBy(func(list []credit.Entry) bool {
		return len(list) == 2 && list[0].ID == "e1" && list[1].MajorTrack == credit.TrackPrimary
	})).Return(nil)
	store.On("ReplaceEntries", mock.Anything, "u2", mock.MatchedBy(func(list []credit.Entry) bool {
		return list != nil && len(list) == 0
	})).Return(nil)
	store.On("ReplaceEntries", mock.Anything, "u3", mock.Anything).Return(repository.ErrForeignKeyViolation)

	client := newTestClient(t, store, "secret")
	ctx := context.Background()

	got, err := client.ListEntries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "e1", got[0].ID)
	require.True(t, got[1].CreatedAt.Equal(created.Add(time.Minute)))
	require.InDelta(t, 2.5, got[1].Credits, 1e-9)

	empty, err := client.ListEntries(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	require.NoError(t, client.ReplaceEntries(ctx, "u1", entries))
	require.NoError(t, client.ReplaceEntries(ctx, "u2", nil))
	require.ErrorIs(t, client.ReplaceEntries(ctx, "u3", entries), repository.ErrForeignKeyViolation)
	store.AssertExpectations(t)
}

func TestClient_Unauthorized(t *testing.T) {
	store := &mocks.RemoteStore{}
	client := newTestClient(t, store, "wrong")

	_, err := client.FindUser(context.Background(), "ext-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "http 401")
	store.AssertNotCalled(t, "FindUser", mock.Anything, mock.Anything)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client := NewClient(server.URL, ClientOptions{Timeout: 50 * time.Millisecond}, nil)
	_, err := client.FindUser(context.Background(), "ext-1")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHandler_Errors(t *testing.T) {
	store := &mocks.RemoteStore{}
	store.On("UpsertUser", mock.Anything, mock.Anything).Return(nil, repository.ErrConflict)
	h := NewHandler(store, nil)
	ctx := context.Background()

	var coded transport.CodedError

	_, err := h.Handle(ctx, "c", "users.delete", json.RawMessage(`{}`))
	require.ErrorAs(t, err, &coded)
	require.Equal(t, transport.ErrMethodNotFound, coded.RPCCode())

	_, err = h.Handle(ctx, "c", MethodFindUser, nil)
	require.ErrorAs(t, err, &coded)
	require.Equal(t, transport.ErrInvalidParams, coded.RPCCode())

	_, err = h.Handle(ctx, "c", MethodReplaceEntries, json.RawMessage(`{"entries":"nope"}`))
	require.ErrorAs(t, err, &coded)
	require.Equal(t, transport.ErrInvalidParams, coded.RPCCode())

	_, err = h.Handle(ctx, "c", MethodUpsertUser, json.RawMessage(`{"external_id":"x","email":"e"}`))
	require.ErrorAs(t, err, &coded)
	require.Equal(t, transport.ErrConflictCode, coded.RPCCode())
	require.ErrorIs(t, err, repository.ErrConflict)
}
