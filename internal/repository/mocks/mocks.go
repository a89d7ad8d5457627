package mocks

import (
	"context"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
	"github.com/stretchr/testify/mock"
)

// RemoteStore is a mock for reconcile.RemoteStore.
type RemoteStore struct {
	mock.Mock
}

func (m *RemoteStore) FindUser(ctx context.Context, externalID string) (*reconcile.RemoteUser, error) {
	args := m.Called(ctx, externalID)
	if u, ok := args.Get(0).(*reconcile.RemoteUser); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RemoteStore) UpsertUser(ctx context.Context, user *reconcile.RemoteUser) (*reconcile.RemoteUser, error) {
	args := m.Called(ctx, user)
	if u, ok := args.Get(0).(*reconcile.RemoteUser); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RemoteStore) GetProfile(ctx context.Context, userID string) (*reconcile.RemoteProfile, error) {
	args := m.Called(ctx, userID)
	if p, ok := args.Get(0).(*reconcile.RemoteProfile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RemoteStore) UpsertProfile(ctx context.Context, profile *reconcile.RemoteProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *RemoteStore) ListEntries(ctx context.Context, userID string) ([]credit.Entry, error) {
	args := m.Called(ctx, userID)
	if list, ok := args.Get(0).([]credit.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RemoteStore) ReplaceEntries(ctx context.Context, userID string, entries []credit.Entry) error {
	args := m.Called(ctx, userID, entries)
	return args.Error(0)
}

// IdentityProvider is a mock for identity.Provider.
type IdentityProvider struct {
	mock.Mock
}

func (m *IdentityProvider) BeginInteractiveSignIn(ctx context.Context, redirectTarget string) (string, error) {
	args := m.Called(ctx, redirectTarget)
	return args.String(0), args.Error(1)
}

func (m *IdentityProvider) CompleteSessionFromCallback(ctx context.Context, callbackURL string) (*identity.Session, error) {
	args := m.Called(ctx, callbackURL)
	if s, ok := args.Get(0).(*identity.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IdentityProvider) GetCurrentSession(ctx context.Context) (*identity.Session, error) {
	args := m.Called(ctx)
	if s, ok := args.Get(0).(*identity.Session); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IdentityProvider) EndSession(ctx context.Context, scope identity.Scope) error {
	args := m.Called(ctx, scope)
	return args.Error(0)
}

// IdentityStore is a mock for identity.Store.
type IdentityStore struct {
	mock.Mock
}

func (m *IdentityStore) LoadIdentity(ctx context.Context) (*identity.Record, error) {
	args := m.Called(ctx)
	if rec, ok := args.Get(0).(*identity.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IdentityStore) SaveIdentity(ctx context.Context, rec *identity.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *IdentityStore) ClearIdentity(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// LocalStore is a mock for tracker.LocalStore.
type LocalStore struct {
	mock.Mock
}

func (m *LocalStore) LoadLedger(ctx context.Context) (*tracker.LedgerDocument, error) {
	args := m.Called(ctx)
	if doc, ok := args.Get(0).(*tracker.LedgerDocument); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LocalStore) SaveLedger(ctx context.Context, doc *tracker.LedgerDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *LocalStore) LoadProfile(ctx context.Context) (*tracker.Profile, error) {
	args := m.Called(ctx)
	if p, ok := args.Get(0).(*tracker.Profile); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LocalStore) SaveProfile(ctx context.Context, profile *tracker.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActivityRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
