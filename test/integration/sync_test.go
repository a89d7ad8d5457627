package integration_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
	"github.com/rpggio/gradcredits/internal/repository/mocks"
	"github.com/rpggio/gradcredits/internal/sqlite"
	"github.com/rpggio/gradcredits/internal/testserver"
	"github.com/rpggio/gradcredits/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var student = identity.User{ID: "google-123", Email: "s@uni.edu", Name: "Student"}

// device is one local install of the tracker pointed at a shared store server.
type device struct {
	db         *sqlite.DB
	provider   *mocks.IdentityProvider
	tracker    *tracker.Service
	reconciler *reconcile.Reconciler
	activity   *activity.Service
}

func openDB(t *testing.T, name string) *sqlite.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), name)
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(migrations.Local))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newDevice(t *testing.T, db *sqlite.DB, ts *testserver.TestServer) *device {
	t.Helper()
	return newDeviceWith(t, db, ts.Client())
}

func newDeviceWith(t *testing.T, db *sqlite.DB, remote reconcile.RemoteStore) *device {
	t.Helper()
	ctx := context.Background()

	docs := sqlite.NewDocumentStore(db)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil, nil)
	trk := tracker.NewService(docs, tracker.Options{Journal: activitySvc}, nil)
	require.NoError(t, trk.Load(ctx))

	provider := &mocks.IdentityProvider{}
	rec := reconcile.New(provider, docs, remote, trk, reconcile.Options{
		GraceWindow:   50 * time.Millisecond,
		RevokeTimeout: time.Second,
		Journal:       activitySvc,
	}, nil)
	trk.SetSyncer(rec)
	t.Cleanup(rec.Close)

	return &device{db: db, provider: provider, tracker: trk, reconciler: rec, activity: activitySvc}
}

func (d *device) signIn(t *testing.T) *reconcile.SignInResult {
	t.Helper()
	d.provider.On("CompleteSessionFromCallback", mock.Anything, "http://127.0.0.1/cb?code=c&state=s").
		Return(&identity.Session{User: student}, nil).Once()
	result, err := d.reconciler.CompleteSignIn(context.Background(), "http://127.0.0.1/cb?code=c&state=s")
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func (d *device) add(t *testing.T, term string, bucket credit.Bucket, credits float64) (*credit.Entry, *tracker.SyncWarning) {
	t.Helper()
	entry, warning, err := d.tracker.AddCredit(context.Background(), tracker.AddCreditRequest{
		Term: term, Bucket: bucket, Credits: credits,
	})
	require.NoError(t, err)
	return entry, warning
}

// gatedRemote holds FindUser until gate is closed.
type gatedRemote struct {
	reconcile.RemoteStore
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (g *gatedRemote) FindUser(ctx context.Context, externalID string) (*reconcile.RemoteUser, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.gate
	return g.RemoteStore.FindUser(ctx, externalID)
}

func entryIDs(entries []credit.Entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func remoteEntries(t *testing.T, ts *testserver.TestServer) []credit.Entry {
	t.Helper()
	ctx := context.Background()
	user, err := ts.Store.FindUser(ctx, student.ID)
	require.NoError(t, err)
	entries, err := ts.Store.ListEntries(ctx, user.ID)
	require.NoError(t, err)
	return entries
}

func TestSync_FirstSignInPushesLocalLedger(t *testing.T) {
	ts := testserver.New(t, "key", "laptop")
	a := newDevice(t, openDB(t, "a"), ts)

	_, warning := a.add(t, "1-1", credit.BucketMajorRequired, 3)
	assert.Nil(t, warning)
	a.add(t, "1-2", credit.BucketLiberal, 2)

	result := a.signIn(t)
	assert.Equal(t, reconcile.DirectionPush, result.Direction)
	assert.Equal(t, 2, result.Entries)
	assert.Empty(t, result.SyncError)
	assert.Equal(t, identity.StateAuthenticated, a.reconciler.State())

	assert.ElementsMatch(t, entryIDs(a.tracker.Entries("")), entryIDs(remoteEntries(t, ts)))

	acts, err := a.activity.GetRecentActivity(context.Background(), activity.ListActivityOptions{
		Types: []activity.ActivityType{activity.TypePushed},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, acts)
}

func TestSync_SecondDevicePullsRemoteLedger(t *testing.T) {
	ts := testserver.New(t, "key", "laptop")
	a := newDevice(t, openDB(t, "a"), ts)
	a.add(t, "1-1", credit.BucketMajorRequired, 3)
	a.add(t, "2-1", credit.BucketEngineeringCommon, 4)
	a.signIn(t)

	b := newDevice(t, openDB(t, "b"), ts)
	b.add(t, "3-1", credit.BucketLiberal, 1)

	result := b.signIn(t)
	assert.Equal(t, reconcile.DirectionPull, result.Direction)
	assert.Equal(t, 2, result.Entries)
	assert.ElementsMatch(t, entryIDs(a.tracker.Entries("")), entryIDs(b.tracker.Entries("")))
	assert.InDelta(t, 7, b.tracker.Progress().Totals.Graduation, 1e-9)

	// The pulled ledger is what survives a restart.
	reloaded := tracker.NewService(sqlite.NewDocumentStore(b.db), tracker.Options{}, nil)
	require.NoError(t, reloaded.Load(context.Background()))
	assert.ElementsMatch(t, entryIDs(a.tracker.Entries("")), entryIDs(reloaded.Entries("")))
}

func TestSync_MutationsPushWhileSignedIn(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t, "key", "laptop")
	a := newDevice(t, openDB(t, "a"), ts)
	a.signIn(t)
	b := newDevice(t, openDB(t, "b"), ts)
	b.signIn(t)

	entry, warning := b.add(t, "1-1", credit.BucketMajorElective, 3)
	assert.Nil(t, warning)
	assert.Equal(t, []string{entry.ID}, entryIDs(remoteEntries(t, ts)))

	_, warning, err := b.tracker.SetSecondMajor(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, warning)

	dir, err := a.reconciler.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DirectionPull, dir)
	assert.Equal(t, []string{entry.ID}, entryIDs(a.tracker.Entries("")))
	assert.True(t, a.tracker.Progress().SecondMajorEnabled)

	removed, warning, err := a.tracker.RemoveCredit(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, warning)
	assert.Empty(t, remoteEntries(t, ts))
}

func TestSync_StoreUnavailableKeepsLocalMutation(t *testing.T) {
	ts := testserver.New(t, "key", "laptop")
	db := openDB(t, "a")
	a := newDevice(t, db, ts)
	a.signIn(t)

	ts.Server.Close()

	entry, warning := a.add(t, "1-1", credit.BucketLiberal, 2)
	require.NotNil(t, warning)
	assert.NotEmpty(t, warning.Message)
	assert.NotEmpty(t, a.reconciler.Account().LastError)

	reloaded := tracker.NewService(sqlite.NewDocumentStore(db), tracker.Options{}, nil)
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, []string{entry.ID}, entryIDs(reloaded.Entries("")))

	a.reconciler.DismissError()
	assert.Empty(t, a.reconciler.Account().LastError)
}

func TestSync_SignOutStopsPushing(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t, "key", "laptop")
	a := newDevice(t, openDB(t, "a"), ts)
	a.add(t, "1-1", credit.BucketLiberal, 2)
	a.signIn(t)

	a.provider.On("EndSession", mock.Anything, identity.ScopeLocal).Return(nil).Once()
	require.NoError(t, a.reconciler.SignOut(ctx, identity.ScopeLocal))
	a.reconciler.Wait()
	a.provider.AssertExpectations(t)
	assert.Equal(t, identity.StateAnonymous, a.reconciler.State())

	_, warning := a.add(t, "1-2", credit.BucketLiberal, 2)
	assert.Nil(t, warning)
	assert.Len(t, remoteEntries(t, ts), 1)
	assert.Equal(t, 2, a.tracker.Len())

	_, err := a.reconciler.Pull(ctx)
	assert.ErrorIs(t, err, reconcile.ErrNotAuthenticated)
}

func TestSync_RestoreRebindsAndPulls(t *testing.T) {
	ts := testserver.New(t, "key", "laptop")
	db := openDB(t, "a")
	a := newDevice(t, db, ts)
	a.add(t, "1-1", credit.BucketMajorRequired, 3)
	a.signIn(t)
	a.reconciler.Close()

	// Another device changes the remote ledger while this one is closed.
	b := newDevice(t, openDB(t, "b"), ts)
	b.signIn(t)
	added, _ := b.add(t, "2-1", credit.BucketLiberal, 2)

	restarted := newDevice(t, db, ts)
	restarted.provider.On("GetCurrentSession", mock.Anything).Return(&identity.Session{User: student}, nil).Once()
	require.NoError(t, restarted.reconciler.Restore(context.Background()))
	assert.True(t, restarted.reconciler.State().Authenticated())

	restarted.reconciler.Wait()
	assert.Contains(t, entryIDs(restarted.tracker.Entries("")), added.ID)
	assert.Equal(t, 2, restarted.tracker.Len())
}

func TestSync_RestoreDropsExpiredSession(t *testing.T) {
	ts := testserver.New(t, "key", "laptop")
	db := openDB(t, "a")
	a := newDevice(t, db, ts)
	a.signIn(t)
	a.reconciler.Close()

	restarted := newDevice(t, db, ts)
	restarted.provider.On("GetCurrentSession", mock.Anything).Return(nil, nil).Once()
	require.NoError(t, restarted.reconciler.Restore(context.Background()))

	restarted.reconciler.Wait()
	assert.Equal(t, identity.StateAnonymous, restarted.reconciler.State())
	assert.NotEmpty(t, restarted.reconciler.Account().LastError)

	rec, err := sqlite.NewDocumentStore(db).LoadIdentity(context.Background())
	if err == nil {
		assert.True(t, rec == nil || !rec.IsAuthenticated)
	}
}

func TestSync_RetryAfterFailedPushKeepsLocalChanges(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t, "key", "laptop")
	a := newDevice(t, openDB(t, "a"), ts)
	first, _ := a.add(t, "1-1", credit.BucketMajorRequired, 3)
	a.signIn(t)
	require.Len(t, remoteEntries(t, ts), 1)

	ts.SetAvailable(false)
	second, warning := a.add(t, "1-2", credit.BucketLiberal, 2)
	require.NotNil(t, warning)
	ts.SetAvailable(true)

	dir, err := a.reconciler.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.DirectionPush, dir)

	want := []string{first.ID, second.ID}
	assert.ElementsMatch(t, want, entryIDs(a.tracker.Entries("")))
	assert.ElementsMatch(t, want, entryIDs(remoteEntries(t, ts)))
}

func TestSync_EditDuringSignInKeepsRemoteLedger(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t, "key", "laptop")

	b := newDevice(t, openDB(t, "b"), ts)
	b.add(t, "1-1", credit.BucketMajorRequired, 3)
	b.add(t, "1-2", credit.BucketMajorElective, 3)
	b.add(t, "2-1", credit.BucketLiberal, 2)
	b.signIn(t)

	remote := &gatedRemote{RemoteStore: ts.Client(), entered: make(chan struct{}), gate: make(chan struct{})}
	a := newDeviceWith(t, openDB(t, "a"), remote)
	a.add(t, "1-1", credit.BucketLiberal, 1)

	a.provider.On("CompleteSessionFromCallback", mock.Anything, "http://127.0.0.1/cb?code=c&state=s").
		Return(&identity.Session{User: student}, nil).Once()
	signedIn := make(chan *reconcile.SignInResult, 1)
	go func() {
		res, _ := a.reconciler.CompleteSignIn(ctx, "http://127.0.0.1/cb?code=c&state=s")
		signedIn <- res
	}()

	<-remote.entered
	assert.Equal(t, identity.StateSyncing, a.reconciler.State())
	late, warning := a.add(t, "2-2", credit.BucketLiberal, 1)
	assert.Nil(t, warning)
	assert.Len(t, remoteEntries(t, ts), 3)

	close(remote.gate)
	res := <-signedIn
	require.NotNil(t, res)
	assert.Equal(t, reconcile.DirectionPull, res.Direction)
	assert.Empty(t, res.SyncError)

	want := entryIDs(b.tracker.Entries(""))
	assert.ElementsMatch(t, want, entryIDs(remoteEntries(t, ts)))
	assert.ElementsMatch(t, want, entryIDs(a.tracker.Entries("")))
	assert.NotContains(t, entryIDs(remoteEntries(t, ts)), late.ID)
}
