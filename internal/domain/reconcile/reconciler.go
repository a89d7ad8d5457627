package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
	"github.com/rpggio/gradcredits/internal/repository"
)

// Reconciler binds an identity to the local workspace and keeps the remote
// mirror consistent with it. Remote calls never run under the state lock, so
// the workspace stays mutable while a push or pull is in flight.
type Reconciler struct {
	provider  identity.Provider
	identity  identity.Store
	remote    RemoteStore
	workspace Workspace
	opts      Options
	logger    *slog.Logger

	mu       sync.Mutex
	state    identity.State
	user     *identity.User
	inflight int
	lastErr  error
	// generation changes whenever the bound identity changes.
	generation uint64
	// reconciled is set once the push-or-pull decision for the current
	// generation has succeeded. Pushes before that would overwrite a remote
	// record that should have been pulled.
	reconciled  bool
	reconciling bool
	// dirty records a mutation that arrived while reconciling.
	dirty bool

	bg       context.Context
	cancelBg context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a reconciler in the anonymous state.
func New(provider identity.Provider, store identity.Store, remote RemoteStore, workspace Workspace, opts Options, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		provider:  provider,
		identity:  store,
		remote:    remote,
		workspace: workspace,
		opts:      opts.withDefaults(),
		logger:    logger,
		state:     identity.StateAnonymous,
		bg:        bg,
		cancelBg:  cancel,
	}
}

// State returns the current state. SYNCING is reported while a push or pull
// is in flight for an authenticated identity.
func (r *Reconciler) State() identity.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Reconciler) stateLocked() identity.State {
	if r.state == identity.StateAuthenticated && r.inflight > 0 {
		return identity.StateSyncing
	}
	return r.state
}

// Account returns the state, bound user and error slot.
func (r *Reconciler) Account() Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct := Account{State: r.stateLocked()}
	if r.user != nil {
		u := *r.user
		acct.User = &u
	}
	if r.lastErr != nil {
		acct.LastError = r.lastErr.Error()
	}
	return acct
}

// LastError returns the error slot. The last failure wins.
func (r *Reconciler) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// DismissError clears the error slot.
func (r *Reconciler) DismissError() {
	r.mu.Lock()
	r.lastErr = nil
	r.mu.Unlock()
}

func (r *Reconciler) setError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// BeginSignIn starts the provider handshake and returns the URL to visit.
func (r *Reconciler) BeginSignIn(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.state.Authenticated() {
		r.mu.Unlock()
		return "", &AuthError{Op: "begin sign-in", Err: ErrAlreadySignedIn}
	}
	r.state = identity.StateAuthenticating
	r.mu.Unlock()

	authURL, err := r.provider.BeginInteractiveSignIn(ctx, r.opts.RedirectTarget)
	if err != nil {
		return "", r.failSignIn("begin sign-in", err)
	}
	return authURL, nil
}

// CompleteSignIn finishes the handshake from the callback URL, binds the
// identity and reconciles the workspace with the remote mirror. A sync
// failure does not undo the sign-in; it is reported in the result and the
// error slot. A callback arriving while an identity is bound is rejected
// and leaves the session untouched.
func (r *Reconciler) CompleteSignIn(ctx context.Context, callbackURL string) (*SignInResult, error) {
	r.mu.Lock()
	if r.state.Authenticated() {
		r.mu.Unlock()
		return nil, &AuthError{Op: "complete sign-in", Err: ErrAlreadySignedIn}
	}
	r.state = identity.StateAuthenticating
	r.mu.Unlock()

	sess, err := r.provider.CompleteSessionFromCallback(ctx, callbackURL)
	if err != nil {
		return nil, r.failSignIn("complete sign-in", err)
	}
	if sess == nil {
		return nil, r.failSignIn("complete sign-in", ErrNoSession)
	}

	user := sess.User
	if err := r.identity.SaveIdentity(ctx, &identity.Record{User: &user, IsAuthenticated: true}); err != nil {
		return nil, r.failSignIn("complete sign-in", fmt.Errorf("saving identity: %w", err))
	}
	gen := r.bind(user)
	r.record(ctx, activity.TypeSignedIn, "signed in as "+user.Email, map[string]string{"user_id": user.ID})
	r.logger.Info("signed in", "user_id", user.ID)

	result := &SignInResult{User: user}
	dir, op, err := r.reconcileSession(ctx, gen)
	err = r.reportSync(op, err)
	result.Direction = dir
	result.Entries = r.workspace.Len()
	if err != nil {
		result.SyncError = err.Error()
	}
	return result, nil
}

func (r *Reconciler) failSignIn(op string, err error) error {
	authErr := &AuthError{Op: op, Err: err}
	r.mu.Lock()
	r.state = identity.StateAnonymous
	r.user = nil
	r.lastErr = authErr
	r.mu.Unlock()
	r.logger.Warn("sign-in failed", "op", op, "error", err)
	return authErr
}

// bind makes user the current identity. The caller owns the reconciliation
// of the returned generation.
func (r *Reconciler) bind(user identity.User) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = identity.StateAuthenticated
	r.user = &user
	r.lastErr = nil
	r.generation++
	r.reconciled = false
	r.reconciling = true
	r.dirty = false
	return r.generation
}

// SignOut clears the local identity immediately and revokes the provider
// session in the background. Revoke failures are only logged.
func (r *Reconciler) SignOut(ctx context.Context, scope identity.Scope) error {
	if scope == "" {
		scope = identity.ScopeLocal
	}

	r.mu.Lock()
	wasBound := r.user != nil
	r.state = identity.StateAnonymous
	r.user = nil
	r.generation++
	r.mu.Unlock()

	if err := r.identity.ClearIdentity(ctx); err != nil {
		authErr := &AuthError{Op: "sign-out", Err: fmt.Errorf("clearing identity: %w", err)}
		r.setError(authErr)
		return authErr
	}
	if !wasBound {
		return nil
	}
	r.record(ctx, activity.TypeSignedOut, "signed out", nil)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.revoke(scope)
	}()
	return nil
}

func (r *Reconciler) revoke(scope identity.Scope) {
	ctx, cancel := context.WithTimeout(r.bg, r.opts.RevokeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.provider.EndSession(ctx, scope) }()

	select {
	case err := <-done:
		if err != nil {
			r.logger.Warn("session revoke failed", "scope", scope, "error", err)
			return
		}
		r.logger.Debug("session revoked", "scope", scope)
	case <-ctx.Done():
		r.logger.Warn("session revoke abandoned", "error", &TimeoutError{Op: "session revoke", Timeout: r.opts.RevokeTimeout})
	}
}

// Restore rebinds a persisted identity without waiting for the provider,
// then verifies the session in the background. If verification fails the
// reconciler drops to anonymous after the grace window, unless the identity
// changed in the meantime.
func (r *Reconciler) Restore(ctx context.Context) error {
	rec, err := r.identity.LoadIdentity(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrNoIdentity) || errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("loading identity: %w", err)
	}
	if rec == nil || !rec.IsAuthenticated || rec.User == nil {
		return nil
	}

	user := *rec.User
	gen := r.bind(user)
	r.logger.Info("identity restored", "user_id", user.ID)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.verify(user, gen)
	}()
	return nil
}

func (r *Reconciler) verify(user identity.User, gen uint64) {
	sess, err := r.provider.GetCurrentSession(r.bg)
	switch {
	case err == nil && sess != nil && sess.User.ID == user.ID:
		_, op, err := r.reconcileSession(r.bg, gen)
		if errors.Is(err, ErrNotAuthenticated) {
			return
		}
		if err := r.reportSync(op, err); err != nil {
			r.logger.Warn("restore reconciliation failed", "error", err)
		}
		return
	case err == nil:
		err = ErrNoSession
	}

	r.logger.Info("session verification failed", "user_id", user.ID, "error", err)
	select {
	case <-r.opts.Clock.After(r.opts.GraceWindow):
	case <-r.bg.Done():
		return
	}

	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return
	}
	r.state = identity.StateAnonymous
	r.user = nil
	r.generation++
	r.lastErr = &AuthError{Op: "restore session", Err: err}
	r.mu.Unlock()

	if cerr := r.identity.ClearIdentity(r.bg); cerr != nil {
		r.logger.Warn("clearing expired identity failed", "error", cerr)
	}
	r.record(r.bg, activity.TypeSessionExpired, "session expired", map[string]string{"user_id": user.ID})
}

// reconcileSession decides, once per bound identity, between pushing the
// workspace (the remote has no record) and pulling it (pull wins). A
// mutation that arrived meanwhile is pushed after a successful decision.
// The error is unreported; op names the failed step.
func (r *Reconciler) reconcileSession(ctx context.Context, gen uint64) (Direction, string, error) {
	dir, op, err := r.decide(ctx)
	if !r.finishReconcile(gen, err == nil) || err != nil {
		return dir, op, err
	}
	return dir, "push", r.push(ctx)
}

func (r *Reconciler) decide(ctx context.Context) (Direction, string, error) {
	user, ok := r.boundUser()
	if !ok {
		return DirectionNone, "lookup", ErrNotAuthenticated
	}

	done := r.beginSync()
	remoteUser, err := r.remote.FindUser(ctx, user.ID)
	done()
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return DirectionPush, "push", r.push(ctx)
	case err != nil:
		return DirectionNone, "lookup", fmt.Errorf("finding remote user: %w", err)
	}
	return DirectionPull, "pull", r.pullFor(ctx, remoteUser.ID)
}

// finishReconcile closes the reconciliation of gen and reports whether a
// mutation is waiting to be pushed.
func (r *Reconciler) finishReconcile(gen uint64, ok bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return false
	}
	r.reconciling = false
	r.reconciled = ok
	pending := ok && r.dirty
	r.dirty = false
	return pending
}

type syncMode int

const (
	syncIdle syncMode = iota
	syncPush
	syncDeferred
	syncReconcile
)

// nextSync picks what a sync trigger should do for the bound identity. A
// trigger that finds the identity unreconciled and nobody reconciling takes
// ownership of the reconciliation.
func (r *Reconciler) nextSync() (syncMode, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case !r.state.Authenticated() || r.user == nil:
		return syncIdle, 0
	case r.reconciled:
		return syncPush, r.generation
	case r.reconciling:
		r.dirty = true
		return syncDeferred, r.generation
	}
	r.reconciling = true
	return syncReconcile, r.generation
}

// AfterMutation pushes the workspace when an identity is bound. While the
// sign-in reconciliation is in flight the push is deferred until it
// finishes; if it failed earlier, it is retried instead of pushing. A
// failure is placed in the error slot and returned; the local mutation
// stands.
func (r *Reconciler) AfterMutation(ctx context.Context) error {
	_, err := r.Sync(ctx)
	if errors.Is(err, ErrNotAuthenticated) {
		return nil
	}
	return err
}

// Sync brings the remote mirror up to date. Once the identity is reconciled
// the local workspace is authoritative and is pushed; before that the
// push-or-pull decision runs.
func (r *Reconciler) Sync(ctx context.Context) (Direction, error) {
	mode, gen := r.nextSync()
	switch mode {
	case syncIdle:
		return DirectionNone, ErrNotAuthenticated
	case syncPush:
		return DirectionPush, r.reportSync("push", r.push(ctx))
	case syncDeferred:
		return DirectionNone, nil
	}
	dir, op, err := r.reconcileSession(ctx, gen)
	return dir, r.reportSync(op, err)
}

// Push replaces the remote mirror with the local workspace. It is refused
// until the sign-in reconciliation has succeeded.
func (r *Reconciler) Push(ctx context.Context) error {
	switch r.peekSync() {
	case syncIdle:
		return ErrNotAuthenticated
	case syncPush:
		return r.reportSync("push", r.push(ctx))
	}
	return ErrNotReconciled
}

// peekSync is nextSync without side effects.
func (r *Reconciler) peekSync() syncMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case !r.state.Authenticated() || r.user == nil:
		return syncIdle
	case r.reconciled:
		return syncPush
	case r.reconciling:
		return syncDeferred
	}
	return syncReconcile
}

// Pull reruns the sign-in decision: the remote mirror replaces the local
// workspace, or the workspace is pushed when the remote has no record.
// Local changes not yet pushed are discarded.
func (r *Reconciler) Pull(ctx context.Context) (Direction, error) {
	r.mu.Lock()
	if !r.state.Authenticated() || r.user == nil {
		r.mu.Unlock()
		return DirectionNone, ErrNotAuthenticated
	}
	if r.reconciling {
		r.mu.Unlock()
		return DirectionNone, nil
	}
	r.reconciling = true
	r.reconciled = false
	gen := r.generation
	r.mu.Unlock()

	dir, op, err := r.reconcileSession(ctx, gen)
	return dir, r.reportSync(op, err)
}

// Run syncs the workspace every interval until ctx is done. Ticks are
// skipped while signed out, while a reconciliation is in flight, or when a
// reconciled ledger is empty. Failures are logged and never reach the error
// slot.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.opts.Clock.After(interval):
		}

		var err error
		switch r.peekSync() {
		case syncPush:
			if r.workspace.Len() == 0 {
				continue
			}
			err = r.push(ctx)
		case syncReconcile:
			mode, gen := r.nextSync()
			if mode != syncReconcile {
				continue
			}
			_, _, err = r.reconcileSession(ctx, gen)
		default:
			continue
		}
		if err != nil {
			r.logger.Warn("periodic sync failed", "error", err)
		}
	}
}

// Wait blocks until background revokes and verifications finish.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Close cancels background work and waits for it.
func (r *Reconciler) Close() {
	r.cancelBg()
	r.wg.Wait()
}

func (r *Reconciler) push(ctx context.Context) (err error) {
	user, ok := r.boundUser()
	if !ok {
		return ErrNotAuthenticated
	}
	done := r.beginSync()
	defer done()
	start := time.Now()
	defer func() { r.observe("push", start, err) }()

	ws := r.workspace.Export()
	remoteUser, err := r.remote.UpsertUser(ctx, &RemoteUser{
		ExternalID: user.ID,
		Email:      user.Email,
		Name:       user.Name,
		PictureURL: user.Picture,
	})
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}

	if err := r.remote.UpsertProfile(ctx, &RemoteProfile{
		UserID:             remoteUser.ID,
		SecondMajorEnabled: ws.SecondMajorEnabled,
	}); err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	if err := r.remote.ReplaceEntries(ctx, remoteUser.ID, ws.Entries); err != nil {
		return fmt.Errorf("replacing entries: %w", err)
	}

	r.logger.Debug("pushed workspace", "entries", len(ws.Entries))
	r.record(ctx, activity.TypePushed, fmt.Sprintf("pushed %d entries", len(ws.Entries)), map[string]int{"entries": len(ws.Entries)})
	return nil
}

func (r *Reconciler) pullFor(ctx context.Context, remoteID string) (err error) {
	done := r.beginSync()
	defer done()
	start := time.Now()
	defer func() { r.observe("pull", start, err) }()

	entries, err := r.remote.ListEntries(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("listing entries: %w", err)
	}
	ws := tracker.Workspace{Entries: entries}
	profile, err := r.remote.GetProfile(ctx, remoteID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return fmt.Errorf("getting profile: %w", err)
	default:
		ws.SecondMajorEnabled = profile.SecondMajorEnabled
	}

	if err := r.workspace.Import(ctx, ws); err != nil {
		return fmt.Errorf("replacing local workspace: %w", err)
	}
	r.logger.Debug("pulled workspace", "entries", len(entries))
	r.record(ctx, activity.TypePulled, fmt.Sprintf("pulled %d entries", len(entries)), map[string]int{"entries": len(entries)})
	return nil
}

// reportSync wraps err as a SyncError and places it in the error slot.
func (r *Reconciler) reportSync(op string, err error) error {
	if err == nil {
		return nil
	}
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		syncErr = &SyncError{Op: op, Err: err}
	}
	r.setError(syncErr)
	r.logger.Warn("sync failed", "op", op, "error", err)
	r.record(r.bg, activity.TypeSyncFailed, syncErr.Error(), nil)
	return syncErr
}

func (r *Reconciler) beginSync() func() {
	r.mu.Lock()
	r.inflight++
	r.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.inflight--
			r.mu.Unlock()
		})
	}
}

func (r *Reconciler) boundUser() (identity.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil || !r.state.Authenticated() {
		return identity.User{}, false
	}
	return *r.user, true
}

func (r *Reconciler) observe(op string, start time.Time, err error) {
	if r.opts.Observer != nil {
		r.opts.Observer.ObserveSync(op, time.Since(start), err)
	}
}

func (r *Reconciler) record(ctx context.Context, typ activity.ActivityType, summary string, details any) {
	if r.opts.Journal != nil {
		r.opts.Journal.Record(ctx, typ, summary, details)
	}
}
