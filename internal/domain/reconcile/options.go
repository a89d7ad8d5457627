package reconcile

import (
	"time"

	"github.com/rpggio/gradcredits/internal/clock"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
)

const (
	DefaultGraceWindow   = 1500 * time.Millisecond
	DefaultRevokeTimeout = 3 * time.Second
)

// Options configures a Reconciler. Zero values select defaults.
type Options struct {
	// GraceWindow delays the drop to anonymous after a failed session restore.
	GraceWindow time.Duration
	// RevokeTimeout bounds the background session revoke on sign-out.
	RevokeTimeout time.Duration
	// RedirectTarget is passed to the provider when sign-in begins.
	RedirectTarget string
	Journal        tracker.Journal
	Observer       SyncObserver
	// Clock drives the grace window and the periodic sync ticks.
	Clock clock.Clock
}

func (o Options) withDefaults() Options {
	if o.GraceWindow <= 0 {
		o.GraceWindow = DefaultGraceWindow
	}
	if o.RevokeTimeout <= 0 {
		o.RevokeTimeout = DefaultRevokeTimeout
	}
	o.Clock = clock.Or(o.Clock)
	return o
}
