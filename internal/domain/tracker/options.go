package tracker

import (
	"github.com/rpggio/gradcredits/internal/clock"
	"github.com/rpggio/gradcredits/internal/domain/requirement"
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	Policy   *requirement.Policy
	Clock    clock.Clock
	Journal  Journal
	Observer LedgerObserver
}
