package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/credit"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
	"github.com/rpggio/gradcredits/internal/transport"
)

// TrackerService defines ledger operations needed by MCP.
type TrackerService interface {
	Terms() []tracker.TermInfo
	AddTerm(ctx context.Context, term string) error
	RemoveTerm(ctx context.Context, term string) error
	AddCredit(ctx context.Context, req tracker.AddCreditRequest) (*credit.Entry, *tracker.SyncWarning, error)
	UpdateCredit(ctx context.Context, req tracker.UpdateCreditRequest) (*credit.Entry, *tracker.SyncWarning, error)
	RemoveCredit(ctx context.Context, id string) (bool, *tracker.SyncWarning, error)
	ClearCredits(ctx context.Context) (int, *tracker.SyncWarning, error)
	Entries(term string) []credit.Entry
	Progress() tracker.Progress
	SetSecondMajor(ctx context.Context, enabled bool) (*tracker.Progress, *tracker.SyncWarning, error)
}

// AccountService defines sign-in and sync operations needed by MCP.
type AccountService interface {
	Account() reconcile.Account
	BeginSignIn(ctx context.Context) (string, error)
	CompleteSignIn(ctx context.Context, callbackURL string) (*reconcile.SignInResult, error)
	SignOut(ctx context.Context, scope identity.Scope) error
	DismissError()
	Sync(ctx context.Context) (reconcile.Direction, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Tracker  TrackerService
	Accounts AccountService
	Activity ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      transport.ClientResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "gradcredits",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is always local and unauthenticated.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware("local"))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, NewHandler(cfg.Services, cfg.Logger))

	return server
}
