package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/gradcredits/internal/domain/activity"
	"github.com/rpggio/gradcredits/internal/domain/identity"
	"github.com/rpggio/gradcredits/internal/domain/reconcile"
	"github.com/rpggio/gradcredits/internal/domain/tracker"
	"github.com/rpggio/gradcredits/internal/mcp"
	"github.com/rpggio/gradcredits/internal/metrics"
	"github.com/rpggio/gradcredits/internal/oauth"
	"github.com/rpggio/gradcredits/internal/remote"
	"github.com/rpggio/gradcredits/internal/sqlite"
	"github.com/rpggio/gradcredits/internal/transport"
	"github.com/rpggio/gradcredits/migrations"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the credit tracker as an MCP server (stdio or http)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
}

func (a *app) runServe(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureParentDir(cfg.DB.Path); err != nil {
		return fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.RunMigrations(migrations.Local); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	m := metrics.New()
	docs := sqlite.NewDocumentStore(db)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil, logger)
	if _, err := activitySvc.Prune(ctx, cfg.Log.ActivityRetention); err != nil {
		logger.Warn("activity prune failed", "error", err)
	}
	trk := tracker.NewService(docs, tracker.Options{Journal: activitySvc, Observer: m}, logger)
	if err := trk.Load(ctx); err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	var accounts mcp.AccountService = offlineAccounts{}
	var reconciler *reconcile.Reconciler
	if cfg.Remote.URL != "" {
		provider, err := oauth.NewProvider(oauth.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       cfg.OAuth.Scopes,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			UserInfoURL:  cfg.OAuth.UserInfoURL,
			RevokeURL:    cfg.OAuth.RevokeURL,
		}, sqlite.NewTokenRepository(db), logger)
		if err != nil {
			return fmt.Errorf("configure identity provider: %w", err)
		}
		client := remote.NewClient(cfg.Remote.URL, remote.ClientOptions{
			APIKey:  cfg.Remote.APIKey,
			Timeout: cfg.Remote.Timeout,
		}, logger)

		reconciler = reconcile.New(provider, docs, client, trk, reconcile.Options{
			GraceWindow:   cfg.Sync.GraceWindow,
			RevokeTimeout: cfg.Sync.RevokeTimeout,
			Journal:       activitySvc,
			Observer:      m,
		}, logger)
		defer reconciler.Close()

		trk.SetSyncer(reconciler)
		if err := reconciler.Restore(ctx); err != nil {
			logger.Warn("identity restore failed", "error", err)
		}
		go reconciler.Run(ctx, cfg.Sync.Interval)
		accounts = reconciler
	} else {
		logger.Info("remote.url not set; running local only")
	}

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Tracker:  trk,
			Accounts: accounts,
			Activity: activitySvc,
		},
		Resolver:      mcp.StaticKeyResolver{KeyHash: transport.HashToken(cfg.Transport.APIKey), ClientID: "mcp"},
		AuthEnabled:   cfg.Transport.AuthEnabled,
		TransportMode: cfg.Transport.Mode,
		Version:       version,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		logger.Info("starting stdio transport", "db", cfg.DB.Path)
		if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(transport.RequestLogger(logger))
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
	)
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/*", mcpHandler)
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", m.Handler())
	if reconciler != nil {
		router.Get("/oauth/callback", oauthCallback(reconciler, cfg.OAuth.RedirectURL))
	}

	return serveHTTP(ctx, a, fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), router)
}

// oauthCallback finishes a browser sign-in that was redirected back to this server.
func oauthCallback(r *reconcile.Reconciler, redirectURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		callback := redirectURL
		if req.URL.RawQuery != "" {
			callback += "?" + req.URL.RawQuery
		}
		result, err := r.CompleteSignIn(req.Context(), callback)
		if err != nil {
			http.Error(w, "sign-in failed: "+err.Error(), http.StatusBadRequest)
			return
		}
		if result == nil {
			http.Error(w, "sign-in failed: no session", http.StatusBadRequest)
			return
		}
		msg := fmt.Sprintf("Signed in as %s. You can close this window.", result.User.Email)
		if result.SyncError != "" {
			msg += "\nSync failed: " + result.SyncError
		}
		_, _ = w.Write([]byte(msg))
	}
}

func serveHTTP(ctx context.Context, a *app, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.logger.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// offlineAccounts backs the account tools when no store server is configured.
type offlineAccounts struct{}

func (offlineAccounts) Account() reconcile.Account {
	return reconcile.Account{State: identity.StateAnonymous}
}

func (offlineAccounts) BeginSignIn(context.Context) (string, error) {
	return "", identity.ErrNotConfigured
}

func (offlineAccounts) CompleteSignIn(context.Context, string) (*reconcile.SignInResult, error) {
	return nil, identity.ErrNotConfigured
}

func (offlineAccounts) SignOut(context.Context, identity.Scope) error { return nil }

func (offlineAccounts) DismissError() {}

func (offlineAccounts) Sync(context.Context) (reconcile.Direction, error) {
	return reconcile.DirectionNone, reconcile.ErrNotAuthenticated
}
