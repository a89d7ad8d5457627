package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpggio/gradcredits/internal/metrics"
	"github.com/rpggio/gradcredits/internal/remote"
	"github.com/rpggio/gradcredits/internal/sqlite"
	"github.com/rpggio/gradcredits/internal/transport"
	"github.com/rpggio/gradcredits/migrations"
	"github.com/spf13/cobra"
)

func newStoreCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Run the store server that holds signed-in users' ledgers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStore(cmd.Context())
		},
	}
	cmd.AddCommand(newCreateKeyCmd(a))
	return cmd
}

func (a *app) openStoreDB() (*sqlite.DB, error) {
	if err := ensureParentDir(a.cfg.Store.DBPath); err != nil {
		return nil, fmt.Errorf("prepare store path: %w", err)
	}
	db, err := sqlite.New(a.cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store database: %w", err)
	}
	if err := db.RunMigrations(migrations.Store); err != nil {
		db.Close()
		return nil, fmt.Errorf("run store migrations: %w", err)
	}
	return db, nil
}

func (a *app) runStore(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := a.openStoreDB()
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()
	handler := transport.NewServer(
		remote.NewHandler(sqlite.NewRemoteStore(db), a.logger),
		transport.Options{
			Auth:     transport.AuthMiddleware(sqlite.NewAPIKeyResolver(db)),
			Metrics:  m.Handler(),
			Observer: m,
			Logger:   a.logger,
		},
	)

	addr := fmt.Sprintf("%s:%d", a.cfg.Store.Host, a.cfg.Store.Port)
	return serveHTTP(ctx, a, addr, handler)
}

func newCreateKeyCmd(a *app) *cobra.Command {
	var clientID, description string
	cmd := &cobra.Command{
		Use:   "create-key",
		Short: "Create an API key for a tracker client and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if clientID == "" {
				return fmt.Errorf("--client-id is required")
			}
			db, err := a.openStoreDB()
			if err != nil {
				return err
			}
			defer db.Close()

			key, err := generateKey()
			if err != nil {
				return err
			}
			resolver := sqlite.NewAPIKeyResolver(db)
			if err := resolver.CreateKey(cmd.Context(), transport.HashToken(key), clientID, description); err != nil {
				return fmt.Errorf("store key: %w", err)
			}
			a.logger.Info("api key created", "client_id", clientID)
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", "", "Client the key authenticates as")
	cmd.Flags().StringVar(&description, "description", "", "Free-form note stored with the key")
	return cmd
}

func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return "gck_" + hex.EncodeToString(buf), nil
}
