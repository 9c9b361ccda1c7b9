package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/techbot/internal/app"
	"github.com/zhouzirui/techbot/internal/config"
	"github.com/zhouzirui/techbot/internal/handler"
	"github.com/zhouzirui/techbot/internal/logger"
	"github.com/zhouzirui/techbot/internal/service/chat"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:           "techbot",
		Short:         "Serve the TechBot chat over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides PORT")
	return cmd
}

func serve(ctx context.Context, addrOverride string) error {
	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}

	level, _ := cfg.Log.SlogLevel()
	log := logger.New(os.Stdout, level, cfg.Log.Format)
	slog.SetDefault(log)

	if envErr != nil {
		log.Info("no .env file loaded, continuing with system environment variables only", logger.Err(envErr))
	}

	assistantSvc, err := app.NewAssistant(ctx, cfg.AI, log)
	if err != nil {
		return err
	}
	log.Info("assistant ready",
		"provider", cfg.AI.Provider, "fast_model", cfg.AI.FastModel, "full_model", cfg.AI.FullModel)

	router := handler.NewRouter(cfg, chat.NewBoundedRegistry(cfg.Session.MaxWorkspaces, cfg.Session.IdleTTL), assistantSvc, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("TechBot listening", "addr", srv.Addr)
	if err := runServer(ctx, srv, cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
