package cli

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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/askiguard/internal/httpapi"
	"github.com/ppiankov/askiguard/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort int
	serveHTTP string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 50051, "gRPC listen port")
	serveCmd.Flags().StringVar(&serveHTTP, "http", ":8080", "HTTP API listen address (empty disables)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC and HTTP validation servers",
	Long: "Runs askiguard as a central validation server. Assistants connect over gRPC;\n" +
		"the HTTP API exposes the same operations plus /metrics and /healthz.\n" +
		"The config file and the patterns file are hot-reloaded on change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, err := openService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	path := resolvedConfigPath()
	srv := server.New(svc, server.Config{Port: servePort, ConfigPath: path})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Serve)
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down validation server")
		srv.GracefulStop()
		return nil
	})

	if serveHTTP != "" {
		hs := httpapi.NewServer(serveHTTP, svc)
		g.Go(func() error {
			slog.Info("http api listening", "addr", serveHTTP)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	reloader, err := server.NewReloader(srv.ReloadConfig, []string{path, svc.Config().Output.PatternsPath})
	if err != nil {
		slog.Warn("hot-reload disabled", "error", err)
	} else {
		slog.Info("hot-reload enabled", "files", reloader.Paths())
		g.Go(func() error { return reloader.Run(ctx) })
	}

	return g.Wait()
}
