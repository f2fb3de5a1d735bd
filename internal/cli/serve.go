package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/opencode-ai/themesync/internal/api"
	"github.com/opencode-ai/themesync/internal/bridge"
	"github.com/opencode-ai/themesync/internal/config"
	"github.com/opencode-ai/themesync/internal/db"
	"github.com/opencode-ai/themesync/internal/events"
	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	eventRetention     = 5000
	eventPruneInterval = time.Hour
	shutdownTimeout    = 5 * time.Second
)

var serveListen string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default from server.listen)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon a host connects to",
	Long: `Run the themesync daemon. A host application connects to /host over a
websocket; the CLI and other tools drive the active theme over the /api
endpoints.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		cfg := GetConfig()
		addr := serveListen
		if addr == "" {
			addr = cfg.Server.Listen
		}

		database, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		return runServer(ctx, database, addr, cfg.Server)
	},
}

// runServer serves the API and host bridge on addr until ctx is cancelled.
func runServer(ctx context.Context, database *db.DB, addr string, opts config.ServerConfig) error {
	logger := logging.Component("serve")

	hostBridge := bridge.New(opts.CallTimeout)
	parts, err := buildComponents(ctx, database, hostBridge)
	if err != nil {
		return err
	}
	eventRepo := db.NewEventRepository(database)

	hostBridge.OnModeChanged(func(ctx context.Context, mode models.Mode) {
		if err := events.LogModeChanged(ctx, eventRepo, mode); err != nil {
			logger.Warn().Err(err).Msg("failed to record mode change")
		}
		parts.svc.HandleHostModeChanged(ctx)
	})

	// Each (re)connected host gets the stored selection re-asserted.
	hostBridge.OnConnected(func(ctx context.Context) {
		res, err := parts.svc.Reload(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("failed to restore active theme")
			return
		}
		logger.Info().
			Str("theme", res.ThemeID).
			Bool("converged", res.Converged).
			Msg("restored active theme")
	})

	server := api.NewServer(parts.svc, parts.store,
		api.WithEvents(eventRepo),
		api.WithHost(hostBridge, hostBridge),
		api.WithRateLimiter(api.NewRateLimiter(api.WithLimiterEnabled(opts.RateLimit))),
	)
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	logger.Info().Str("addr", listener.Addr().String()).Msg("daemon listening")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(eventPruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := eventRepo.Prune(gctx, eventRetention)
				if err != nil {
					logger.Warn().Err(err).Msg("failed to prune events")
					continue
				}
				if n > 0 {
					logger.Debug().Int64("deleted", n).Msg("pruned events")
				}
			}
		}
	})

	return g.Wait()
}
