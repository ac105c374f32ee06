package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/killfeed/internal/adapters/hooks"
	"github.com/okian/killfeed/internal/adapters/http/api"
	"github.com/okian/killfeed/internal/adapters/http/feed"
	"github.com/okian/killfeed/internal/adapters/http/swagger"
	"github.com/okian/killfeed/internal/adapters/mq/worker"
	"github.com/okian/killfeed/internal/adapters/profile"
	service "github.com/okian/killfeed/internal/app"
	"github.com/okian/killfeed/pkg/logger"
)

const (
	hookShutdownTimeout = 10 * time.Second
	hookWorkers         = 4
)

func newMonitorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Follow the game log and report events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.monitor(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&a.flags.force, "force", false, "Start even if the API ping fails")
	return cmd
}

func (a *app) monitor(ctx context.Context) error {
	if err := a.ready(); err != nil {
		return err
	}
	cfg, log := a.cfg, a.log

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		if !a.flags.force {
			return fmt.Errorf("startup check failed (use --force to start anyway): %w", err)
		}
		log.Warn(ctx, "API ping failed; starting anyway", logger.Error(err))
	}

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	clip, keys, chat, err := newHooks(cfg)
	if err != nil {
		return err
	}
	pool := worker.NewPool(
		worker.WithName("hooks"),
		worker.WithLogger(log.Named("hooks")),
		worker.WithWorkers(hookWorkers),
	)
	pool.Start(ctx)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), hookShutdownTimeout)
		defer cancel()
		_ = pool.Shutdown(sctx)
	}()

	hub := feed.NewHub(feed.WithLogger(log.Named("feed")))
	defer hub.Close()

	opts := append(serviceOptions(cfg, log),
		service.WithHooks(hooks.NewFanout(pool, clip, keys, chat)),
		service.WithFeed(hub),
	)
	if cfg.ProfileBaseURL != "" {
		opts = append(opts, service.WithProfiles(profile.NewCache(profile.NewHTTPFetcher(cfg.ProfileBaseURL)), pool))
	}
	svc := service.New(cfg.LogPath, store, client, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Monitor(gctx) })
	g.Go(func() error {
		runSystemMetrics(gctx)
		return nil
	})
	if cfg.StatusAddr != "" {
		mux := http.NewServeMux()
		api.NewServer(svc, hub).Register(mux)
		swagger.Register(mux)
		g.Go(func() error { return api.Serve(gctx, cfg.StatusAddr, mux, log.Named("status")) })
	}
	return g.Wait()
}
