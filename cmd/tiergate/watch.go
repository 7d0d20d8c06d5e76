package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tiergate/tiergate/internal/config"
	"github.com/tiergate/tiergate/internal/entitlement"
	"github.com/tiergate/tiergate/internal/history"
	"github.com/tiergate/tiergate/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the snapshot fresh and serve metrics",
	Long: `Run the long-lived refresh loop: resolve on an interval, pick up override
changes written by other processes, and serve prometheus metrics. Intended
to run as the per-device entitlement daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cleanup, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return runWatch(rt)
	},
}

func runWatch(rt *runtime) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startMetricsServer(ctx, rt.cfg.MetricsAddr)

	// React to overrides written by other processes (redemption tooling,
	// support scripts) without waiting for the next interval.
	kick := make(chan struct{}, 1)
	if rt.cfg.Store == config.StoreFile {
		keys := []string{store.KeyLocalOverride, store.KeyAdminOverride}
		watcher, err := store.NewWatcher(rt.cfg.DataDir, keys, func(key string) {
			log.Info().Str("key", key).Msg("Store key changed externally; scheduling refresh")
			select {
			case kick <- struct{}{}:
			default:
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create store watcher; override changes wait for the next interval")
		} else if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start store watcher")
		} else {
			defer watcher.Stop()
		}
	}

	snap := rt.engine.Resolve(ctx, entitlement.ResolveOptions{})
	log.Info().
		Str("tier", string(snap.Tier)).
		Str("source", string(snap.Source)).
		Bool("stale", snap.Stale).
		Msg("Initial resolution complete")

	ticker := time.NewTicker(rt.cfg.RefreshInterval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			snap := rt.engine.Resolve(ctx, entitlement.ResolveOptions{
				ForceRefresh: true,
				Trigger:      history.TriggerWatch,
			})
			log.Info().
				Str("tier", string(snap.Tier)).
				Str("source", string(snap.Source)).
				Bool("stale", snap.Stale).
				Msg("Scheduled refresh complete")
		case <-kick:
			snap := rt.engine.Resolve(ctx, entitlement.ResolveOptions{
				ForceRefresh: true,
				Trigger:      history.TriggerWatch,
			})
			log.Info().
				Str("tier", string(snap.Tier)).
				Str("source", string(snap.Source)).
				Msg("Refresh after external store change")
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			return nil
		}
	}
}
