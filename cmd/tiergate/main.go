package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/tiergate/tiergate/internal/authority"
	"github.com/tiergate/tiergate/internal/billing"
	"github.com/tiergate/tiergate/internal/config"
	"github.com/tiergate/tiergate/internal/entitlement"
	"github.com/tiergate/tiergate/internal/history"
	"github.com/tiergate/tiergate/internal/logging"
	"github.com/tiergate/tiergate/internal/store"
	"github.com/tiergate/tiergate/pkg/entitlements"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "tiergate",
	Short: "Tiergate - entitlement resolution engine",
	Long: `Tiergate decides whether the current user/device holds the Pro, trial, or
free tier by reconciling platform billing, the remote entitlement authority,
and local overrides into a single snapshot.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Tiergate %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runtime bundles the wired engine and its collaborators for one command
// invocation.
type runtime struct {
	cfg       *config.Config
	kv        store.KV
	engine    *entitlement.Engine
	hist      *history.Log
	billing   entitlements.BillingProvider
	authority entitlements.AuthorityClient // nil when unconfigured
}

// newRuntime loads configuration, re-initializes logging from it, and wires
// the engine. The returned cleanup releases the backing store.
func newRuntime(ctx context.Context) (*runtime, func(), error) {
	// Baseline logging for early startup; re-initialized from configuration
	// right after Load.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "tiergate",
	})

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "tiergate",
	})

	kv, closeKV, err := openKV(cfg)
	if err != nil {
		return nil, nil, err
	}

	hist, err := history.New(cfg.DataDir, cfg.HistoryLimit)
	if err != nil {
		closeKV()
		return nil, nil, fmt.Errorf("open resolution history: %w", err)
	}

	var provider entitlements.BillingProvider = billing.None{}
	if sp := billing.NewStripeProvider(cfg.StripeAPIKey, cfg.StripeCustomerID); sp.Configured() {
		provider = sp
	}

	var authorityClient entitlements.AuthorityClient
	if cfg.AuthorityURL != "" {
		deviceID, err := store.EnsureDeviceID(ctx, kv)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to ensure device id; authority checks proceed without one")
		}
		var tokens oauth2.TokenSource
		if cfg.AuthorityToken != "" {
			tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AuthorityToken})
		}
		client, err := authority.New(authority.Config{
			BaseURL:  cfg.AuthorityURL,
			Timeout:  cfg.AuthorityTimeout,
			DeviceID: deviceID,
		}, tokens)
		if err != nil {
			closeKV()
			return nil, nil, fmt.Errorf("configure authority client: %w", err)
		}
		authorityClient = client
	}

	engine := entitlement.New(entitlement.Config{
		KV:                 kv,
		Billing:            provider,
		Authority:          authorityClient,
		History:            hist,
		StalenessWindow:    cfg.StalenessWindow,
		RevalidateInterval: cfg.RevalidateInterval,
	})

	rt := &runtime{
		cfg:       cfg,
		kv:        kv,
		engine:    engine,
		hist:      hist,
		billing:   provider,
		authority: authorityClient,
	}
	return rt, closeKV, nil
}

func openKV(cfg *config.Config) (store.KV, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		kv, err := store.NewSQLiteKV(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return kv, func() {
			if err := kv.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close sqlite store")
			}
		}, nil
	case config.StoreMemory:
		return store.NewMemoryKV(), func() {}, nil
	default:
		kv, err := store.NewFileKV(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return kv, func() {}, nil
	}
}
