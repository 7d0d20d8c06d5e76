package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiergate/tiergate/internal/entitlement"
	"github.com/tiergate/tiergate/pkg/entitlements"
)

var forceRefresh bool

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the current entitlement tier",
	Long: `Resolve the current tier against the configured signal sources. The
persisted snapshot is served when it is fresh enough; pass --force to always
run a live pass.`,
	Example: `  # Serve the cached snapshot when fresh, otherwise run a live pass
  tiergate resolve

  # Always run a live pass
  tiergate resolve --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		snap := rt.engine.Resolve(ctx, entitlement.ResolveOptions{ForceRefresh: forceRefresh})
		printSnapshot(snap)
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVarP(&forceRefresh, "force", "f", false, "skip the cached snapshot and run a live pass")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last known entitlement state",
	Long: `Display the persisted snapshot and override state without touching any
live signal source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		printSnapshot(rt.engine.LastKnown(ctx))
		fmt.Println()
		fmt.Printf("Local override:  %v\n", rt.engine.LocalOverride(ctx))
		fmt.Printf("Admin override:  %s\n", rt.engine.AdminOverrideTier(ctx))
		fmt.Printf("Store:           %s (%s)\n", rt.cfg.Store, rt.cfg.DataDir)
		return nil
	},
}

func printSnapshot(snap entitlements.Snapshot) {
	fmt.Printf("Tier:     %s\n", snap.Tier)
	fmt.Printf("Source:   %s\n", snap.Source)
	fmt.Printf("Checked:  %s\n", snap.CheckedAt.Local().Format(time.RFC3339))
	fmt.Printf("Stale:    %v\n", snap.Stale)
	if snap.ExpiresAt != nil {
		fmt.Printf("Expires:  %s\n", snap.ExpiresAt.Local().Format(time.RFC3339))
	}
	if snap.Error != "" {
		fmt.Printf("Error:    %s\n", snap.Error)
	}
}
