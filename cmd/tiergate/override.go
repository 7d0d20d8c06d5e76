package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage the admin override tier",
	Long: `The admin override forces the tier reported to callers without touching
the real resolution state. Intended for support and test tooling, not for
end-user flows.`,
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <real|free|trial|pro>",
	Short: "Force a tier (real clears the override)",
	Args:  cobra.ExactArgs(1),
	Example: `  # Make every caller see the free tier
  tiergate override set free

  # Restore the real resolution
  tiergate override set real`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, ok := entitlements.ParseAdminTier(args[0])
		if !ok {
			return fmt.Errorf("unknown admin tier %q (want real, free, trial, or pro)", args[0])
		}

		ctx := cmd.Context()
		rt, cleanup, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := rt.engine.SetAdminOverrideTier(ctx, tier); err != nil {
			return err
		}
		if tier == entitlements.AdminTierReal {
			fmt.Println("Admin override cleared; real resolution restored.")
		} else {
			fmt.Printf("Admin override set to %s.\n", tier)
		}
		return nil
	},
}

var overrideClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the admin override",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := rt.engine.ClearAdminOverrideTier(ctx); err != nil {
			return err
		}
		fmt.Println("Admin override cleared; real resolution restored.")
		return nil
	},
}

func init() {
	overrideCmd.AddCommand(overrideSetCmd)
	overrideCmd.AddCommand(overrideClearCmd)
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Set the local override flag",
	Long: `Mark this device as unlocked after a one-time code redemption. The grant
carries Pro only while the remote authority is unreachable and is cleared
automatically once the authority confirms the account is not entitled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := rt.engine.SetLocalOverride(ctx); err != nil {
			return err
		}
		fmt.Println("Local override flag set.")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear persisted entitlement state (sign-out)",
	Long: `Remove the persisted snapshot and the local override flag. The admin
override tier is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, cleanup, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := rt.engine.Reset(ctx); err != nil {
			return err
		}
		fmt.Println("Entitlement state cleared.")
		return nil
	},
}
