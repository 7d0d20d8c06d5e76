package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tiergate/tiergate/internal/store"
)

const checkTimeout = 30 * time.Second

// probeResult is one line of the diagnostics report.
type probeResult struct {
	name   string
	usable bool
	detail string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the configured signal sources",
	Long: `Probe platform billing, the remote authority, and the snapshot store
concurrently and report what resolution has to work with. Exits non-zero
when no live signal source is usable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cleanup, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
		defer cancel()

		var billingRes, authorityRes, storeRes probeResult
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			billingRes = probeBilling(ctx, rt)
			return nil
		})
		g.Go(func() error {
			authorityRes = probeAuthority(ctx, rt)
			return nil
		})
		g.Go(func() error {
			storeRes = probeStore(ctx, rt)
			return nil
		})
		_ = g.Wait()

		for _, res := range []probeResult{billingRes, authorityRes, storeRes} {
			mark := "ok"
			if !res.usable {
				mark = "--"
			}
			fmt.Printf("%-18s %-3s %s\n", res.name, mark, res.detail)
		}

		if !billingRes.usable && !authorityRes.usable {
			cmd.SilenceUsage = true
			return fmt.Errorf("no live signal source is usable; resolution will serve cache or the conservative default")
		}
		return nil
	},
}

func probeBilling(ctx context.Context, rt *runtime) probeResult {
	res := probeResult{name: "platform billing"}
	report, err := rt.billing.ActiveEntitlements(ctx)
	if err != nil {
		res.detail = err.Error()
		return res
	}
	res.usable = true
	if tier, ok := report.Tier(); ok {
		res.detail = fmt.Sprintf("active entitlement: %s", tier)
	} else {
		res.detail = "reachable, nothing active"
	}
	return res
}

func probeAuthority(ctx context.Context, rt *runtime) probeResult {
	res := probeResult{name: "remote authority"}
	if rt.authority == nil {
		res.detail = "not configured"
		return res
	}
	status, err := rt.authority.Check(ctx)
	if err != nil {
		res.detail = err.Error()
		return res
	}
	res.usable = true
	res.detail = fmt.Sprintf("clean answer, isPro=%v", status.IsPro)
	return res
}

func probeStore(ctx context.Context, rt *runtime) probeResult {
	res := probeResult{name: "snapshot store"}
	if _, _, err := rt.kv.Get(ctx, store.KeySnapshot); err != nil {
		res.detail = err.Error()
		return res
	}
	res.usable = true
	if snap := store.NewSnapshotStore(rt.kv).Read(ctx); snap != nil {
		res.detail = fmt.Sprintf("snapshot %s from %s, age %s",
			snap.Tier, snap.Source, snap.Age(time.Now()).Round(time.Second))
	} else {
		res.detail = "reachable, no snapshot persisted"
	}
	return res
}
