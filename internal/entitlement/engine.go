// Package entitlement implements the resolution engine: a source reconciler
// that merges platform billing, the remote authority, and the local override
// flag in trust order, and a refresh orchestrator that decides when a cached
// snapshot may be served instead of a live pass. The admin override tier is
// applied last on every path and is never persisted.
package entitlement

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tiergate/tiergate/internal/billing"
	"github.com/tiergate/tiergate/internal/history"
	"github.com/tiergate/tiergate/internal/metrics"
	"github.com/tiergate/tiergate/internal/store"
	"github.com/tiergate/tiergate/pkg/entitlements"
)

// DefaultRevalidateInterval bounds how often a set local override flag
// triggers a background authority check on the fast path.
const DefaultRevalidateInterval = 5 * time.Minute

// revalidateTimeout bounds the detached revalidation check, which runs on
// its own context so a cancelled UI read cannot abort enforcement.
const revalidateTimeout = 10 * time.Second

// Config wires the engine's signal sources and stores.
type Config struct {
	// KV is the persistence backend for snapshots, flags, and overrides.
	KV store.KV

	// Billing reads the platform billing catalog. Nil means no catalog on
	// this install (treated as silence).
	Billing entitlements.BillingProvider

	// Authority checks the remote authority service. Nil means every check
	// is a non-authoritative failure.
	Authority entitlements.AuthorityClient

	// History records resolution events. Optional.
	History *history.Log

	// StalenessWindow bounds how long a persisted snapshot may satisfy
	// Resolve without a live pass. Zero means the default of seven days.
	StalenessWindow time.Duration

	// RevalidateInterval bounds fast-path override revalidation frequency.
	// Zero means DefaultRevalidateInterval.
	RevalidateInterval time.Duration
}

// Engine is the public entry point for entitlement resolution. All methods
// are safe for concurrent use.
type Engine struct {
	snapshots  *store.SnapshotStore
	flags      *store.FlagStore
	admin      *store.AdminStore
	reconciler *Reconciler

	window  time.Duration
	history *history.Log

	// refreshing is the single-flight guard for live passes. Losers are
	// served the last known state instead of stacking reconciliations.
	refreshing atomic.Bool

	// reval and revalGroup bound and coalesce fast-path override
	// revalidation.
	reval      *rate.Limiter
	revalGroup singleflight.Group

	now func() time.Time
}

// New creates an engine from cfg. Missing sources degrade to silence and a
// nil KV falls back to an in-memory store, so the engine always resolves to
// something.
func New(cfg Config) *Engine {
	if cfg.KV == nil {
		cfg.KV = store.NewMemoryKV()
	}
	if cfg.Billing == nil {
		cfg.Billing = billing.None{}
	}
	if cfg.Authority == nil {
		cfg.Authority = noAuthority{}
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = entitlements.DefaultStalenessWindow
	}
	if cfg.RevalidateInterval <= 0 {
		cfg.RevalidateInterval = DefaultRevalidateInterval
	}

	flags := store.NewFlagStore(cfg.KV)
	return &Engine{
		snapshots:  store.NewSnapshotStore(cfg.KV),
		flags:      flags,
		admin:      store.NewAdminStore(cfg.KV),
		reconciler: NewReconciler(cfg.Billing, cfg.Authority, flags),
		window:     cfg.StalenessWindow,
		history:    cfg.History,
		reval:      rate.NewLimiter(rate.Every(cfg.RevalidateInterval), 1),
		now:        time.Now,
	}
}

// ResolveOptions controls a single Resolve call.
type ResolveOptions struct {
	// ForceRefresh skips the cached snapshot and runs a live pass.
	ForceRefresh bool

	// Trigger labels the pass in history and metrics. Empty derives the
	// label from the path taken.
	Trigger history.Trigger
}

// Resolve returns the current entitlement snapshot. It never returns an
// error: every failure mode degrades into the snapshot's Stale and Error
// fields so callers always have a tier to act on.
func (e *Engine) Resolve(ctx context.Context, opts ResolveOptions) entitlements.Snapshot {
	start := e.now()

	if !opts.ForceRefresh {
		if cached := e.snapshots.Read(ctx); cached != nil && cached.Age(e.now()) <= e.window {
			// Within the staleness window the persisted result stands on
			// its own; no live signal is consulted. A set override flag is
			// the one exception: it gets a bounded background check so a
			// revoked override cannot ride the cache indefinitely.
			e.maybeRevalidateOverride(ctx)

			snap := *cached
			snap.Source = entitlements.SourceCache
			snap.Stale = false
			trigger := opts.Trigger
			if trigger == "" {
				trigger = history.TriggerFastPath
			}
			return e.finish(ctx, trigger, snap, start)
		}
	}

	trigger := opts.Trigger
	if trigger == "" {
		trigger = history.TriggerResolve
		if opts.ForceRefresh {
			trigger = history.TriggerForce
		}
	}

	if !e.refreshing.CompareAndSwap(false, true) {
		// A live pass is already in flight; its result will land in the
		// store for subsequent reads.
		log.Debug().Msg("Resolution already in flight; serving last known state")
		return e.finish(ctx, trigger, e.lastKnown(ctx), start)
	}
	defer e.refreshing.Store(false)
	snap := e.livePass(ctx)

	metrics.ResolutionDuration.WithLabelValues(string(trigger)).Observe(e.now().Sub(start).Seconds())
	return e.finish(ctx, trigger, snap, start)
}

// LastKnown returns the current view without touching any live source. The
// admin override still applies.
func (e *Engine) LastKnown(ctx context.Context) entitlements.Snapshot {
	return e.applyAdmin(ctx, e.lastKnown(ctx))
}

// SetLocalOverride persists the device-local grant. Called by the redemption
// collaborator after a successful one-time unlock code redemption.
func (e *Engine) SetLocalOverride(ctx context.Context) error {
	if err := e.flags.Set(ctx, true); err != nil {
		return err
	}
	log.Info().Msg("Local override flag set")
	return nil
}

// ClearLocalOverride drops the device-local grant.
func (e *Engine) ClearLocalOverride(ctx context.Context) error {
	return e.flags.Set(ctx, false)
}

// LocalOverride reports whether the device-local grant is set.
func (e *Engine) LocalOverride(ctx context.Context) bool {
	return e.flags.Get(ctx)
}

// SetAdminOverrideTier forces the tier reported to callers. Setting
// AdminTierReal is equivalent to clearing. The persisted snapshot is never
// touched, so clearing restores the real resolution untouched.
func (e *Engine) SetAdminOverrideTier(ctx context.Context, tier entitlements.AdminTier) error {
	if tier == entitlements.AdminTierReal {
		return e.admin.Clear(ctx)
	}
	return e.admin.Set(ctx, tier)
}

// ClearAdminOverrideTier restores pass-through resolution.
func (e *Engine) ClearAdminOverrideTier(ctx context.Context) error {
	return e.admin.Clear(ctx)
}

// AdminOverrideTier returns the currently persisted admin override.
func (e *Engine) AdminOverrideTier(ctx context.Context) entitlements.AdminTier {
	return e.admin.Get(ctx)
}

// Reset clears the persisted snapshot and the local override flag
// (sign-out). The admin override tier is deliberately left to the
// privileged tools that set it.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.snapshots.Clear(ctx); err != nil {
		return err
	}
	if err := e.flags.Clear(ctx); err != nil {
		return err
	}
	log.Info().Msg("Entitlement state reset")
	e.record(history.TriggerReset, entitlements.Snapshot{
		Tier:      entitlements.TierFree,
		CheckedAt: e.now().UTC(),
		Source:    entitlements.SourceNone,
		Stale:     true,
	}, 0)
	return nil
}

// livePass runs one reconciliation pass and persists the result. The
// persisted snapshot never carries the admin override.
func (e *Engine) livePass(ctx context.Context) entitlements.Snapshot {
	prev := e.snapshots.Read(ctx)
	snap := e.reconciler.Reconcile(ctx, prev)
	snap.ID = ulid.Make().String()
	if err := e.snapshots.Write(ctx, snap); err != nil {
		log.Warn().Err(err).Msg("Failed to persist resolution snapshot")
	}
	log.Debug().
		Str("tier", string(snap.Tier)).
		Str("source", string(snap.Source)).
		Bool("stale", snap.Stale).
		Msg("Resolution pass complete")
	return snap
}

// lastKnown is the no-live-call view: the persisted snapshot relabeled as
// cache, or the conservative default when nothing is persisted.
func (e *Engine) lastKnown(ctx context.Context) entitlements.Snapshot {
	cached := e.snapshots.Read(ctx)
	if cached == nil {
		return entitlements.Snapshot{
			Tier:      entitlements.TierFree,
			CheckedAt: e.now().UTC(),
			Source:    entitlements.SourceNone,
			Stale:     true,
			Error:     "no resolution has completed yet",
		}
	}
	snap := *cached
	snap.Source = entitlements.SourceCache
	snap.Stale = snap.Age(e.now()) > e.window
	return snap
}

// finish applies the admin override and records the pass. Every Resolve
// return path funnels through here, so no caller observes a pre-override
// snapshot under any interleaving.
func (e *Engine) finish(ctx context.Context, trigger history.Trigger, snap entitlements.Snapshot, start time.Time) entitlements.Snapshot {
	snap = e.applyAdmin(ctx, snap)
	e.record(trigger, snap, e.now().Sub(start))
	return snap
}

// applyAdmin overlays the admin override tier, if one is set. The override
// shapes only what callers see; persisted state keeps the real resolution so
// clearing the override needs no extra pass.
func (e *Engine) applyAdmin(ctx context.Context, snap entitlements.Snapshot) entitlements.Snapshot {
	forced, ok := e.admin.Get(ctx).Forced()
	if !ok {
		return snap
	}
	snap.Tier = forced
	snap.Source = entitlements.SourceAdminOverride
	return snap
}

func (e *Engine) record(trigger history.Trigger, snap entitlements.Snapshot, elapsed time.Duration) {
	metrics.ResolutionsTotal.WithLabelValues(string(trigger), string(snap.Tier)).Inc()
	if snap.Stale {
		metrics.StaleResolutionsTotal.Inc()
	}
	if e.history == nil {
		return
	}
	if _, err := e.history.Record(history.Entry{
		Trigger:    trigger,
		Tier:       snap.Tier,
		Source:     snap.Source,
		Stale:      snap.Stale,
		Error:      snap.Error,
		DurationMs: elapsed.Milliseconds(),
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to record resolution history entry")
	}
}

// maybeRevalidateOverride schedules a background authority check while a set
// override flag is being served from cache. The check is rate-limited,
// coalesced, and detached from the caller: fast-path reads never block on
// the network.
func (e *Engine) maybeRevalidateOverride(ctx context.Context) {
	if !e.flags.Get(ctx) {
		return
	}
	if !e.reval.Allow() {
		metrics.OverrideRevalidationsTotal.WithLabelValues(metrics.RevalidationSkipped).Inc()
		return
	}
	go func() {
		_, _, _ = e.revalGroup.Do("override", func() (any, error) {
			e.revalidateOverride()
			return nil, nil
		})
	}()
}

// revalidateOverride checks the remote authority once. A clean negative
// revokes the flag and persists a fresh pass so subsequent reads serve the
// enforced result; anything else leaves flag and cache untouched.
func (e *Engine) revalidateOverride() {
	start := e.now()
	ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
	defer cancel()

	status, err := e.reconciler.authority.Check(ctx)
	switch {
	case err != nil:
		metrics.OverrideRevalidationsTotal.WithLabelValues(metrics.RevalidationUnavailable).Inc()
		log.Debug().Err(err).Msg("Override revalidation inconclusive; keeping local override")
		return
	case status.IsPro:
		metrics.OverrideRevalidationsTotal.WithLabelValues(metrics.RevalidationConfirmed).Inc()
		return
	}

	metrics.OverrideRevalidationsTotal.WithLabelValues(metrics.RevalidationRevoked).Inc()
	log.Info().Msg("Remote authority revoked the local override; refreshing")
	if err := e.flags.Set(ctx, false); err != nil {
		log.Warn().Err(err).Msg("Failed to clear local override flag after revocation")
	}

	if !e.refreshing.CompareAndSwap(false, true) {
		// A live pass is already running; it will see the cleared flag.
		return
	}
	defer e.refreshing.Store(false)
	snap := e.livePass(ctx)
	e.record(history.TriggerRevalidation, snap, e.now().Sub(start))
}

// noAuthority stands in when no remote authority is configured. Every check
// is a non-authoritative failure, so local signals carry the decision.
type noAuthority struct{}

func (noAuthority) Check(ctx context.Context) (entitlements.AuthorityStatus, error) {
	return entitlements.AuthorityStatus{}, errors.New("remote authority not configured")
}
