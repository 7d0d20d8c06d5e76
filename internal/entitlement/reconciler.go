package entitlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tiergate/tiergate/internal/metrics"
	"github.com/tiergate/tiergate/internal/store"
	"github.com/tiergate/tiergate/pkg/entitlements"
)

// Reconciler merges the three signal sources into a single snapshot, in
// trust order. It holds no state of its own beyond the override flag store
// it must clear on an authoritative negative.
type Reconciler struct {
	billing   entitlements.BillingProvider
	authority entitlements.AuthorityClient
	flags     *store.FlagStore
	now       func() time.Time
}

// NewReconciler wires the reconciler's signal sources.
func NewReconciler(billing entitlements.BillingProvider, authority entitlements.AuthorityClient, flags *store.FlagStore) *Reconciler {
	return &Reconciler{
		billing:   billing,
		authority: authority,
		flags:     flags,
		now:       time.Now,
	}
}

// Reconcile runs one live resolution pass. prev is the previously persisted
// snapshot (nil when none exists) and feeds only the sticky-Pro rule.
//
// Precedence:
//  1. An active purchase or trial from platform billing wins outright.
//  2. A clean remote authority answer is authoritative in both directions;
//     a clean negative also clears the local override flag.
//  3. A previously confirmed Pro survives remote failures. Trials never
//     stick; they expire server-side and must re-confirm.
//  4. The local override flag grants Pro while the authority is unreachable.
//  5. Conservative default: Free.
func (r *Reconciler) Reconcile(ctx context.Context, prev *entitlements.Snapshot) entitlements.Snapshot {
	checkedAt := r.now().UTC()

	report, billingErr := r.billing.ActiveEntitlements(ctx)
	if billingErr == nil {
		if tier, ok := report.Tier(); ok {
			return entitlements.Snapshot{
				Tier:      tier,
				CheckedAt: checkedAt,
				Source:    entitlements.SourcePlatformBilling,
				Stale:     false,
			}
		}
	} else {
		// Absent or misconfigured billing is silence, never a negative.
		log.Debug().Err(billingErr).Msg("Platform billing produced no signal; consulting remote authority")
	}

	status, authErr := r.authority.Check(ctx)
	if authErr == nil {
		metrics.AuthorityChecksTotal.WithLabelValues(metrics.OutcomeAuthoritative).Inc()
		if status.IsPro {
			return entitlements.Snapshot{
				Tier:      entitlements.TierPro,
				CheckedAt: checkedAt,
				Source:    entitlements.SourceRemoteAuthority,
				Stale:     false,
				ExpiresAt: status.ExpiresAt,
			}
		}

		// Authoritative negative. The local override flag must not outlive
		// a confirmed revocation.
		r.clearOverrideFlag(ctx)
		return entitlements.Snapshot{
			Tier:      entitlements.TierFree,
			CheckedAt: checkedAt,
			Source:    entitlements.SourceRemoteAuthority,
			Stale:     false,
		}
	}
	metrics.AuthorityChecksTotal.WithLabelValues(metrics.OutcomeNonAuthoritative).Inc()
	log.Debug().Err(authErr).Msg("Remote authority unavailable; falling back to local signals")
	failure := authErr.Error()

	if prev != nil && prev.Tier == entitlements.TierPro {
		return entitlements.Snapshot{
			Tier:      entitlements.TierPro,
			CheckedAt: checkedAt,
			Source:    entitlements.SourceCache,
			Stale:     true,
			ExpiresAt: prev.ExpiresAt,
			Error:     failure,
		}
	}

	if r.flags.Get(ctx) {
		return entitlements.Snapshot{
			Tier:      entitlements.TierPro,
			CheckedAt: checkedAt,
			Source:    entitlements.SourceLocalOverride,
			Stale:     true,
			Error:     failure,
		}
	}

	return entitlements.Snapshot{
		Tier:      entitlements.TierFree,
		CheckedAt: checkedAt,
		Source:    entitlements.SourceNone,
		Stale:     true,
		Error:     failure,
	}
}

// clearOverrideFlag drops the local override after an authoritative negative.
// Write failures are logged, never fatal: the pass result stands either way
// and the next clean negative will retry the clear.
func (r *Reconciler) clearOverrideFlag(ctx context.Context) {
	if !r.flags.Get(ctx) {
		return
	}
	if err := r.flags.Set(ctx, false); err != nil {
		log.Warn().Err(err).Msg("Failed to clear local override flag after authoritative negative")
		return
	}
	log.Info().Msg("Local override flag cleared by authoritative negative")
}
