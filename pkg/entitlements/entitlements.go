// Package entitlements defines the shared tier, source, and snapshot
// contracts for the tiergate resolution engine.
//
// This package exists so embedders and extension tooling can depend on the
// canonical entitlement metadata without importing internal packages.
package entitlements

import "time"

// Tier represents the resolved entitlement tier for the current user/device.
type Tier string

const (
	TierFree     Tier = "free"
	TierProTrial Tier = "pro_trial"
	TierPro      Tier = "pro"
)

// DefaultStalenessWindow is how long a persisted snapshot may be served
// without a fresh reconciliation pass.
const DefaultStalenessWindow = 7 * 24 * time.Hour

// Paid reports whether the tier unlocks paid functionality.
func (t Tier) Paid() bool {
	return t == TierPro || t == TierProTrial
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierProTrial, TierPro:
		return true
	}
	return false
}

// ParseTier normalizes a tier string. Unknown values return ok=false.
func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	if t.Valid() {
		return t, true
	}
	return "", false
}

// Source identifies which signal a snapshot's tier was derived from.
type Source string

const (
	// SourcePlatformBilling means the platform billing provider reported an
	// active purchase or trial this pass.
	SourcePlatformBilling Source = "platform_billing"

	// SourceRemoteAuthority means the remote authority service answered
	// cleanly this pass.
	SourceRemoteAuthority Source = "remote_authority"

	// SourceLocalOverride means the locally persisted override flag carried
	// the decision because no authoritative signal was reachable.
	SourceLocalOverride Source = "local_override"

	// SourceAdminOverride means an admin override tier replaced the real
	// resolution result.
	SourceAdminOverride Source = "admin_override"

	// SourceCache means a previously persisted snapshot carried the decision.
	SourceCache Source = "cache"

	// SourceNone means no signal was available and the conservative default
	// applied.
	SourceNone Source = "none"
)

// AdminTier is a forced tier for testing and support tooling. It is applied
// after every resolution pass and never persisted into snapshots.
type AdminTier string

const (
	// AdminTierReal disables the override and exposes the real resolution.
	AdminTierReal  AdminTier = "real"
	AdminTierFree  AdminTier = "free"
	AdminTierTrial AdminTier = "trial"
	AdminTierPro   AdminTier = "pro"
)

// Valid reports whether a is a known admin tier.
func (a AdminTier) Valid() bool {
	switch a {
	case AdminTierReal, AdminTierFree, AdminTierTrial, AdminTierPro:
		return true
	}
	return false
}

// ParseAdminTier normalizes an admin tier string. Unknown values return
// ok=false.
func ParseAdminTier(s string) (AdminTier, bool) {
	a := AdminTier(s)
	if a.Valid() {
		return a, true
	}
	return "", false
}

// Forced returns the tier an admin override maps to. ok is false for
// AdminTierReal (and unknown values), meaning the real result passes through.
func (a AdminTier) Forced() (Tier, bool) {
	switch a {
	case AdminTierFree:
		return TierFree, true
	case AdminTierTrial:
		return TierProTrial, true
	case AdminTierPro:
		return TierPro, true
	}
	return "", false
}
