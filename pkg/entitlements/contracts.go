package entitlements

import (
	"context"
	"time"
)

// BillingEntitlements is the active-purchase report from the platform
// billing provider.
type BillingEntitlements struct {
	Pro      bool `json:"pro"`
	ProTrial bool `json:"pro_trial"`
}

// Tier returns the tier the report grants. Pro wins when both products are
// reported active. ok is false when nothing is active.
func (b BillingEntitlements) Tier() (Tier, bool) {
	switch {
	case b.Pro:
		return TierPro, true
	case b.ProTrial:
		return TierProTrial, true
	}
	return "", false
}

// AuthorityStatus is a clean answer from the remote authority service.
type AuthorityStatus struct {
	IsPro     bool
	ExpiresAt *time.Time
}

// BillingProvider reads active purchases from the platform billing catalog.
// Any returned report is authoritative for the billing scope. An error means
// the provider could produce no signal at all (absent store,
// misconfiguration); callers treat it as silence, never as a negative.
type BillingProvider interface {
	ActiveEntitlements(ctx context.Context) (BillingEntitlements, error)
}

// AuthorityClient checks the remote authority service for the account's
// server-side entitlement. A nil error is a clean, authoritative answer; any
// error (network, timeout, non-2xx, malformed body, missing credential) is
// non-authoritative and must never cause a downgrade by itself.
type AuthorityClient interface {
	Check(ctx context.Context) (AuthorityStatus, error)
}
