package entitlements

import "time"

// Snapshot is one immutable resolution result. A new pass supersedes the
// previous snapshot; snapshots are never mutated in place and are deleted
// only on explicit reset/sign-out.
type Snapshot struct {
	// ID is a ULID assigned by the pass that produced the snapshot.
	ID string `json:"id,omitempty"`

	// Tier is the resolved entitlement tier.
	Tier Tier `json:"tier"`

	// CheckedAt is when the resolution pass ran.
	CheckedAt time.Time `json:"checked_at"`

	// Source is the signal that carried the decision.
	Source Source `json:"source"`

	// Stale is true when the tier was not confirmed by an authoritative
	// signal during the pass that produced it.
	Stale bool `json:"is_stale"`

	// ExpiresAt is the expiry reported by an authoritative signal, when known.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Error describes the non-fatal failure that degraded the pass, if any.
	Error string `json:"error,omitempty"`
}

// Paid reports whether the snapshot's tier unlocks paid functionality.
func (s Snapshot) Paid() bool {
	return s.Tier.Paid()
}

// Age returns how long ago the snapshot was produced, clamped at zero for
// snapshots stamped in the future (clock adjustments).
func (s Snapshot) Age(now time.Time) time.Duration {
	age := now.Sub(s.CheckedAt)
	if age < 0 {
		return 0
	}
	return age
}
