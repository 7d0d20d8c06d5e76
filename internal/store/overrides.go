package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

// localOverrideRecord is the persisted form of the local override flag.
type localOverrideRecord struct {
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FlagStore persists the local override flag: a device-local grant (one-time
// code redemption) honored only while authoritative signals are unreachable.
type FlagStore struct {
	kv KV
}

func NewFlagStore(kv KV) *FlagStore {
	return &FlagStore{kv: kv}
}

// Get reports whether the flag is set. Missing, corrupt, or unreadable
// records read as false.
func (s *FlagStore) Get(ctx context.Context) bool {
	data, found, err := s.kv.Get(ctx, KeyLocalOverride)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read local override flag; treating as unset")
		return false
	}
	if !found {
		return false
	}

	var rec localOverrideRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Warn().Err(err).Msg("Local override flag is corrupt; treating as unset")
		return false
	}
	return rec.Enabled
}

// Set persists the flag state.
func (s *FlagStore) Set(ctx context.Context, enabled bool) error {
	data, err := json.Marshal(localOverrideRecord{
		Enabled:   enabled,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal local override flag: %w", err)
	}
	if err := s.kv.Set(ctx, KeyLocalOverride, data); err != nil {
		return fmt.Errorf("persist local override flag: %w", err)
	}
	return nil
}

// Clear removes the flag record entirely (sign-out).
func (s *FlagStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyLocalOverride); err != nil {
		return fmt.Errorf("clear local override flag: %w", err)
	}
	return nil
}

// adminOverrideRecord is the persisted form of the admin override tier.
type adminOverrideRecord struct {
	Tier      entitlements.AdminTier `json:"tier"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// AdminStore persists the admin override tier used by support and test
// tooling. It is independent of the snapshot and the local override flag.
type AdminStore struct {
	kv KV
}

func NewAdminStore(kv KV) *AdminStore {
	return &AdminStore{kv: kv}
}

// Get returns the persisted admin tier. Missing, corrupt, unreadable, or
// unknown records read as AdminTierReal (override disabled).
func (s *AdminStore) Get(ctx context.Context) entitlements.AdminTier {
	data, found, err := s.kv.Get(ctx, KeyAdminOverride)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read admin override; treating as real")
		return entitlements.AdminTierReal
	}
	if !found {
		return entitlements.AdminTierReal
	}

	var rec adminOverrideRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Warn().Err(err).Msg("Admin override is corrupt; treating as real")
		return entitlements.AdminTierReal
	}
	if !rec.Tier.Valid() {
		log.Warn().Str("tier", string(rec.Tier)).Msg("Admin override has unknown tier; treating as real")
		return entitlements.AdminTierReal
	}
	return rec.Tier
}

// Set persists an admin override tier.
func (s *AdminStore) Set(ctx context.Context, tier entitlements.AdminTier) error {
	if !tier.Valid() {
		return fmt.Errorf("unknown admin tier %q", tier)
	}
	data, err := json.Marshal(adminOverrideRecord{
		Tier:      tier,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal admin override: %w", err)
	}
	if err := s.kv.Set(ctx, KeyAdminOverride, data); err != nil {
		return fmt.Errorf("persist admin override: %w", err)
	}
	return nil
}

// Clear removes the admin override, restoring pass-through resolution.
func (s *AdminStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyAdminOverride); err != nil {
		return fmt.Errorf("clear admin override: %w", err)
	}
	return nil
}
