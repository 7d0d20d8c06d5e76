package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

// SnapshotStore persists the last resolution result. It carries no policy:
// staleness and precedence live in the resolution engine.
type SnapshotStore struct {
	kv KV
}

func NewSnapshotStore(kv KV) *SnapshotStore {
	return &SnapshotStore{kv: kv}
}

// Read returns the persisted snapshot, or nil when none exists. Corrupt or
// unreadable data is treated as absent so a damaged cache can never wedge
// resolution.
func (s *SnapshotStore) Read(ctx context.Context) *entitlements.Snapshot {
	data, found, err := s.kv.Get(ctx, KeySnapshot)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read persisted snapshot; treating as absent")
		return nil
	}
	if !found {
		return nil
	}

	var snap entitlements.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Msg("Persisted snapshot is corrupt; treating as absent")
		return nil
	}
	if !snap.Tier.Valid() {
		log.Warn().Str("tier", string(snap.Tier)).Msg("Persisted snapshot has unknown tier; treating as absent")
		return nil
	}
	return &snap
}

// Write persists a snapshot as one atomic unit, replacing any previous one.
func (s *SnapshotStore) Write(ctx context.Context, snap entitlements.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, KeySnapshot, data); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// Clear removes the persisted snapshot. Missing snapshots are not an error.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeySnapshot); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}
