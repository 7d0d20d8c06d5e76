package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

func TestSnapshotStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	snaps := NewSnapshotStore(NewMemoryKV())

	assert.Nil(t, snaps.Read(ctx), "fresh store should have no snapshot")

	snap := entitlements.Snapshot{
		ID:        "01JMXYJ3A8Z1B2C3D4E5F6G7H8",
		Tier:      entitlements.TierPro,
		CheckedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Source:    entitlements.SourceRemoteAuthority,
	}
	require.NoError(t, snaps.Write(ctx, snap))

	got := snaps.Read(ctx)
	require.NotNil(t, got)
	assert.Equal(t, snap, *got)

	require.NoError(t, snaps.Clear(ctx))
	assert.Nil(t, snaps.Read(ctx), "cleared store should have no snapshot")
	require.NoError(t, snaps.Clear(ctx), "clearing twice should be a no-op")
}

func TestSnapshotStore_CorruptDataReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	snaps := NewSnapshotStore(kv)

	require.NoError(t, kv.Set(ctx, KeySnapshot, []byte("{not json")))
	assert.Nil(t, snaps.Read(ctx), "corrupt snapshot must read as absent")

	require.NoError(t, kv.Set(ctx, KeySnapshot, []byte(`{"tier":"platinum"}`)))
	assert.Nil(t, snaps.Read(ctx), "unknown tier must read as absent")
}

func TestFlagStore_Defaults(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	flags := NewFlagStore(kv)

	assert.False(t, flags.Get(ctx), "missing flag reads as unset")

	require.NoError(t, kv.Set(ctx, KeyLocalOverride, []byte("garbage")))
	assert.False(t, flags.Get(ctx), "corrupt flag reads as unset")
}

func TestFlagStore_SetAndClear(t *testing.T) {
	ctx := context.Background()
	flags := NewFlagStore(NewMemoryKV())

	require.NoError(t, flags.Set(ctx, true))
	assert.True(t, flags.Get(ctx))

	require.NoError(t, flags.Set(ctx, false))
	assert.False(t, flags.Get(ctx))
}

func TestAdminStore_Defaults(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	admin := NewAdminStore(kv)

	assert.Equal(t, entitlements.AdminTierReal, admin.Get(ctx), "missing override reads as real")

	require.NoError(t, kv.Set(ctx, KeyAdminOverride, []byte("garbage")))
	assert.Equal(t, entitlements.AdminTierReal, admin.Get(ctx), "corrupt override reads as real")

	require.NoError(t, kv.Set(ctx, KeyAdminOverride, []byte(`{"tier":"staff"}`)))
	assert.Equal(t, entitlements.AdminTierReal, admin.Get(ctx), "unknown tier reads as real")
}

func TestAdminStore_SetAndClear(t *testing.T) {
	ctx := context.Background()
	admin := NewAdminStore(NewMemoryKV())

	require.Error(t, admin.Set(ctx, entitlements.AdminTier("staff")), "unknown tier must be rejected")

	require.NoError(t, admin.Set(ctx, entitlements.AdminTierPro))
	assert.Equal(t, entitlements.AdminTierPro, admin.Get(ctx))

	require.NoError(t, admin.Clear(ctx))
	assert.Equal(t, entitlements.AdminTierReal, admin.Get(ctx))
}

func TestEnsureDeviceID(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	id1, err := EnsureDeviceID(ctx, kv)
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := EnsureDeviceID(ctx, kv)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "device id must be stable across calls")

	require.NoError(t, kv.Set(ctx, KeyDeviceID, []byte("not-a-uuid")))
	id3, err := EnsureDeviceID(ctx, kv)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", id3, "damaged device id must be replaced")
}
