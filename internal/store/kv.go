// Package store persists entitlement state on the local device.
//
// State is kept in a small key/value store with three interchangeable
// backends (file, sqlite, memory). Each piece of state lives under its own
// dedicated key so overrides survive snapshot resets independently.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Dedicated keys. The local and admin overrides are persisted separately
// from the snapshot so clearing one never disturbs the others.
const (
	KeySnapshot      = "snapshot"
	KeyLocalOverride = "local_override"
	KeyAdminOverride = "admin_override"
	KeyDeviceID      = "device_id"
)

const maxValueSize = 1 << 20 // 1 MiB

var (
	// ErrInvalidKey is returned for keys outside [a-z0-9_].
	ErrInvalidKey = errors.New("invalid store key")

	// ErrValueTooLarge is returned when a value exceeds maxValueSize.
	ErrValueTooLarge = errors.New("store value exceeds size limit")
)

// KV is a minimal byte store. Get reports found=false for missing keys;
// corrupt-value tolerance is the caller's job, not the store's.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// validateKey rejects keys that could escape the backing namespace (path
// traversal for the file backend, surprising rows for sqlite).
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for _, r := range key {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
