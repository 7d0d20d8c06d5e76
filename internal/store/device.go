package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// EnsureDeviceID returns the stable per-device identifier, generating and
// persisting a new one on first use. The remote authority uses it for
// per-device decisions.
func EnsureDeviceID(ctx context.Context, kv KV) (string, error) {
	data, found, err := kv.Get(ctx, KeyDeviceID)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	if found {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
		// Damaged id: mint a fresh one rather than failing resolution.
	}

	id := uuid.NewString()
	if err := kv.Set(ctx, KeyDeviceID, []byte(id)); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}
