// Package billing adapts platform billing providers to the resolution
// engine's entitlement contract.
package billing

import (
	"context"
	"errors"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

// ErrNotConfigured means no billing catalog is available on this install.
// The engine treats it as silence, not as a negative signal.
var ErrNotConfigured = errors.New("billing provider not configured")

// None is the provider for builds without a platform billing catalog.
type None struct{}

func (None) ActiveEntitlements(ctx context.Context) (entitlements.BillingEntitlements, error) {
	return entitlements.BillingEntitlements{}, ErrNotConfigured
}

// Static reports a fixed answer. Used in tests and by embedders that read
// the platform catalog through their own channel.
type Static struct {
	Report entitlements.BillingEntitlements
	Err    error
}

func (s Static) ActiveEntitlements(ctx context.Context) (entitlements.BillingEntitlements, error) {
	if s.Err != nil {
		return entitlements.BillingEntitlements{}, s.Err
	}
	return s.Report, nil
}
