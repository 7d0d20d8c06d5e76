package billing

import (
	"context"
	"errors"
	"testing"

	stripelib "github.com/stripe/stripe-go/v82"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

func TestNoneReportsNotConfigured(t *testing.T) {
	_, err := None{}.ActiveEntitlements(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want %v", err, ErrNotConfigured)
	}
}

func TestStaticProvider(t *testing.T) {
	report, err := Static{Report: entitlements.BillingEntitlements{Pro: true}}.ActiveEntitlements(context.Background())
	if err != nil {
		t.Fatalf("ActiveEntitlements: %v", err)
	}
	if !report.Pro || report.ProTrial {
		t.Fatalf("unexpected report: %+v", report)
	}

	wantErr := errors.New("store unavailable")
	if _, err := (Static{Err: wantErr}).ActiveEntitlements(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestStripeProviderRequiresConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		apiKey     string
		customerID string
	}{
		{name: "missing_both", apiKey: "", customerID: ""},
		{name: "missing_customer", apiKey: "sk_test_123", customerID: ""},
		{name: "missing_key", apiKey: "", customerID: "cus_123"},
		{name: "whitespace_only", apiKey: "   ", customerID: "  "},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := NewStripeProvider(tt.apiKey, tt.customerID)
			if p.Configured() {
				t.Fatal("provider should not report configured")
			}
			_, err := p.ActiveEntitlements(context.Background())
			if !errors.Is(err, ErrNotConfigured) {
				t.Errorf("err = %v, want %v", err, ErrNotConfigured)
			}
		})
	}
}

func TestGrantForStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     stripelib.SubscriptionStatus
		wantTier   entitlements.Tier
		wantActive bool
	}{
		{name: "active_grants_pro", status: stripelib.SubscriptionStatusActive, wantTier: entitlements.TierPro, wantActive: true},
		{name: "trialing_grants_trial", status: stripelib.SubscriptionStatusTrialing, wantTier: entitlements.TierProTrial, wantActive: true},
		{name: "past_due_keeps_pro", status: stripelib.SubscriptionStatusPastDue, wantTier: entitlements.TierPro, wantActive: true},
		{name: "unpaid_keeps_pro", status: stripelib.SubscriptionStatusUnpaid, wantTier: entitlements.TierPro, wantActive: true},
		{name: "canceled_grants_nothing", status: stripelib.SubscriptionStatusCanceled, wantActive: false},
		{name: "paused_grants_nothing", status: stripelib.SubscriptionStatusPaused, wantActive: false},
		{name: "incomplete_grants_nothing", status: stripelib.SubscriptionStatusIncomplete, wantActive: false},
		{name: "unknown_fails_closed", status: stripelib.SubscriptionStatus("mystery"), wantActive: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tier, active := grantForStatus(tt.status)
			if active != tt.wantActive {
				t.Fatalf("active = %v, want %v", active, tt.wantActive)
			}
			if active && tier != tt.wantTier {
				t.Errorf("tier = %q, want %q", tier, tt.wantTier)
			}
		})
	}
}
