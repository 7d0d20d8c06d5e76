package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	stripelib "github.com/stripe/stripe-go/v82"
	stripeclient "github.com/stripe/stripe-go/v82/client"

	"github.com/tiergate/tiergate/pkg/entitlements"
)

// StripeProvider reads active subscriptions for one customer from Stripe.
//
// The Stripe client is held on the instance and initialized once on first
// use; nothing touches the package-global stripe key, so multiple providers
// with different keys can coexist in one process.
type StripeProvider struct {
	apiKey     string
	customerID string

	initOnce sync.Once
	api      *stripeclient.API
}

// NewStripeProvider builds a provider. An empty key or customer id yields a
// provider that reports ErrNotConfigured on every call.
func NewStripeProvider(apiKey, customerID string) *StripeProvider {
	return &StripeProvider{
		apiKey:     strings.TrimSpace(apiKey),
		customerID: strings.TrimSpace(customerID),
	}
}

// Configured reports whether the provider has enough settings to answer.
func (p *StripeProvider) Configured() bool {
	return p != nil && p.apiKey != "" && p.customerID != ""
}

func (p *StripeProvider) ActiveEntitlements(ctx context.Context) (entitlements.BillingEntitlements, error) {
	if !p.Configured() {
		return entitlements.BillingEntitlements{}, ErrNotConfigured
	}
	p.initOnce.Do(func() {
		p.api = &stripeclient.API{}
		p.api.Init(p.apiKey, nil)
	})

	params := &stripelib.SubscriptionListParams{
		Customer: stripelib.String(p.customerID),
		Status:   stripelib.String("all"),
	}
	params.Context = ctx
	params.Limit = stripelib.Int64(100)

	var report entitlements.BillingEntitlements
	iter := p.api.Subscriptions.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		tier, active := grantForStatus(sub.Status)
		if !active {
			continue
		}
		switch tier {
		case entitlements.TierPro:
			report.Pro = true
		case entitlements.TierProTrial:
			report.ProTrial = true
		}
	}
	if err := iter.Err(); err != nil {
		return entitlements.BillingEntitlements{}, fmt.Errorf("list stripe subscriptions: %w", err)
	}
	return report, nil
}

// grantForStatus maps a subscription status to the product it keeps active.
// past_due and unpaid keep Pro alive through dunning.
func grantForStatus(status stripelib.SubscriptionStatus) (entitlements.Tier, bool) {
	switch status {
	case stripelib.SubscriptionStatusActive:
		return entitlements.TierPro, true
	case stripelib.SubscriptionStatusTrialing:
		return entitlements.TierProTrial, true
	case stripelib.SubscriptionStatusPastDue, stripelib.SubscriptionStatusUnpaid:
		return entitlements.TierPro, true
	default:
		// Fail closed: unknown status grants nothing.
		return "", false
	}
}
