/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flow

import (
	"time"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

const (
	DefaultSessionTimeout  = 10 * time.Second
	DefaultFinalityTimeout = 30 * time.Second
	DefaultDeliveryRetries = 3
	DefaultNotaryRetries   = 3
	DefaultDeliveryDelay   = 100 * time.Millisecond
)

// ConfigProvider gives access to the license section of the configuration
type ConfigProvider interface {
	GetDurationOrDefault(key string, defaultValue time.Duration) time.Duration
	GetIntOrDefault(key string, defaultValue int) int
	GetStringSlice(key string) []string
}

// IdentityResolver resolves the label of a party into its identity
type IdentityResolver interface {
	Identity(label string) (view.Identity, bool)
}

// Options tunes the commit protocol of a party
type Options struct {
	// Notary is the notary named in the transactions this party builds
	Notary view.Identity
	// TrustedNotaries are the notaries a counter-signer accepts
	TrustedNotaries view.Identities
	// SessionTimeout bounds every wait for a counterparty or the notary
	SessionTimeout time.Duration
	// FinalityTimeout bounds the wait of a counter-signer for the notarized transaction
	FinalityTimeout time.Duration
	DeliveryRetries int
	DeliveryDelay   time.Duration
	// NotaryRetries bounds the submissions of a transaction the notary does not answer for.
	// Retries wait DeliveryDelay, doubled at every attempt.
	NotaryRetries int
}

// LoadOptions reads the options from the license section of the configuration.
// The first entry of license.notaries is the notary used when building transactions.
func LoadOptions(cp ConfigProvider, resolver IdentityResolver) (*Options, error) {
	o := &Options{
		SessionTimeout:  cp.GetDurationOrDefault("license.session.timeout", DefaultSessionTimeout),
		FinalityTimeout: cp.GetDurationOrDefault("license.finality.timeout", DefaultFinalityTimeout),
		DeliveryRetries: cp.GetIntOrDefault("license.delivery.retries", DefaultDeliveryRetries),
		DeliveryDelay:   cp.GetDurationOrDefault("license.delivery.delay", DefaultDeliveryDelay),
		NotaryRetries:   cp.GetIntOrDefault("license.notary.retries", DefaultNotaryRetries),
	}
	for _, label := range cp.GetStringSlice("license.notaries") {
		id, ok := resolver.Identity(label)
		if !ok {
			return nil, errors.Errorf("unknown notary [%s]", label)
		}
		o.TrustedNotaries = append(o.TrustedNotaries, id)
	}
	if len(o.TrustedNotaries) != 0 {
		o.Notary = o.TrustedNotaries[0]
	}
	return o.normalize(), nil
}

func (o *Options) normalize() *Options {
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = DefaultSessionTimeout
	}
	if o.FinalityTimeout <= 0 {
		o.FinalityTimeout = DefaultFinalityTimeout
	}
	if o.DeliveryRetries <= 0 {
		o.DeliveryRetries = DefaultDeliveryRetries
	}
	if o.DeliveryDelay <= 0 {
		o.DeliveryDelay = DefaultDeliveryDelay
	}
	if o.NotaryRetries <= 0 {
		o.NotaryRetries = DefaultNotaryRetries
	}
	return o
}
