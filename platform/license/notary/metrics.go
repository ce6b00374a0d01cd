/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package notary

import "github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"

type Metrics struct {
	Requests metrics.Counter
}

func newMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Requests: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "notary",
			Name:       "requests",
			Help:       "The number of notarization requests per command and outcome",
			LabelNames: []string{"command", "outcome"},
		}),
	}
}
