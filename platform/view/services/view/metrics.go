/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import "github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"

type Metrics struct {
	Contexts metrics.Gauge
}

func newMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Contexts: p.NewGauge(metrics.GaugeOpts{
			Subsystem: "view",
			Name:      "contexts",
			Help:      "The number of open contexts",
		}),
	}
}
