/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import "github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"

type Metrics struct {
	Sessions  metrics.Gauge
	Delivered metrics.Counter
	Dropped   metrics.Counter
}

func newMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Sessions: p.NewGauge(metrics.GaugeOpts{
			Subsystem:  "comm",
			Name:       "sessions",
			Help:       "The number of open sessions per endpoint",
			LabelNames: []string{"endpoint"},
		}),
		Delivered: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "comm",
			Name:       "delivered_messages",
			Help:       "The number of messages delivered per endpoint",
			LabelNames: []string{"endpoint"},
		}),
		Dropped: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "comm",
			Name:       "dropped_messages",
			Help:       "The number of messages that could not reach their endpoint",
			LabelNames: []string{"endpoint"},
		}),
	}
}
