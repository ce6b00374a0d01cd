/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flow

import (
	"reflect"

	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics/disabled"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

type Metrics struct {
	Runs        metrics.Counter
	Duration    metrics.Histogram
	Signed      metrics.Counter
	Redelivered metrics.Counter
}

func NewMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		Runs: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "flow",
			Name:       "runs",
			Help:       "The number of commit runs per command and outcome",
			LabelNames: []string{"command", "outcome"},
		}),
		Duration: p.NewHistogram(metrics.HistogramOpts{
			Subsystem:  "flow",
			Name:       "run_duration",
			Help:       "The duration of commit runs per command",
			LabelNames: []string{"command"},
		}),
		Signed: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "flow",
			Name:       "counter_signatures",
			Help:       "The number of proposals answered per command and decision",
			LabelNames: []string{"command", "decision"},
		}),
		Redelivered: p.NewCounter(metrics.CounterOpts{
			Subsystem:  "flow",
			Name:       "redeliveries",
			Help:       "The number of re-delivery attempts per outcome",
			LabelNames: []string{"outcome"},
		}),
	}
}

var (
	metricsType = reflect.TypeOf((*Metrics)(nil))
	noopMetrics = NewMetrics(disabled.New())
)

// GetMetrics returns the metrics registered in the service provider, or no-op ones
func GetMetrics(sp view.ServiceProvider) *Metrics {
	s, err := sp.GetService(metricsType)
	if err != nil {
		return noopMetrics
	}
	return s.(*Metrics)
}
