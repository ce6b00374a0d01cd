/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracing

import (
	"context"
	"testing"

	metrics2 "github.com/hyperledger-labs/license-ledger/platform/view/services/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestSpanMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	tp := NewTracerProvider(metrics2.NewProvider(reg))
	tr := tp.Tracer("calls", WithMetricsOpts(MetricsOpts{
		Subsystem:  "view",
		LabelNames: []LabelName{"view", "success"},
	}))

	_, s := tr.Start(context.Background(), "transfer", trace.WithAttributes(String("view", "transfer"), String("ignored", "x")))
	s.SetAttributes(Bool("success", true))
	s.End()

	_, s = tr.Start(context.Background(), "scrap", trace.WithAttributes(String("view", "scrap")))
	s.End()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]int{}
	for _, f := range families {
		names[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, 2, names["license_view_calls_operations"])
	assert.Equal(t, 2, names["license_view_calls_duration"])

	count, err := testutil.GatherAndCount(reg, "license_view_calls_operations")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLabelOrder(t *testing.T) {
	ls := newLabels([]string{"b", "a"})
	ls.Append(String("a", "1"), String("b", "2"), String("c", "3"))
	assert.Equal(t, []string{"2", "1"}, ls.ToLabelValues())
}
