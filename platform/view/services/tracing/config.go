/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation attributes carrying the metric options of a tracer
const (
	namespaceKey  attribute.Key = "metrics.namespace"
	subsystemKey  attribute.Key = "metrics.subsystem"
	labelNamesKey attribute.Key = "metrics.label_names"
)

type LabelName = string

// MetricsOpts names the histogram fed by the spans of a tracer.
// LabelNames are the span attributes copied into the histogram labels.
type MetricsOpts struct {
	Namespace  string
	Subsystem  string
	LabelNames []LabelName
}

func WithMetricsOpts(o MetricsOpts) trace.TracerOption {
	return trace.WithInstrumentationAttributes(
		namespaceKey.String(o.Namespace),
		subsystemKey.String(o.Subsystem),
		labelNamesKey.StringSlice(o.LabelNames),
	)
}

func extractMetricsOpts(attrs attribute.Set) MetricsOpts {
	var o MetricsOpts
	if v, ok := attrs.Value(namespaceKey); ok {
		o.Namespace = v.AsString()
	}
	if v, ok := attrs.Value(subsystemKey); ok {
		o.Subsystem = v.AsString()
	}
	if v, ok := attrs.Value(labelNamesKey); ok {
		o.LabelNames = v.AsStringSlice()
	}
	return o
}
