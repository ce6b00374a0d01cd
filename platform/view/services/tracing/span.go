/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracing

import (
	"sync"
	"time"

	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type (
	SpanStartOption = trace.SpanStartOption
	SpanEndOption   = trace.SpanEndOption
	EventOption     = trace.EventOption
	KeyValue        = attribute.KeyValue
)

var (
	WithAttributes = trace.WithAttributes
	Int            = attribute.Int
	Bool           = attribute.Bool
	String         = attribute.String
)

// labels keeps the values of the metric labels, in label name order
type labels struct {
	names  []string
	values map[string]string
}

func newLabels(names []string) *labels {
	ls := &labels{names: names, values: make(map[string]string, len(names))}
	for _, k := range names {
		ls.values[k] = ""
	}
	return ls
}

func (l *labels) Append(kvs ...attribute.KeyValue) {
	for _, kv := range kvs {
		if !kv.Valid() {
			continue
		}
		if _, ok := l.values[string(kv.Key)]; ok {
			l.values[string(kv.Key)] = kv.Value.Emit()
		}
	}
}

func (l *labels) ToLabelValues() []string {
	r := make([]string, len(l.names))
	for i, k := range l.names {
		r[i] = l.values[k]
	}
	return r
}

type span struct {
	trace.Span

	mutex      sync.Mutex
	labels     *labels
	start      time.Time
	operations metrics.Counter
	duration   metrics.Histogram
}

func (s *span) End(options ...SpanEndOption) {
	s.Span.End(options...)

	c := trace.NewSpanEndConfig(options...)
	s.mutex.Lock()
	s.labels.Append(c.Attributes()...)
	ls := s.labels.ToLabelValues()
	s.mutex.Unlock()

	s.operations.With(ls...).Add(1)
	s.duration.With(ls...).Observe(time.Since(s.start).Seconds())
}

func (s *span) AddEvent(name string, options ...EventOption) {
	s.Span.AddEvent(name, options...)

	c := trace.NewEventConfig(options...)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.labels.Append(c.Attributes()...)
}

func (s *span) SetAttributes(kv ...KeyValue) {
	s.Span.SetAttributes(kv...)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.labels.Append(kv...)
}

func newSpan(backingSpan trace.Span, labelNames []LabelName, operations metrics.Counter, delay metrics.Histogram, opts ...SpanStartOption) *span {
	c := trace.NewSpanStartConfig(opts...)
	s := &span{
		Span:       backingSpan,
		labels:     newLabels(labelNames),
		start:      time.Now(),
		operations: operations,
		duration:   delay,
	}
	s.labels.Append(c.Attributes()...)
	return s
}
