/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prometheus

import (
	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"
	prom "github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "license"

// Provider registers every metric it creates with its registerer.
// Each party owns a registry so that several parties can live in one process.
type Provider struct {
	Registerer      prom.Registerer
	SkipRegisterErr bool
}

func NewProvider(reg prom.Registerer) *Provider {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	return &Provider{Registerer: reg}
}

func (p *Provider) NewCounter(o metrics.CounterOpts) metrics.Counter {
	cv := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace(o.Namespace),
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
	}, o.LabelNames)
	p.register(cv)
	return &Counter{vec: cv}
}

func (p *Provider) NewGauge(o metrics.GaugeOpts) metrics.Gauge {
	gv := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace(o.Namespace),
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
	}, o.LabelNames)
	p.register(gv)
	return &Gauge{vec: gv}
}

func (p *Provider) NewHistogram(o metrics.HistogramOpts) metrics.Histogram {
	hv := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace(o.Namespace),
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
		Buckets:   o.Buckets,
	}, o.LabelNames)
	p.register(hv)
	return &Histogram{vec: hv}
}

func namespace(ns string) string {
	if len(ns) == 0 {
		return defaultNamespace
	}
	return ns
}

func (p *Provider) register(c prom.Collector) {
	if err := p.Registerer.Register(c); err != nil && !p.SkipRegisterErr {
		panic(err)
	}
}

// Counter accumulates label values until Add is called
type Counter struct {
	vec         *prom.CounterVec
	labelValues []string
}

func (c *Counter) With(labelValues ...string) metrics.Counter {
	return &Counter{vec: c.vec, labelValues: append(append([]string{}, c.labelValues...), labelValues...)}
}

func (c *Counter) Add(delta float64) {
	c.vec.WithLabelValues(c.labelValues...).Add(delta)
}

type Gauge struct {
	vec         *prom.GaugeVec
	labelValues []string
}

func (g *Gauge) With(labelValues ...string) metrics.Gauge {
	return &Gauge{vec: g.vec, labelValues: append(append([]string{}, g.labelValues...), labelValues...)}
}

func (g *Gauge) Add(delta float64) {
	g.vec.WithLabelValues(g.labelValues...).Add(delta)
}

func (g *Gauge) Set(value float64) {
	g.vec.WithLabelValues(g.labelValues...).Set(value)
}

type Histogram struct {
	vec         *prom.HistogramVec
	labelValues []string
}

func (h *Histogram) With(labelValues ...string) metrics.Histogram {
	return &Histogram{vec: h.vec, labelValues: append(append([]string{}, h.labelValues...), labelValues...)}
}

func (h *Histogram) Observe(value float64) {
	h.vec.WithLabelValues(h.labelValues...).Observe(value)
}
