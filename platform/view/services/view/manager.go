/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"context"
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils"
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/comm"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/tracing"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	"go.opentelemetry.io/otel/trace"
)

var logger = logging.MustGetLogger("view-sdk.manager")

// Manager runs the views of a party: the ones it initiates and the responders triggered by remote parties
type Manager struct {
	serviceProvider view.ServiceProvider

	me       view.Identity
	endpoint *comm.Endpoint
	registry *Registry
	tracer   trace.Tracer
	metrics  *Metrics
	checker  LocalIdentityChecker

	contextsMu sync.RWMutex
	contexts   map[string]*childContext
}

// NewManager attaches a new party, known to the hub as label, and returns its view manager
func NewManager(
	serviceProvider view.ServiceProvider,
	hub *comm.Hub,
	label string,
	me view.Identity,
	checker LocalIdentityChecker,
	tracerProvider trace.TracerProvider,
	metricsProvider metrics.Provider,
) (*Manager, error) {
	cm := &Manager{
		serviceProvider: serviceProvider,
		me:              me,
		registry:        NewRegistry(),
		contexts:        map[string]*childContext{},
		tracer: tracerProvider.Tracer("calls", tracing.WithMetricsOpts(tracing.MetricsOpts{
			Subsystem:  "view",
			LabelNames: []string{SuccessLabel, ViewLabel, InitiatorViewLabel},
		})),
		metrics: newMetrics(metricsProvider),
		checker: checker,
	}
	endpoint, err := hub.Register(label, me, cm.handleSession)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed attaching [%s]", label)
	}
	cm.endpoint = endpoint
	return cm, nil
}

func (cm *Manager) Me() view.Identity {
	return cm.me
}

func (cm *Manager) RegisterResponder(responder view.View, initiatedBy interface{}) error {
	return cm.registry.RegisterResponder(responder, initiatedBy)
}

func (cm *Manager) GetResponder(initiatedBy interface{}) (view.View, error) {
	return cm.registry.GetResponder(initiatedBy)
}

// InitiateView runs the passed view in a freshly created context whose initiator is the view itself
func (cm *Manager) InitiateView(v view.View, ctx context.Context) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	contextID := utils.GenerateUUID()
	root := newRootContext(contextID, cm.serviceProvider, cm.me, &sessionFactory{endpoint: cm.endpoint}, cm.checker, cm.tracer, nil)
	c := &childContext{root: root, goContext: ctx, initiator: v}
	key := cm.putContext(contextID, c)
	defer cm.deleteContext(key)

	logger.Debugf("[%s] InitiateView [view:%s], [ContextID:%s]", cm.endpoint.Label(), logging.Identifier(v), contextID)
	res, err := runViewOn(c, v)
	if err != nil {
		logger.Debugf("[%s] InitiateView [view:%s], [ContextID:%s] failed [%s]", cm.endpoint.Label(), logging.Identifier(v), contextID, err)
		return nil, err
	}
	logger.Debugf("[%s] InitiateView [view:%s], [ContextID:%s] terminated", cm.endpoint.Label(), logging.Identifier(v), contextID)
	return res, nil
}

// Context returns the view.Context of a running view.
// Contexts of responders are keyed by context and session identifier, separated by a slash.
func (cm *Manager) Context(contextID string) (view.Context, error) {
	cm.contextsMu.RLock()
	defer cm.contextsMu.RUnlock()
	viewCtx, ok := cm.contexts[contextID]
	if !ok {
		return nil, errors.Errorf("context %s not found", contextID)
	}
	return viewCtx, nil
}

// handleSession runs the responder bound to the view that opened s.
// If the responder fails, its error is sent back on the session.
func (cm *Manager) handleSession(s *comm.NetworkStreamSession) {
	info := s.Info()
	responder, err := cm.registry.GetResponder(info.CallerViewID)
	if err != nil {
		logger.Warnf("[%s] no responder for [%s] from [%s]", cm.endpoint.Label(), info.CallerViewID, info.Endpoint)
		if err := s.SendError([]byte(err.Error())); err != nil {
			logger.Debugf("failed notifying missing responder: %s", err)
		}
		s.Close()
		return
	}

	root := newRootContext(s.ContextID(), cm.serviceProvider, cm.me, &sessionFactory{endpoint: cm.endpoint}, cm.checker, cm.tracer, s)
	c := &childContext{root: root, goContext: context.Background(), session: s}
	key := cm.putContext(s.ContextID()+"/"+info.ID, c)
	defer cm.deleteContext(key)

	logger.Debugf("[%s] Respond [from:%s], [sessionID:%s], [contextID:%s], [view:%s]", cm.endpoint.Label(), info.Endpoint, info.ID, s.ContextID(), logging.Identifier(responder))
	if _, err := runViewOn(c, responder); err != nil {
		logger.Debugf("[%s] Respond Failure [from:%s], [sessionID:%s], [contextID:%s] [%s]", cm.endpoint.Label(), info.Endpoint, info.ID, s.ContextID(), err)
		// try to send error back to caller
		if err := s.SendError([]byte(err.Error())); err != nil {
			logger.Debugf("failed sending error back: %s", err)
		}
	}
}

func (cm *Manager) putContext(key string, c *childContext) string {
	cm.contextsMu.Lock()
	defer cm.contextsMu.Unlock()
	cm.contexts[key] = c
	cm.metrics.Contexts.Set(float64(len(cm.contexts)))
	return key
}

// deleteContext removes a context from the manager and disposes it
func (cm *Manager) deleteContext(key string) {
	cm.contextsMu.Lock()
	defer cm.contextsMu.Unlock()

	logger.Debugf("[%s] Delete context [%s]", cm.endpoint.Label(), key)
	if viewCtx, ok := cm.contexts[key]; ok {
		viewCtx.Dispose()
		delete(cm.contexts, key)
		cm.metrics.Contexts.Set(float64(len(cm.contexts)))
	}
}

type sessionFactory struct {
	endpoint *comm.Endpoint
}

func (f *sessionFactory) NewSession(contextID, callerViewID string, party view.Identity) (view.Session, error) {
	return f.endpoint.NewSession(contextID, callerViewID, party)
}
