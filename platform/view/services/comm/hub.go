/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"context"
	"reflect"
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils"
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("view-sdk.comm")

// ErrUnreachable is returned when the destination endpoint is not registered or disconnected
var ErrUnreachable = errors.New("endpoint unreachable")

// NewSessionHandler is invoked, in its own goroutine, when a remote party opens a session
type NewSessionHandler func(s *NetworkStreamSession)

// Hub connects the endpoints of the parties living in the same process.
// Parties are addressed by identity. Labels are only used for lookup and logging.
type Hub struct {
	mutex       sync.RWMutex
	endpoints   map[string]*Endpoint
	labels      map[string]view.Identity
	unreachable map[string]struct{}
	metrics     *Metrics
}

func NewHub(mp metrics.Provider) *Hub {
	return &Hub{
		endpoints:   map[string]*Endpoint{},
		labels:      map[string]view.Identity{},
		unreachable: map[string]struct{}{},
		metrics:     newMetrics(mp),
	}
}

// Register binds label and identity to a new endpoint whose incoming sessions are passed to handler
func (h *Hub) Register(label string, id view.Identity, handler NewSessionHandler) (*Endpoint, error) {
	if id.IsNone() {
		return nil, errors.New("cannot register an empty identity")
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.endpoints[id.UniqueID()]; ok {
		return nil, errors.Errorf("identity of [%s] already registered", label)
	}
	if _, ok := h.labels[label]; ok {
		return nil, errors.Errorf("label [%s] already registered", label)
	}
	e := &Endpoint{
		hub:            h,
		label:          label,
		id:             id,
		handler:        handler,
		sessions:       map[string]*NetworkStreamSession{},
		closedSessions: map[string]struct{}{},
	}
	h.endpoints[id.UniqueID()] = e
	h.labels[label] = id
	logger.Debugf("registered endpoint [%s:%s]", label, id)
	return e, nil
}

// Identity returns the identity registered under label
func (h *Hub) Identity(label string) (view.Identity, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	id, ok := h.labels[label]
	return id, ok
}

// Label returns the label of the passed identity, or its string form if unknown
func (h *Hub) Label(id view.Identity) string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if e, ok := h.endpoints[id.UniqueID()]; ok {
		return e.label
	}
	return id.String()
}

// Disconnect makes every message from or to id fail with ErrUnreachable
func (h *Hub) Disconnect(id view.Identity) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.unreachable[id.UniqueID()] = struct{}{}
}

func (h *Hub) Reconnect(id view.Identity) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.unreachable, id.UniqueID())
}

func (h *Hub) sendTo(ctx context.Context, from *Endpoint, to view.Identity, packet *Packet) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "cannot send to [%s]", h.Label(to))
	}

	h.mutex.RLock()
	dest, ok := h.endpoints[to.UniqueID()]
	_, fromDown := h.unreachable[from.id.UniqueID()]
	_, toDown := h.unreachable[to.UniqueID()]
	h.mutex.RUnlock()

	if !ok || fromDown || toDown {
		h.metrics.Dropped.With(from.label).Add(1)
		return errors.Wrapf(ErrUnreachable, "cannot send from [%s] to [%s]", from.label, h.Label(to))
	}

	msg := &view.Message{
		SessionID:    packet.SessionID,
		ContextID:    packet.ContextID,
		Caller:       packet.Caller,
		FromEndpoint: from.label,
		From:         from.id,
		Status:       packet.Status,
		Payload:      packet.Payload,
	}
	if err := dest.deliver(from, packet.FromInitiator, msg); err != nil {
		h.metrics.Dropped.With(from.label).Add(1)
		return errors.WithMessagef(err, "cannot deliver to [%s]", dest.label)
	}
	h.metrics.Delivered.With(dest.label).Add(1)
	return nil
}

// Endpoint is the attachment point of a party to the hub
type Endpoint struct {
	hub     *Hub
	label   string
	id      view.Identity
	handler NewSessionHandler

	mutex          sync.Mutex
	sessions       map[string]*NetworkStreamSession
	closedSessions map[string]struct{}
}

func (e *Endpoint) Label() string { return e.label }

func (e *Endpoint) Identity() view.Identity { return e.id }

// NewSession opens a session towards party on behalf of the view identified by callerViewID
func (e *Endpoint) NewSession(contextID, callerViewID string, party view.Identity) (*NetworkStreamSession, error) {
	if party.IsNone() {
		return nil, errors.New("no party specified")
	}
	if party.Equal(e.id) {
		return nil, errors.Errorf("[%s] cannot open a session with itself", e.label)
	}
	s := newSession(e.hub, e, party, e.hub.Label(party), contextID, utils.GenerateUUID(), e.id, callerViewID)
	s.initiator = true

	e.mutex.Lock()
	e.sessions[s.sessionID] = s
	e.mutex.Unlock()
	e.hub.metrics.Sessions.With(e.label).Add(1)

	logger.Debugf("[%s] opened session [%s] with [%s] for [%s]", e.label, s.sessionID, s.remoteLabel, callerViewID)
	return s, nil
}

func (e *Endpoint) deliver(from *Endpoint, fromInitiator bool, msg *view.Message) error {
	e.mutex.Lock()
	s, ok := e.sessions[msg.SessionID]
	created := false
	if !ok {
		if _, closed := e.closedSessions[msg.SessionID]; closed || !fromInitiator {
			e.mutex.Unlock()
			return errors.Wrapf(ErrSessionClosed, "session [%s] at [%s]", msg.SessionID, e.label)
		}
		if e.handler == nil {
			e.mutex.Unlock()
			return errors.Errorf("[%s] does not accept sessions", e.label)
		}
		s = newSession(e.hub, e, from.id, from.label, msg.ContextID, msg.SessionID, from.id, msg.Caller)
		e.sessions[msg.SessionID] = s
		created = true
	}
	e.mutex.Unlock()

	if created {
		e.hub.metrics.Sessions.With(e.label).Add(1)
	}
	if !s.enqueue(msg) {
		return errors.Wrapf(ErrSessionClosed, "session [%s] at [%s]", msg.SessionID, e.label)
	}
	if created {
		logger.Debugf("[%s] accepted session [%s] from [%s] for [%s]", e.label, msg.SessionID, from.label, msg.Caller)
		go e.handler(s)
	}
	return nil
}

func (e *Endpoint) remove(s *NetworkStreamSession) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if _, ok := e.sessions[s.sessionID]; !ok {
		return
	}
	delete(e.sessions, s.sessionID)
	e.closedSessions[s.sessionID] = struct{}{}
	e.hub.metrics.Sessions.With(e.label).Add(-1)
}

var hubType = reflect.TypeOf((*Hub)(nil))

// GetHub returns the hub registered in the passed service provider
func GetHub(sp view.ServiceProvider) (*Hub, error) {
	s, err := sp.GetService(hubType)
	if err != nil {
		return nil, errors.Wrap(err, "failed getting hub")
	}
	return s.(*Hub), nil
}
