/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"context"
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// ErrSessionClosed is returned when a message is sent when the session is closed.
var ErrSessionClosed = errors.New("session closed")

type sender interface {
	sendTo(ctx context.Context, from *Endpoint, to view.Identity, packet *Packet) error
}

// Packet is the unit exchanged between endpoints
type Packet struct {
	ContextID string
	SessionID string
	Caller    string
	Status    int32
	Payload   []byte
	// FromInitiator is set on packets sent by the half that opened the session
	FromInitiator bool
}

// NetworkStreamSession implements view.Session between two endpoints of a Hub
type NetworkStreamSession struct {
	node         sender
	local        *Endpoint
	remote       view.Identity
	remoteLabel  string
	contextID    string
	sessionID    string
	caller       view.Identity
	callerViewID string
	initiator    bool
	incoming     chan *view.Message
	mutex        sync.RWMutex

	startOnce sync.Once
	middleCh  chan *view.Message
	closing   chan struct{}
	closed    chan struct{}
}

func newSession(node sender, local *Endpoint, remote view.Identity, remoteLabel, contextID, sessionID string, caller view.Identity, callerViewID string) *NetworkStreamSession {
	return &NetworkStreamSession{
		node:         node,
		local:        local,
		remote:       remote,
		remoteLabel:  remoteLabel,
		contextID:    contextID,
		sessionID:    sessionID,
		caller:       caller,
		callerViewID: callerViewID,
		incoming:     make(chan *view.Message),
		middleCh:     make(chan *view.Message, 16),
		closing:      make(chan struct{}),
		closed:       make(chan struct{}),
	}
}

func (n *NetworkStreamSession) tryStart() {
	n.startOnce.Do(func() {
		go func() {
			exit := func() {
				close(n.closed)
				close(n.incoming)
			}

			for {
				select {
				case <-n.closing:
					exit()
					return
				case v := <-n.middleCh:
					select {
					case <-n.closing:
						exit()
						return
					case n.incoming <- v:
					}
				}
			}
		}()
	})
}

// ContextID returns the identifier of the view context the session was opened from
func (n *NetworkStreamSession) ContextID() string {
	return n.contextID
}

// Info returns a view.SessionInfo.
func (n *NetworkStreamSession) Info() view.SessionInfo {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return view.SessionInfo{
		ID:           n.sessionID,
		Caller:       n.caller,
		CallerViewID: n.callerViewID,
		Endpoint:     n.remoteLabel,
		Remote:       n.remote,
		Closed:       n.isClosed(),
	}
}

// Send sends the payload to the endpoint.
func (n *NetworkStreamSession) Send(payload []byte) error {
	return n.SendWithContext(context.TODO(), payload)
}

// SendWithContext sends the payload to the endpoint with the passed context.Context.
func (n *NetworkStreamSession) SendWithContext(ctx context.Context, payload []byte) error {
	return n.sendWithStatus(ctx, payload, view.OK)
}

// SendError sends an error to the endpoint with the passed payload.
func (n *NetworkStreamSession) SendError(payload []byte) error {
	return n.SendErrorWithContext(context.TODO(), payload)
}

// SendErrorWithContext sends an error to the endpoint with the passed context.Context and payload.
func (n *NetworkStreamSession) SendErrorWithContext(ctx context.Context, payload []byte) error {
	return n.sendWithStatus(ctx, payload, view.ERROR)
}

// Receive returns a channel of messages received from the endpoint
func (n *NetworkStreamSession) Receive() <-chan *view.Message {
	n.tryStart()
	return n.incoming
}

// enqueue enqueues a message into the session's incoming channel.
// If the session is closed, the message will be dropped and false returned, otherwise true is returned.
func (n *NetworkStreamSession) enqueue(msg *view.Message) bool {
	if msg == nil {
		return false
	}

	n.tryStart()

	select {
	case <-n.closed:
		return false
	default:
	}

	select {
	case <-n.closed:
		return false
	case n.middleCh <- msg:
		return true
	}
}

// Close releases all the resources allocated by this session
func (n *NetworkStreamSession) Close() {
	n.tryStart()
	select {
	case n.closing <- struct{}{}:
		<-n.closed
		n.local.remove(n)
		logger.Debugf("closing session [%s] done", n.sessionID)
	case <-n.closed:
	}
}

func (n *NetworkStreamSession) isClosed() bool {
	select {
	case <-n.closed:
		return true
	default:
	}

	return false
}

func (n *NetworkStreamSession) sendWithStatus(ctx context.Context, payload []byte, status int32) error {
	if n.isClosed() {
		return ErrSessionClosed
	}

	n.mutex.RLock()
	packet := &Packet{
		ContextID: n.contextID,
		SessionID: n.sessionID,
		Caller:    n.callerViewID,
		Status:    status,
		Payload:   payload,

		FromInitiator: n.initiator,
	}
	n.mutex.RUnlock()

	err := n.node.sendTo(ctx, n.local, n.remote, packet)
	logger.Debugf("sent message [len:%d] to [%s] from [%s] [status:%v] with err [%v]",
		len(payload),
		n.remoteLabel,
		n.local.label,
		status,
		err,
	)
	return err
}
