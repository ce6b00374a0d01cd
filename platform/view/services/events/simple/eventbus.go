/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package simple

import (
	"sync"

	"github.com/hyperledger-labs/license-ledger/platform/view/services/events"
)

type eventHandler struct {
	receiver events.Listener
}

type eventBus struct {
	handlers map[string][]*eventHandler
	lock     sync.RWMutex
}

func NewEventBus() *eventBus {
	return &eventBus{
		handlers: make(map[string][]*eventHandler),
	}
}

func (e *eventBus) Publish(event events.Event) {
	if event == nil {
		return
	}

	e.lock.RLock()
	subs := append([]*eventHandler(nil), e.handlers[event.Topic()]...)
	e.lock.RUnlock()

	// receivers may subscribe or unsubscribe while being notified
	for _, sub := range subs {
		sub.receiver.OnReceive(event)
	}
}

func (e *eventBus) Subscribe(topic string, receiver events.Listener) {
	if receiver == nil {
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	e.handlers[topic] = append(e.handlers[topic], &eventHandler{receiver: receiver})
}

func (e *eventBus) Unsubscribe(topic string, receiver events.Listener) {
	if receiver == nil {
		return
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	handlers, ok := e.handlers[topic]
	if !ok {
		return
	}

	idx := findIndex(handlers, receiver)
	if idx == -1 {
		return
	}

	// remove receiver at position idx
	last := len(handlers) - 1
	handlers[idx] = handlers[last]
	handlers[last] = nil
	handlers = handlers[0:last]

	if len(handlers) > 0 {
		e.handlers[topic] = handlers
	} else {
		delete(e.handlers, topic)
	}
}

// findIndex returns the position of receiver in handlers.
// Returns -1 if not found
func findIndex(handlers []*eventHandler, receiver events.Listener) int {
	for i, h := range handlers {
		if h.receiver == receiver {
			return i
		}
	}
	return -1
}
