/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"fmt"
)

// Message statuses
const (
	OK    = 200
	ERROR = 500
)

// Message is what a session delivers: a payload and where it comes from
type Message struct {
	SessionID    string
	ContextID    string
	Caller       string   // id of the view on the other side
	FromEndpoint string   // label of the sender
	From         Identity // identity of the sender
	Status       int32
	Payload      []byte
}

func (m *Message) String() string {
	return fmt.Sprintf("[session:%s,context:%s,caller:%s,from:%s,status:%d]",
		m.SessionID, m.ContextID, m.Caller, m.FromEndpoint, m.Status)
}

// SessionInfo describes the two ends of a session
type SessionInfo struct {
	ID string
	// Caller is the identity of the party that opened the session
	Caller       Identity
	CallerViewID string
	// Endpoint and Remote name the party on the other side
	Endpoint string
	Remote   Identity
	Closed   bool
}

func (i *SessionInfo) String() string {
	return fmt.Sprintf("session [%s] with [%s] opened by [%s] from [%s], closed [%v]", i.ID, i.Endpoint, i.Caller, i.CallerViewID, i.Closed)
}

// Session is a bidirectional channel between two views running at different parties
type Session interface {
	Info() SessionInfo

	Send(payload []byte) error

	// SendError sends a message with status ERROR
	SendError(payload []byte) error

	// Receive returns the channel the incoming messages are delivered to
	Receive() <-chan *Message

	// Close releases the session. Messages received afterwards are dropped.
	Close()
}
