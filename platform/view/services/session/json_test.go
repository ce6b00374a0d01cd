/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"context"
	"testing"
	"time"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback echoes sent payloads back on its receive channel
type loopback struct {
	ch chan *view.Message
}

func newLoopback() *loopback { return &loopback{ch: make(chan *view.Message, 10)} }

func (l *loopback) Info() view.SessionInfo { return view.SessionInfo{ID: "loop"} }

func (l *loopback) Send(payload []byte) error {
	l.ch <- &view.Message{Status: view.OK, Payload: payload}
	return nil
}

func (l *loopback) SendError(payload []byte) error {
	l.ch <- &view.Message{Status: view.ERROR, Payload: payload}
	return nil
}

func (l *loopback) Receive() <-chan *view.Message { return l.ch }

func (l *loopback) Close() { close(l.ch) }

type greeting struct {
	Text string
	N    int
}

func TestJSONRoundTrip(t *testing.T) {
	s := NewFromSession(context.Background(), newLoopback())
	require.NoError(t, s.Send(&greeting{Text: "hi", N: 3}))

	var g greeting
	require.NoError(t, s.Receive(&g))
	assert.Equal(t, greeting{Text: "hi", N: 3}, g)
}

func TestJSONRemoteError(t *testing.T) {
	s := NewFromSession(context.Background(), newLoopback())
	require.NoError(t, s.SendError("declined"))

	var g greeting
	err := s.Receive(&g)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "declined", remote.Payload)
}

func TestJSONTimeoutAndClose(t *testing.T) {
	lb := newLoopback()
	s := NewFromSession(context.Background(), lb).WithTimeout(10 * time.Millisecond)

	var g greeting
	assert.True(t, errors.HasCause(s.Receive(&g), ErrTimeout))

	lb.Close()
	assert.True(t, errors.HasCause(s.Receive(&g), ErrClosed))
}

func TestJSONContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewFromSession(ctx, newLoopback())

	var g greeting
	assert.True(t, errors.HasCause(s.ReceiveWithTimeout(&g, time.Minute), context.Canceled))
}

func TestJSONMalformed(t *testing.T) {
	lb := newLoopback()
	s := NewFromSession(context.Background(), lb)
	require.NoError(t, lb.Send([]byte("{not json")))

	var g greeting
	assert.Error(t, s.Receive(&g))
}
