/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/hash"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("view-sdk.session.json")

// DefaultTimeout bounds Receive when no other timeout is set
const DefaultTimeout = 10 * time.Second

type Session interface {
	view.Session
}

type jsonSession struct {
	s       Session
	context context.Context
	timeout time.Duration
}

// NewJSON opens a session with party on behalf of caller, exchanging json encoded messages
func NewJSON(context view.Context, caller view.View, party view.Identity) (*jsonSession, error) {
	s, err := context.GetSession(caller, party)
	if err != nil {
		return nil, err
	}
	return &jsonSession{s: s, context: context.Context(), timeout: DefaultTimeout}, nil
}

// JSON wraps the session the current view was started with
func JSON(context view.Context) *jsonSession {
	return &jsonSession{s: context.Session(), context: context.Context(), timeout: DefaultTimeout}
}

// NewFromSession wraps an existing session
func NewFromSession(ctx context.Context, s Session) *jsonSession {
	return &jsonSession{s: s, context: ctx, timeout: DefaultTimeout}
}

// WithTimeout sets the timeout used by Receive
func (j *jsonSession) WithTimeout(d time.Duration) *jsonSession {
	if d > 0 {
		j.timeout = d
	}
	return j
}

func (j *jsonSession) Receive(state interface{}) error {
	return j.ReceiveWithTimeout(state, j.timeout)
}

func (j *jsonSession) ReceiveWithTimeout(state interface{}, d time.Duration) error {
	raw, err := j.ReceiveRawWithTimeout(d)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return errors.Wrapf(err, "failed unmarshalling message [%s]", hash.Hashable(raw))
	}
	return nil
}

func (j *jsonSession) ReceiveRawWithTimeout(d time.Duration) ([]byte, error) {
	raw, err := readMessage(j.context, j.s, d)
	if err != nil {
		return nil, err
	}
	logger.Debugf("json session, received message [%s]", hash.Hashable(raw))
	return raw, nil
}

func (j *jsonSession) Send(state interface{}) error {
	v, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed marshalling message")
	}
	logger.Debugf("json session, send message [%s]", hash.Hashable(v))
	return j.s.Send(v)
}

func (j *jsonSession) SendError(err string) error {
	logger.Debugf("json session, send error [%s]", err)
	return j.s.SendError([]byte(err))
}

func (j *jsonSession) Session() Session {
	return j.s
}
