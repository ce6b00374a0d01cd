/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var (
	// ErrTimeout is returned when no message arrives in time
	ErrTimeout = errors.New("time out reached")
	// ErrClosed is returned when the session is closed while waiting
	ErrClosed = errors.New("session closed while receiving")
)

// RemoteError carries the payload of a message sent with error status
type RemoteError struct {
	Payload string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("received error from remote [%s]", e.Payload)
}

func readMessage(ctx context.Context, session view.Session, d time.Duration) ([]byte, error) {
	timeout := time.NewTimer(d)
	defer timeout.Stop()

	select {
	case msg, ok := <-session.Receive():
		if !ok || msg == nil {
			return nil, ErrClosed
		}
		if msg.Status == view.ERROR {
			return nil, &RemoteError{Payload: string(msg.Payload)}
		}
		return msg.Payload, nil
	case <-timeout.C:
		return nil, errors.WithMessagef(ErrTimeout, "after [%s]", d)
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "context done")
	}
}
