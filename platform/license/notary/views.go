/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package notary

import (
	"context"
	"time"

	"github.com/hyperledger-labs/license-ledger/pkg/utils"
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/session"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// Request carries a fully signed transaction to the notary
type Request struct {
	Tx []byte `json:"tx"`
}

// Response carries either the notary signature, a conflict or a rejection reason
type Response struct {
	Signature []byte         `json:"signature,omitempty"`
	Conflict  *ConflictError `json:"conflict,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// RequestView submits a transaction to the notary named in it and waits for the answer
type RequestView struct {
	tx      *transaction.Transaction
	timeout time.Duration
}

func NewRequestView(tx *transaction.Transaction, timeout time.Duration) *RequestView {
	return &RequestView{tx: tx, timeout: timeout}
}

func (r *RequestView) Call(context view.Context) (interface{}, error) {
	raw, err := r.tx.Bytes()
	if err != nil {
		return nil, err
	}
	s, err := session.NewJSON(context, r, r.tx.Notary)
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot reach notary for [%s]", r.tx.ID)
	}
	defer s.Session().Close()
	if err := s.Send(&Request{Tx: raw}); err != nil {
		return nil, errors.WithMessagef(err, "failed sending [%s] to notary", r.tx.ID)
	}
	resp := &Response{}
	if err := s.WithTimeout(r.timeout).Receive(resp); err != nil {
		return nil, errors.WithMessagef(err, "no answer from notary for [%s]", r.tx.ID)
	}
	switch {
	case resp.Conflict != nil:
		return nil, resp.Conflict
	case len(resp.Error) != 0:
		return nil, errors.Wrapf(ErrRejected, "[%s]: %s", r.tx.ID, resp.Error)
	case len(resp.Signature) == 0:
		return nil, errors.Errorf("notary returned no signature for [%s]", r.tx.ID)
	}
	return resp.Signature, nil
}

type viewGateway struct {
	context view.Context
	timeout time.Duration
}

// NewGateway returns a Gateway that reaches the notary from the passed view context
func NewGateway(context view.Context, timeout time.Duration) Gateway {
	return &viewGateway{context: context, timeout: timeout}
}

func (g *viewGateway) Notarize(ctx context.Context, tx *transaction.Transaction) ([]byte, error) {
	res, err := g.context.RunView(NewRequestView(tx, g.timeout), view.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

type retryGateway struct {
	Gateway
	retries int
	delay   time.Duration
}

// WithRetries returns a Gateway that submits again a transaction the notary did not answer for.
// A conflict or a rejection ends the attempts: resubmitting cannot change them.
func WithRetries(g Gateway, retries int, delay time.Duration) Gateway {
	return &retryGateway{Gateway: g, retries: retries, delay: delay}
}

func (g *retryGateway) Notarize(ctx context.Context, tx *transaction.Transaction) ([]byte, error) {
	var (
		sigma []byte
		final error
	)
	err := utils.NewRetryRunner(g.retries, g.delay, true).RunWithContext(ctx, func() error {
		var err error
		sigma, err = g.Gateway.Notarize(ctx, tx)
		if _, ok := IsConflict(err); ok || errors.HasCause(err, ErrRejected) {
			final = err
			return nil
		}
		if err != nil {
			logger.Debugf("notarization of [%s] failed, submit again: %s", tx.ID, err)
		}
		return err
	})
	if final != nil {
		return nil, final
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "notary did not answer for [%s]", tx.ID)
	}
	return sigma, nil
}

// Responder serves the requests of RequestView with the Service registered at the notary
type Responder struct{}

func (r *Responder) Call(context view.Context) (interface{}, error) {
	service, err := GetService(context)
	if err != nil {
		return nil, err
	}
	s := session.JSON(context)
	req := &Request{}
	if err := s.Receive(req); err != nil {
		return nil, errors.WithMessage(err, "failed receiving notarization request")
	}

	resp := &Response{}
	tx, err := transaction.FromBytes(req.Tx)
	if err == nil {
		resp.Signature, err = service.Notarize(context.Context(), tx)
	}
	if err != nil {
		if c, ok := IsConflict(err); ok {
			resp.Conflict = c
		} else {
			resp.Error = err.Error()
		}
	}
	if err := s.Send(resp); err != nil {
		return nil, errors.WithMessage(err, "failed answering notarization request")
	}
	return resp, nil
}
