/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flow

import (
	"time"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/license/vault"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/session"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// RedeliveryView hands a notarized transaction to one participant on a fresh session
type RedeliveryView struct {
	tx      *transaction.Transaction
	party   view.Identity
	timeout time.Duration
}

func NewRedeliveryView(tx *transaction.Transaction, party view.Identity, timeout time.Duration) *RedeliveryView {
	return &RedeliveryView{tx: tx, party: party, timeout: timeout}
}

func (r *RedeliveryView) Call(context view.Context) (interface{}, error) {
	metrics := GetMetrics(context)
	raw, err := r.tx.Bytes()
	if err != nil {
		return nil, err
	}
	s, err := context.GetSession(r, r.party)
	if err != nil {
		return nil, err
	}
	// a failed attempt must not leave a dead session in the cache
	defer s.Close()

	js := session.NewFromSession(context.Context(), s).WithTimeout(r.timeout)
	err = js.Send(&Final{Tx: raw})
	if err == nil {
		ack := &Ack{}
		if err = js.Receive(ack); err == nil && ack.TxID != r.tx.ID {
			err = errors.Errorf("[%s] acknowledged [%s] instead of [%s]", r.party, ack.TxID, r.tx.ID)
		}
	}
	if err != nil {
		metrics.Redelivered.With("failed").Add(1)
		return nil, errors.WithMessagef(err, "re-delivery of [%s] to [%s] failed", r.tx.ID, r.party)
	}
	metrics.Redelivered.With("delivered").Add(1)
	logger.Debugf("re-delivered [%s] to [%s]", r.tx.ID, r.party)
	return r.tx, nil
}

// RedeliveryResponder records a notarized transaction received out of a commit run.
// Receiving the same transaction twice is harmless.
type RedeliveryResponder struct {
	options *Options
}

func NewRedeliveryResponder(options *Options) *RedeliveryResponder {
	return &RedeliveryResponder{options: options}
}

func (r *RedeliveryResponder) Call(context view.Context) (interface{}, error) {
	svc, err := getServices(context)
	if err != nil {
		return nil, err
	}
	s := session.JSON(context).WithTimeout(r.options.SessionTimeout)
	final := &Final{}
	if err := s.Receive(final); err != nil {
		return nil, errors.WithMessage(err, "failed receiving re-delivered transaction")
	}
	tx, err := accept(svc, r.options.TrustedNotaries, final.Tx, "")
	if err != nil {
		logger.Warnf("[%s] refuses re-delivered transaction: %s", context.Me(), err)
		if err := s.SendError(err.Error()); err != nil {
			logger.Debugf("refusal not delivered: %s", err)
		}
		return nil, err
	}
	if err := s.Send(&Ack{TxID: tx.ID}); err != nil {
		return nil, errors.WithMessagef(err, "failed acknowledging [%s]", tx.ID)
	}
	return tx, nil
}

// ReconcileView re-delivers every notarized transaction some participant missed.
// It returns the deliveries still pending.
type ReconcileView struct {
	options *Options
}

func NewReconcileView(options *Options) *ReconcileView {
	return &ReconcileView{options: options}
}

func (r *ReconcileView) Call(context view.Context) (interface{}, error) {
	svc, err := getServices(context)
	if err != nil {
		return nil, err
	}
	pending, err := svc.vault.Pending()
	if err != nil {
		return nil, err
	}
	me := context.Me()
	var left []*vault.PendingDelivery
	for _, p := range pending {
		tx, err := p.Transaction()
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid pending delivery of [%s]", p.TxID)
		}
		if p.Party.Equal(me) {
			err = svc.vault.Record(tx)
		} else {
			_, err = context.RunView(NewRedeliveryView(tx, p.Party, r.options.SessionTimeout), view.WithSameContext())
		}
		if err != nil {
			logger.Infof("[%s] still pending for [%s]: %s", p.TxID, p.Party, err)
			left = append(left, p)
			continue
		}
		if err := svc.vault.RemovePending(p.TxID, p.Party); err != nil {
			return nil, err
		}
	}
	return left, nil
}
