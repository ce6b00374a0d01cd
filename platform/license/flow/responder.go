/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flow

import (
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/license/contract"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/session"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// Policy decides whether a counter-signer endorses a transaction that passed verification
type Policy interface {
	ShouldSign(tx *transaction.Transaction) bool
}

// PolicyFunc adapts a function to Policy
type PolicyFunc func(tx *transaction.Transaction) bool

func (f PolicyFunc) ShouldSign(tx *transaction.Transaction) bool {
	return f(tx)
}

// AcceptAll signs every valid transaction
var AcceptAll Policy = PolicyFunc(func(*transaction.Transaction) bool { return true })

// Responder is the counter-signer half of CommitView.
// It verifies the proposal on its own, signs it if the policy agrees,
// and then waits for the notarized transaction. It never assumes finality before receiving it.
type Responder struct {
	policy  Policy
	options *Options
}

func NewResponder(policy Policy, options *Options) *Responder {
	if policy == nil {
		policy = AcceptAll
	}
	return &Responder{policy: policy, options: options}
}

func (r *Responder) Call(context view.Context) (interface{}, error) {
	svc, err := getServices(context)
	if err != nil {
		return nil, err
	}
	s := session.JSON(context).WithTimeout(r.options.SessionTimeout)
	proposal := &Proposal{}
	if err := s.Receive(proposal); err != nil {
		return nil, errors.WithMessage(err, "failed receiving proposal")
	}

	me := context.Me()
	tx, err := transaction.FromBytes(proposal.Tx)
	if err == nil {
		err = r.check(context, svc, tx)
	}
	if err != nil {
		kind := contract.Kind("")
		if tx != nil {
			kind = tx.Kind()
		}
		svc.metrics.Signed.With(string(kind), "declined").Add(1)
		logger.Infof("[%s] declines proposal: %s", me, err)
		if err := s.Send(&SignatureResponse{Declined: true, Reason: err.Error()}); err != nil {
			logger.Debugf("decline not delivered: %s", err)
		}
		return nil, &DeclinedError{Party: me, Reason: err.Error()}
	}

	if err := tx.Sign(me, svc.sigs); err != nil {
		return nil, err
	}
	sigma := tx.Signatures[len(tx.Signatures)-1].Value
	if err := s.Send(&SignatureResponse{Signature: sigma}); err != nil {
		return nil, errors.WithMessagef(err, "failed sending signature on [%s]", tx.ID)
	}
	svc.metrics.Signed.With(string(tx.Kind()), "signed").Add(1)
	logger.Debugf("[%s] signed [%s], waiting for finality", me, tx.ID)

	final := &Final{}
	if err := s.ReceiveWithTimeout(final, r.options.FinalityTimeout); err != nil {
		return nil, errors.WithMessagef(err, "finality of [%s] not received", tx.ID)
	}
	if final.Aborted {
		return nil, errors.Errorf("run of [%s] aborted by the proposer: %s", tx.ID, final.Reason)
	}
	notarized, err := accept(svc, r.options.TrustedNotaries, final.Tx, tx.ID)
	if err != nil {
		return nil, err
	}
	if err := s.Send(&Ack{TxID: notarized.ID}); err != nil {
		logger.Warnf("ack of [%s] not delivered: %s", notarized.ID, err)
	}
	return notarized, nil
}

// check runs the verification a counter-signer owes to itself before signing
func (r *Responder) check(context view.Context, svc *services, tx *transaction.Transaction) error {
	if !r.options.TrustedNotaries.Contain(tx.Notary) {
		return errors.Errorf("notary [%s] of [%s] is not trusted", tx.Notary, tx.ID)
	}
	if err := contract.Verify(tx); err != nil {
		return err
	}
	required, err := tx.RequiredSigners()
	if err != nil {
		return err
	}
	if !required.Contain(context.Me()) {
		return errors.Errorf("[%s] is not a signer of [%s]", context.Me(), tx.ID)
	}
	if tx.HasSigned(context.Me()) {
		return errors.Errorf("[%s] already signed [%s]", context.Me(), tx.ID)
	}
	proposer := context.Session().Info().Caller
	if !tx.HasSigned(proposer) {
		return errors.Errorf("proposer [%s] did not sign [%s]", proposer, tx.ID)
	}
	if err := tx.VerifySignatures(svc.sigs); err != nil {
		return err
	}
	if !r.policy.ShouldSign(tx) {
		return errors.Errorf("transaction [%s] rejected by policy", tx.ID)
	}
	return nil
}

// accept verifies a notarized transaction and records it in the vault.
// Only transactions notarized by one of the trusted notaries are recorded.
func accept(svc *services, trusted view.Identities, raw []byte, expectedID string) (*transaction.Transaction, error) {
	tx, err := transaction.FromBytes(raw)
	if err != nil {
		return nil, err
	}
	if len(expectedID) != 0 && tx.ID != expectedID {
		return nil, errors.Errorf("expected transaction [%s], received [%s]", expectedID, tx.ID)
	}
	if !trusted.Contain(tx.Notary) {
		return nil, errors.Errorf("notary [%s] of [%s] is not trusted", tx.Notary, tx.ID)
	}
	if err := contract.Verify(tx); err != nil {
		return nil, err
	}
	if err := tx.VerifyNotarySignature(svc.sigs); err != nil {
		return nil, err
	}
	if err := svc.vault.Record(tx); err != nil {
		return nil, err
	}
	return tx, nil
}
