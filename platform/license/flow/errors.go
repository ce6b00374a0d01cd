/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flow

import (
	"fmt"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/license/contract"
	"github.com/hyperledger-labs/license-ledger/platform/license/notary"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/license/vault"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// DeclinedError is returned when a counterparty refuses to sign, or does not answer in time
type DeclinedError struct {
	Party  view.Identity
	Reason string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("Decline: [%s] did not sign: %s", e.Party, e.Reason)
}

// DeliveryError is returned when a notarized transaction did not reach every participant.
// The transaction is final: the missing deliveries are retried by a re-delivery, never by a new run.
type DeliveryError struct {
	Tx      *transaction.Transaction
	Parties view.Identities
	Cause   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("DeliveryFailure: transaction [%s] not acknowledged by [%d] participants: %v", e.Tx.ID, len(e.Parties), e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// IsDeclined returns the decline carried by err, if any
func IsDeclined(err error) (*DeclinedError, bool) {
	var d *DeclinedError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsDeliveryFailure returns the delivery failure carried by err, if any
func IsDeliveryFailure(err error) (*DeliveryError, bool) {
	var d *DeliveryError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Outcome classifies the result of a run for metrics and logs
func Outcome(err error) string {
	if err == nil {
		return "finalized"
	}
	if _, ok := IsDeliveryFailure(err); ok {
		return "DeliveryFailure"
	}
	if v, ok := contract.IsViolation(err); ok {
		return v.Kind.String()
	}
	if errors.HasCause(err, transaction.ErrNotAuthorized) {
		return "AuthorizationViolation"
	}
	if errors.HasCause(err, vault.ErrNotFound) {
		return "NotFound"
	}
	if _, ok := IsDeclined(err); ok {
		return "Decline"
	}
	if _, ok := notary.IsConflict(err); ok {
		return "Conflict"
	}
	return "Failure"
}
