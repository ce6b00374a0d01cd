/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transaction

import (
	"github.com/hyperledger-labs/license-ledger/pkg/utils"
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/license/contract"
	"github.com/hyperledger-labs/license-ledger/platform/license/states"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// ErrNotAuthorized is returned when the caller is not entitled to start an operation
var ErrNotAuthorized = errors.New("AuthorizationViolation")

// Lookup resolves the live version of a license
type Lookup interface {
	FindLive(id string) (*states.StateAndRef, error)
}

// Builder assembles the transactions a party proposes.
// Built transactions carry their required signers but no signature.
type Builder struct {
	me     view.Identity
	notary view.Identity
	lookup Lookup
}

func NewBuilder(me view.Identity, notary view.Identity, lookup Lookup) *Builder {
	return &Builder{me: me, notary: notary, lookup: lookup}
}

// Create issues a new license with the passed plate, issued by issuer to the caller
func (b *Builder) Create(plate string, issuer view.Identity) (*Transaction, error) {
	l := &states.License{
		ID:     utils.GenerateUUID(),
		Plate:  plate,
		Issuer: issuer,
		Holder: b.me,
	}
	return b.build(contract.Create, nil, []*states.License{l})
}

// Transfer moves the live version of the license to newHolder. Only the issuer can transfer.
func (b *Builder) Transfer(id string, newHolder view.Identity) (*Transaction, error) {
	live, err := b.authorize(id)
	if err != nil {
		return nil, err
	}
	return b.build(contract.Transfer, []*states.StateAndRef{live}, []*states.License{live.State.ChangeHolder(newHolder)})
}

// Scrap consumes the live version of the license. Only the issuer can scrap.
func (b *Builder) Scrap(id string) (*Transaction, error) {
	live, err := b.authorize(id)
	if err != nil {
		return nil, err
	}
	return b.build(contract.Scrap, []*states.StateAndRef{live}, nil)
}

func (b *Builder) authorize(id string) (*states.StateAndRef, error) {
	live, err := b.lookup.FindLive(id)
	if err != nil {
		return nil, errors.WithMessagef(err, "cannot resolve license [%s]", id)
	}
	if !live.State.Issuer.Equal(b.me) {
		return nil, errors.Wrapf(ErrNotAuthorized, "[%s] is not the issuer of license [%s]", b.me, id)
	}
	return live, nil
}

func (b *Builder) build(kind contract.Kind, consumed []*states.StateAndRef, produced []*states.License) (*Transaction, error) {
	if b.notary.IsNone() {
		return nil, errors.New("no notary configured")
	}
	tx := &Transaction{
		Nonce:    utils.GenerateUUID(),
		Notary:   b.notary,
		Consumed: consumed,
		Produced: produced,
	}
	signers, err := contract.RequiredSigners(kind, tx.Inputs(), tx.Outputs())
	if err != nil {
		return nil, err
	}
	tx.Cmds = []contract.Command{{Kind: kind, Signers: signers}}
	if err := tx.setID(); err != nil {
		return nil, err
	}
	logger.Debugf("built [%s] transaction [%s] for license [%s]", kind, tx.ID, tx.LicenseID())
	return tx, nil
}
