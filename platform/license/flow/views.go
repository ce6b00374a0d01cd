/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flow

import (
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/license/vault"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// IssueView asks issuer to issue a license with the passed plate to the caller
type IssueView struct {
	Plate   string
	Issuer  view.Identity
	options *Options
}

func NewIssueView(plate string, issuer view.Identity, options *Options) *IssueView {
	return &IssueView{Plate: plate, Issuer: issuer, options: options}
}

func (i *IssueView) Call(context view.Context) (interface{}, error) {
	return build(context, i.options, func(b *transaction.Builder) (*transaction.Transaction, error) {
		return b.Create(i.Plate, i.Issuer)
	})
}

// TransferView moves a license to a new holder. The caller must be the issuer.
type TransferView struct {
	ID        string
	NewHolder view.Identity
	options   *Options
}

func NewTransferView(id string, newHolder view.Identity, options *Options) *TransferView {
	return &TransferView{ID: id, NewHolder: newHolder, options: options}
}

func (t *TransferView) Call(context view.Context) (interface{}, error) {
	return build(context, t.options, func(b *transaction.Builder) (*transaction.Transaction, error) {
		return b.Transfer(t.ID, t.NewHolder)
	})
}

// ScrapView scraps a license. The caller must be the issuer.
type ScrapView struct {
	ID      string
	options *Options
}

func NewScrapView(id string, options *Options) *ScrapView {
	return &ScrapView{ID: id, options: options}
}

func (s *ScrapView) Call(context view.Context) (interface{}, error) {
	return build(context, s.options, func(b *transaction.Builder) (*transaction.Transaction, error) {
		return b.Scrap(s.ID)
	})
}

func build(context view.Context, options *Options, f func(b *transaction.Builder) (*transaction.Transaction, error)) (interface{}, error) {
	v, err := vault.GetVault(context)
	if err != nil {
		return nil, err
	}
	tx, err := f(transaction.NewBuilder(context.Me(), options.Notary, v))
	if err != nil {
		GetMetrics(context).Runs.With("", Outcome(err)).Add(1)
		return nil, err
	}
	return context.RunView(NewCommitView(tx, options), view.WithSameContext())
}
