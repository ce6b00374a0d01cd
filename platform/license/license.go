/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package license

import (
	"context"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/license/flow"
	"github.com/hyperledger-labs/license-ledger/platform/license/states"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/license/vault"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/tracker"
	view2 "github.com/hyperledger-labs/license-ledger/platform/view/services/view"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("license")

// Service is the entry point of a party: it starts commit runs and answers queries on its vault.
// Issue, Transfer and Scrap return the finalized transaction or the failure that ended the run.
// On a *flow.DeliveryError the notarized transaction is returned together with the error.
type Service struct {
	manager *view2.Manager
	vault   *vault.Vault
	options *flow.Options
	tracker *tracker.Manager
}

func NewService(manager *view2.Manager, vault *vault.Vault, options *flow.Options, tracker *tracker.Manager) *Service {
	return &Service{manager: manager, vault: vault, options: options, tracker: tracker}
}

// Me returns the identity of the party
func (s *Service) Me() view.Identity {
	return s.manager.Me()
}

// Issue asks issuer to issue a license with the passed plate to this party
func (s *Service) Issue(ctx context.Context, plate string, issuer view.Identity) (*transaction.Transaction, error) {
	return s.run(ctx, flow.NewIssueView(plate, issuer, s.options))
}

// Transfer moves the license to newHolder. Only the issuer can transfer.
func (s *Service) Transfer(ctx context.Context, id string, newHolder view.Identity) (*transaction.Transaction, error) {
	return s.run(ctx, flow.NewTransferView(id, newHolder, s.options))
}

// Scrap consumes the license. Only the issuer can scrap.
func (s *Service) Scrap(ctx context.Context, id string) (*transaction.Transaction, error) {
	return s.run(ctx, flow.NewScrapView(id, s.options))
}

// Live returns the live version of the license, vault.ErrNotFound if there is none
func (s *Service) Live(id string) (*states.StateAndRef, error) {
	return s.vault.FindLive(id)
}

// History returns the versions of the license known to this party, oldest first
func (s *Service) History(id string) ([]*vault.Version, error) {
	return s.vault.History(id)
}

// Transaction returns a finalized transaction recorded by this party
func (s *Service) Transaction(txID string) (*transaction.Transaction, error) {
	return s.vault.GetTransaction(txID)
}

// Pending returns the notarized transactions some participant did not receive yet
func (s *Service) Pending() ([]*vault.PendingDelivery, error) {
	return s.vault.Pending()
}

// Redeliver sends again the notarized transactions some participant missed.
// It returns the deliveries that are still pending.
func (s *Service) Redeliver(ctx context.Context) ([]*vault.PendingDelivery, error) {
	res, err := s.manager.InitiateView(flow.NewReconcileView(s.options), ctx)
	if err != nil {
		return nil, err
	}
	left, _ := res.([]*vault.PendingDelivery)
	return left, nil
}

// Progress returns the tracker of the run that committed the passed transaction
func (s *Service) Progress(txID string) (tracker.ViewTracker, bool) {
	return s.tracker.Get(txID)
}

func (s *Service) run(ctx context.Context, v view.View) (*transaction.Transaction, error) {
	res, err := s.manager.InitiateView(v, ctx)
	if err != nil {
		if d, ok := flow.IsDeliveryFailure(err); ok {
			return d.Tx, err
		}
		return nil, err
	}
	tx, ok := res.(*transaction.Transaction)
	if !ok {
		return nil, errors.Errorf("unexpected result [%T]", res)
	}
	logger.Debugf("[%s] finalized [%s]", tx.Kind(), tx.ID)
	return tx, nil
}
