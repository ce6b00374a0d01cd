/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flow

import (
	context2 "context"
	"sync"
	"time"

	"github.com/hyperledger-labs/license-ledger/pkg/utils"
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/license/contract"
	"github.com/hyperledger-labs/license-ledger/platform/license/notary"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/license/vault"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/session"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	"golang.org/x/sync/errgroup"
)

var logger = logging.MustGetLogger("license.flow")

// services are the local collaborators of a run
type services struct {
	sigs    driver.SigService
	vault   *vault.Vault
	metrics *Metrics
}

func getServices(context view.Context) (*services, error) {
	v, err := vault.GetVault(context)
	if err != nil {
		return nil, err
	}
	return &services{sigs: driver.GetSigService(context), vault: v, metrics: GetMetrics(context)}, nil
}

// CommitView drives a built transaction to finality as its proposer:
// BUILT, LOCALLY_VERIFIED, SELF_SIGNED, COLLECTING_SIGNATURES, NOTARIZING, FINALIZED.
// Any failure before the notary signs aborts the run without side effects on the ledger.
// After that the run cannot be cancelled anymore and a failed delivery yields a *DeliveryError.
type CommitView struct {
	tx      *transaction.Transaction
	options *Options
}

func NewCommitView(tx *transaction.Transaction, options *Options) *CommitView {
	return &CommitView{tx: tx, options: options}
}

func (c *CommitView) Call(context view.Context) (interface{}, error) {
	start := time.Now()
	svc, err := getServices(context)
	if err != nil {
		return nil, err
	}
	kind := c.tx.Kind()
	p := newProgress(context, c.tx.ID, kind)

	tx, err := c.run(context, svc, p)
	outcome := Outcome(err)
	svc.metrics.Runs.With(string(kind), outcome).Add(1)
	svc.metrics.Duration.With(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		if _, ok := IsDeliveryFailure(err); !ok {
			p.fail(Aborted, err)
		}
		logger.Infof("[%s] run for [%s] ended with [%s]: %s", kind, c.tx.ID, outcome, err)
		return tx, err
	}
	return tx, nil
}

func (c *CommitView) run(context view.Context, svc *services, p *progress) (*transaction.Transaction, error) {
	tx := c.tx
	p.report(Built)

	if err := contract.Verify(tx); err != nil {
		return nil, err
	}
	p.report(LocallyVerified)

	required, err := tx.RequiredSigners()
	if err != nil {
		return nil, err
	}
	me := context.Me()
	if !required.Contain(me) {
		return nil, errors.Wrapf(transaction.ErrNotAuthorized, "[%s] is not a signer of [%s]", me, tx.ID)
	}
	if err := tx.Sign(me, svc.sigs); err != nil {
		return nil, err
	}
	p.report(SelfSigned)

	counterparties := required.Others(me)
	p.report(CollectingSignatures)
	if err := c.collect(context, svc, counterparties); err != nil {
		c.abort(context, counterparties, err)
		return nil, err
	}
	if !tx.IsFullySigned() {
		err := &contract.Violation{Kind: contract.SignerViolation, Command: tx.Kind(), Reason: "collected signatures differ from the required ones"}
		c.abort(context, counterparties, err)
		return nil, err
	}

	p.report(Notarizing)
	gateway := notary.WithRetries(notary.NewGateway(context, c.options.SessionTimeout), c.options.NotaryRetries, c.options.DeliveryDelay)
	sigma, err := gateway.Notarize(context.Context(), tx)
	if err != nil {
		c.abort(context, counterparties, err)
		return nil, err
	}
	tx.Notarize(sigma)
	if err := tx.VerifyNotarySignature(svc.sigs); err != nil {
		c.abort(context, counterparties, err)
		return nil, err
	}

	// notarized: from now on the run only moves forward
	ctx := context2.WithoutCancel(context.Context())
	recorded := svc.vault.Record(tx)
	if recorded != nil {
		logger.Errorf("notarized transaction [%s] not recorded locally: %s", tx.ID, recorded)
		recorded = errors.WithMessagef(recorded, "notarized transaction [%s] not recorded locally", tx.ID)
	}
	if err := c.distribute(context, ctx, svc, counterparties, recorded); err != nil {
		p.fail(Notarizing, err)
		return tx, err
	}
	p.report(Finalized)
	return tx, nil
}

// collect asks every counterparty for its signature, concurrently.
// The first decline cancels the pending requests.
func (c *CommitView) collect(context view.Context, svc *services, parties view.Identities) error {
	raw, err := c.tx.Bytes()
	if err != nil {
		return err
	}
	signatures := make([][]byte, len(parties))
	g, gctx := errgroup.WithContext(context.Context())
	for i, party := range parties {
		g.Go(func() error {
			s, err := context.GetSession(c, party)
			if err != nil {
				return &DeclinedError{Party: party, Reason: err.Error()}
			}
			js := session.NewFromSession(gctx, s).WithTimeout(c.options.SessionTimeout)
			if err := js.Send(&Proposal{Tx: raw}); err != nil {
				return &DeclinedError{Party: party, Reason: err.Error()}
			}
			resp := &SignatureResponse{}
			if err := js.Receive(resp); err != nil {
				return &DeclinedError{Party: party, Reason: err.Error()}
			}
			if resp.Declined {
				return &DeclinedError{Party: party, Reason: resp.Reason}
			}
			verifier, err := svc.sigs.GetVerifier(party)
			if err != nil {
				return errors.WithMessagef(err, "cannot verify the signature of [%s]", party)
			}
			if err := verifier.Verify([]byte(c.tx.ID), resp.Signature); err != nil {
				return &DeclinedError{Party: party, Reason: "invalid signature: " + err.Error()}
			}
			signatures[i] = resp.Signature
			logger.Debugf("[%s] signed [%s]", party, c.tx.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, party := range parties {
		if err := c.tx.AppendSignature(party, signatures[i]); err != nil {
			return err
		}
	}
	return nil
}

// abort tells the counterparties still waiting that the run is over. Failures are ignored.
func (c *CommitView) abort(context view.Context, parties view.Identities, cause error) {
	ctx := context2.WithoutCancel(context.Context())
	for _, party := range parties {
		s, err := context.GetSession(c, party)
		if err != nil {
			continue
		}
		if err := session.NewFromSession(ctx, s).Send(&Final{Aborted: true, Reason: cause.Error()}); err != nil {
			logger.Debugf("abort of [%s] not delivered to [%s]: %s", c.tx.ID, party, err)
		}
	}
}

// distribute hands the notarized transaction to every counterparty.
// The first attempt uses the session the signature was collected on, the retries a re-delivery.
// Parties that could not be reached are remembered in the vault, the proposer too when recorded is not nil.
func (c *CommitView) distribute(context view.Context, ctx context2.Context, svc *services, parties view.Identities, recorded error) error {
	raw, err := c.tx.Bytes()
	if err != nil {
		return err
	}

	var (
		mutex   sync.Mutex
		pending view.Identities
		causes  []error
		wg      sync.WaitGroup
	)
	for _, party := range parties {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.deliverOnSession(context, ctx, party, raw)
			if err != nil {
				logger.Debugf("delivery of [%s] to [%s] failed, retry: %s", c.tx.ID, party, err)
				err = utils.NewRetryRunner(c.options.DeliveryRetries, c.options.DeliveryDelay, true).Run(func() error {
					_, err := context.RunView(NewRedeliveryView(c.tx, party, c.options.SessionTimeout), view.WithContext(ctx))
					return err
				})
			}
			if err != nil {
				mutex.Lock()
				pending = append(pending, party)
				causes = append(causes, err)
				mutex.Unlock()
			}
		}()
	}
	wg.Wait()

	if recorded != nil {
		pending = append(pending, context.Me())
		causes = append(causes, recorded)
	}
	if len(pending) == 0 {
		return nil
	}
	if err := svc.vault.AddPending(c.tx, pending...); err != nil {
		logger.Errorf("failed remembering pending deliveries of [%s]: %s", c.tx.ID, err)
	}
	return &DeliveryError{Tx: c.tx, Parties: pending, Cause: errors.Join(causes...)}
}

func (c *CommitView) deliverOnSession(context view.Context, ctx context2.Context, party view.Identity, raw []byte) error {
	s, err := context.GetSession(c, party)
	if err != nil {
		return err
	}
	js := session.NewFromSession(ctx, s).WithTimeout(c.options.SessionTimeout)
	if err := js.Send(&Final{Tx: raw}); err != nil {
		return err
	}
	ack := &Ack{}
	if err := js.Receive(ack); err != nil {
		return err
	}
	if ack.TxID != c.tx.ID {
		return errors.Errorf("[%s] acknowledged [%s] instead of [%s]", party, ack.TxID, c.tx.ID)
	}
	return nil
}
