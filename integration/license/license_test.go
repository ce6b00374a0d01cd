/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package license_test

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperledger-labs/license-ledger/integration/license"
	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/license/contract"
	"github.com/hyperledger-labs/license-ledger/platform/license/flow"
	"github.com/hyperledger-labs/license-ledger/platform/license/notary"
	"github.com/hyperledger-labs/license-ledger/platform/license/sdk"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/license/vault"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/comm"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/db/driver/sqlite"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/events"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/tracker"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EndToEnd", func() {
	var (
		ii                            *license.Infrastructure
		dir                           string
		alice, bob, carol, dave, erin *sdk.Party
		ctx                           context.Context
		cancel                        context.CancelFunc
	)

	BeforeEach(func() {
		var err error
		dir = GinkgoT().TempDir()
		ii, err = license.NewInfrastructure(dir)
		Expect(err).NotTo(HaveOccurred())
		alice = ii.Party(license.Alice)
		bob = ii.Party(license.Bob)
		carol = ii.Party(license.Carol)
		dave = ii.Party(license.Dave)
		erin = ii.Party(license.Erin)
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	})

	AfterEach(func() {
		cancel()
		Expect(ii.Close()).To(Succeed())
	})

	Describe("Issuance", func() {
		It("records the new license at both participants", func() {
			tx, err := bob.Service.Issue(ctx, "XYZ-999", alice.Identity)
			Expect(err).NotTo(HaveOccurred())
			Expect(tx.IsNotarized()).To(BeTrue())
			Expect(tx.Kind()).To(Equal(contract.Create))

			id := tx.LicenseID()
			for _, p := range []*sdk.Party{alice, bob} {
				live, err := p.Service.Live(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(live.State.Plate).To(Equal("XYZ-999"))
				Expect(live.State.Issuer).To(Equal(alice.Identity))
				Expect(live.State.Holder).To(Equal(bob.Identity))
				Expect(live.Ref).To(Equal(tx.OutputRef(0)))
			}
			_, err = carol.Service.Live(id)
			Expect(errors.HasCause(err, vault.ErrNotFound)).To(BeTrue())

			t, ok := bob.Service.Progress(tx.ID)
			Expect(ok).To(BeTrue())
			Expect(t.Status()).To(Equal(tracker.DONE))
			Expect(t.LatestReport()).To(Equal(string(flow.Finalized)))
		})

		It("rejects a transfer from a party that is not the issuer", func() {
			tx, err := bob.Service.Issue(ctx, "XYZ-999", alice.Identity)
			Expect(err).NotTo(HaveOccurred())

			_, err = bob.Service.Transfer(ctx, tx.LicenseID(), carol.Identity)
			Expect(errors.HasCause(err, transaction.ErrNotAuthorized)).To(BeTrue())

			live, err := bob.Service.Live(tx.LicenseID())
			Expect(err).NotTo(HaveOccurred())
			Expect(live.State.Holder).To(Equal(bob.Identity))
		})
	})

	Describe("Lifecycle", func() {
		It("issues, transfers and scraps a license", func() {
			issued, err := bob.Service.Issue(ctx, "ABC-123", alice.Identity)
			Expect(err).NotTo(HaveOccurred())
			id := issued.LicenseID()

			transferred, err := alice.Service.Transfer(ctx, id, carol.Identity)
			Expect(err).NotTo(HaveOccurred())
			Expect(transferred.Signers().SetEqual(view.Identities{alice.Identity, bob.Identity, carol.Identity})).To(BeTrue())
			for _, p := range []*sdk.Party{alice, bob, carol} {
				live, err := p.Service.Live(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(live.State.Holder).To(Equal(carol.Identity))
				Expect(live.State.Plate).To(Equal("ABC-123"))
			}

			history, err := alice.Service.History(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))
			Expect(history[0].State.Holder).To(Equal(bob.Identity))
			Expect(history[1].State.Holder).To(Equal(carol.Identity))

			_, err = alice.Service.Scrap(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			for _, p := range []*sdk.Party{alice, carol} {
				_, err = p.Service.Live(id)
				Expect(errors.HasCause(err, vault.ErrNotFound)).To(BeTrue())
			}
			history, err = alice.Service.History(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))

			_, err = alice.Service.Transfer(ctx, id, bob.Identity)
			Expect(errors.HasCause(err, vault.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Failures", func() {
		It("lets exactly one of two conflicting transfers through", func() {
			issued, err := bob.Service.Issue(ctx, "DUP-001", alice.Identity)
			Expect(err).NotTo(HaveOccurred())
			id := issued.LicenseID()

			b := transaction.NewBuilder(alice.Identity, alice.Options.Notary, alice.Vault)
			toCarol, err := b.Transfer(id, carol.Identity)
			Expect(err).NotTo(HaveOccurred())
			toErin, err := b.Transfer(id, erin.Identity)
			Expect(err).NotTo(HaveOccurred())

			txs := []*transaction.Transaction{toCarol, toErin}
			errs := make([]error, 2)
			var wg sync.WaitGroup
			for i, tx := range txs {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, errs[i] = alice.Manager.InitiateView(flow.NewCommitView(tx, alice.Options), ctx)
				}()
			}
			wg.Wait()

			var (
				succeeded, conflicts int
				winner               *transaction.Transaction
			)
			for i, err := range errs {
				if err == nil {
					succeeded++
					winner = txs[i]
					continue
				}
				if _, ok := notary.IsConflict(err); ok {
					conflicts++
				}
			}
			Expect(succeeded).To(Equal(1))
			Expect(conflicts).To(Equal(1))

			live, err := alice.Service.Live(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(live.State.Holder).To(Equal(winner.Produced[0].Holder))
			Expect(live.Ref).To(Equal(winner.OutputRef(0)))
		})

		It("rejects a transaction carrying an extra signer before contacting anyone", func() {
			issued, err := bob.Service.Issue(ctx, "SIG-001", alice.Identity)
			Expect(err).NotTo(HaveOccurred())

			tx, err := transaction.NewBuilder(alice.Identity, alice.Options.Notary, alice.Vault).Transfer(issued.LicenseID(), carol.Identity)
			Expect(err).NotTo(HaveOccurred())
			tx.Cmds[0].Signers = append(tx.Cmds[0].Signers, erin.Identity)

			_, err = alice.Manager.InitiateView(flow.NewCommitView(tx, alice.Options), ctx)
			Expect(contract.HasViolationKind(err, contract.SignerViolation)).To(BeTrue())

			_, err = carol.Service.Live(issued.LicenseID())
			Expect(errors.HasCause(err, vault.ErrNotFound)).To(BeTrue())
		})

		It("aborts when a counterparty declines", func() {
			_, err := bob.Service.Issue(ctx, "DEC-001", dave.Identity)
			d, ok := flow.IsDeclined(err)
			Expect(ok).To(BeTrue())
			Expect(d.Party).To(Equal(dave.Identity))

			pending, err := bob.Service.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})

		It("aborts when the notary is not trusted by the counterparties", func() {
			issued, err := bob.Service.Issue(ctx, "NOT-001", alice.Identity)
			Expect(err).NotTo(HaveOccurred())

			tx, err := transaction.NewBuilder(alice.Identity, erin.Identity, alice.Vault).Transfer(issued.LicenseID(), carol.Identity)
			Expect(err).NotTo(HaveOccurred())
			_, err = alice.Manager.InitiateView(flow.NewCommitView(tx, alice.Options), ctx)
			_, ok := flow.IsDeclined(err)
			Expect(ok).To(BeTrue())

			live, err := alice.Service.Live(issued.LicenseID())
			Expect(err).NotTo(HaveOccurred())
			Expect(live.State.Holder).To(Equal(bob.Identity))
		})

		It("keeps undelivered transactions pending until they are redelivered", func() {
			issued, err := bob.Service.Issue(ctx, "DEL-001", alice.Identity)
			Expect(err).NotTo(HaveOccurred())
			id := issued.LicenseID()

			d := &disconnector{hub: ii.Hub, target: carol.Identity}
			alice.Events.Subscribe(flow.ProgressTopic, d)
			defer alice.Events.Unsubscribe(flow.ProgressTopic, d)

			tx, err := alice.Service.Transfer(ctx, id, carol.Identity)
			failure, ok := flow.IsDeliveryFailure(err)
			Expect(ok).To(BeTrue())
			Expect(failure.Parties).To(ConsistOf(carol.Identity))
			Expect(tx).NotTo(BeNil())
			Expect(tx.IsNotarized()).To(BeTrue())

			// the notary committed: the proposer and the reachable parties moved on
			for _, p := range []*sdk.Party{alice, bob} {
				live, err := p.Service.Live(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(live.State.Holder).To(Equal(carol.Identity))
			}
			_, err = carol.Service.Transaction(tx.ID)
			Expect(err).To(HaveOccurred())

			pending, err := alice.Service.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].TxID).To(Equal(tx.ID))
			Expect(pending[0].Party).To(Equal(carol.Identity))

			t, ok := alice.Service.Progress(tx.ID)
			Expect(ok).To(BeTrue())
			Expect(t.Status()).To(Equal(tracker.ERROR))

			ii.Hub.Reconnect(carol.Identity)
			left, err := alice.Service.Redeliver(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(left).To(BeEmpty())

			recorded, err := carol.Service.Transaction(tx.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(recorded.ID).To(Equal(tx.ID))
			live, err := carol.Service.Live(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(live.State.Holder).To(Equal(carol.Identity))

			pending, err = alice.Service.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeEmpty())
		})
		It("keeps a notarized transaction the proposer failed to record pending for itself", func() {
			issued, err := bob.Service.Issue(ctx, "REC-001", alice.Identity)
			Expect(err).NotTo(HaveOccurred())
			id := issued.LicenseID()

			// break the version counter of the license in alice's vault
			store, err := sqlite.Open(sqlite.Opts{DataSource: "file:" + filepath.Join(dir, "alice.sqlite")})
			Expect(err).NotTo(HaveOccurred())
			defer store.Close()
			counter := "count~" + id
			Expect(store.Update(func(w driver.KeyValueWriter) error { return w.Put(counter, []byte("broken")) })).To(Succeed())

			tx, err := alice.Service.Transfer(ctx, id, carol.Identity)
			failure, ok := flow.IsDeliveryFailure(err)
			Expect(ok).To(BeTrue())
			Expect(flow.Outcome(err)).To(Equal("DeliveryFailure"))
			Expect(failure.Parties).To(ConsistOf(alice.Identity))
			Expect(tx).NotTo(BeNil())
			Expect(tx.IsNotarized()).To(BeTrue())

			// the counterparties still got the transaction
			for _, p := range []*sdk.Party{bob, carol} {
				live, err := p.Service.Live(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(live.State.Holder).To(Equal(carol.Identity))
			}
			pending, err := alice.Service.Pending()
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].Party).To(Equal(alice.Identity))

			Expect(store.Update(func(w driver.KeyValueWriter) error { return w.Put(counter, []byte("1")) })).To(Succeed())
			left, err := alice.Service.Redeliver(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(left).To(BeEmpty())

			live, err := alice.Service.Live(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(live.State.Holder).To(Equal(carol.Identity))
			Expect(live.Ref).To(Equal(tx.OutputRef(0)))
		})
		It("refuses a re-delivered transaction notarized by an untrusted notary", func() {
			issued, err := bob.Service.Issue(ctx, "RED-001", alice.Identity)
			Expect(err).NotTo(HaveOccurred())
			id := issued.LicenseID()

			// erin is no notary of carol's, she signs as one anyway
			tx, err := transaction.NewBuilder(alice.Identity, erin.Identity, alice.Vault).Transfer(id, carol.Identity)
			Expect(err).NotTo(HaveOccurred())
			for _, p := range []*sdk.Party{alice, bob, carol} {
				Expect(tx.Sign(p.Identity, driver.GetSigService(p.Registry))).To(Succeed())
			}
			signer, err := driver.GetSigService(erin.Registry).GetSigner(erin.Identity)
			Expect(err).NotTo(HaveOccurred())
			sigma, err := signer.Sign([]byte(tx.ID))
			Expect(err).NotTo(HaveOccurred())
			tx.Notarize(sigma)

			_, err = alice.Manager.InitiateView(flow.NewRedeliveryView(tx, carol.Identity, alice.Options.SessionTimeout), ctx)
			Expect(err).To(MatchError(ContainSubstring("is not trusted")))

			_, err = carol.Service.Transaction(tx.ID)
			Expect(errors.HasCause(err, vault.ErrNotFound)).To(BeTrue())
			_, err = carol.Service.Live(id)
			Expect(errors.HasCause(err, vault.ErrNotFound)).To(BeTrue())
		})
	})
})

// disconnector cuts target off the hub once a transfer reaches the notary
type disconnector struct {
	once   sync.Once
	hub    *comm.Hub
	target view.Identity
}

func (d *disconnector) OnReceive(e events.Event) {
	pe, ok := e.Message().(*flow.ProgressEvent)
	if !ok || pe.Command != contract.Transfer || pe.State != flow.Notarizing {
		return
	}
	d.once.Do(func() { d.hub.Disconnect(d.target) })
}
