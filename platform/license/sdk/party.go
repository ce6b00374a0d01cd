/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdk

import (
	"os"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	digutils "github.com/hyperledger-labs/license-ledger/platform/common/utils/dig"
	"github.com/hyperledger-labs/license-ledger/platform/license"
	"github.com/hyperledger-labs/license-ledger/platform/license/flow"
	"github.com/hyperledger-labs/license-ledger/platform/license/notary"
	"github.com/hyperledger-labs/license-ledger/platform/license/vault"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/comm"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/config"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/db"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/events"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/events/simple"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/id/ecdsa"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics/prometheus"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/registry"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/tracing"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/tracker"
	view2 "github.com/hyperledger-labs/license-ledger/platform/view/services/view"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/dig"
)

var logger = logging.MustGetLogger("license.sdk")

const (
	// VaultPersistenceKey holds the storage options of the vault
	VaultPersistenceKey = "license.vault.persistence"
	// NotaryPersistenceKey holds the storage options of the notary, when the party runs one
	NotaryPersistenceKey = "license.notary.persistence"
	// NotaryEnabledKey turns the party into a notary
	NotaryEnabledKey = "license.notary.enabled"
	// IdentityKeyPathKey points to a PKCS8 PEM file with the party's secret key
	IdentityKeyPathKey = "license.identity.key"
)

// LocalIdentity is the signing identity of a party
type LocalIdentity struct {
	ID       view.Identity
	Signer   driver.Signer
	Verifier driver.Verifier
}

// Party is a participant of the license network, with its own services, wired by a dig container
type Party struct {
	Label    string
	Identity view.Identity

	Container *dig.Container
	Registry  *registry.ServiceProvider
	Metrics   *prom.Registry
	Manager   *view2.Manager
	Vault     *vault.Vault
	Tracker   *tracker.Manager
	Events    events.EventSystem
	Options   *flow.Options
	Service   *license.Service
	// Notary is set if the party runs the notary service
	Notary *notary.Service
}

// NewParty assembles a party from its configuration and attaches it to the hub.
// The policy decides what the party counter-signs, nil means flow.AcceptAll.
func NewParty(hub *comm.Hub, cp *config.Provider, policy flow.Policy) (*Party, error) {
	label := cp.ID()
	if len(label) == 0 {
		return nil, errors.Errorf("missing [%s] in configuration", config.IDKey)
	}
	if policy == nil {
		policy = flow.AcceptAll
	}

	c := dig.New()
	err := errors.Join(
		digutils.ProvideAll(c,
			func() *comm.Hub { return hub },
			func() *config.Provider { return cp },
			registry.New,
			func() *prom.Registry { return prom.NewRegistry() },
			func(r *prom.Registry) metrics.Provider {
				p := prometheus.NewProvider(r)
				p.SkipRegisterErr = true
				return p
			},
			func(mp metrics.Provider) trace.TracerProvider { return tracing.NewTracerProvider(mp) },
			tracker.NewManager,
			newLocalIdentity,
			newSigService,
			newVault,
			flow.NewMetrics,
			func() (*flow.Options, error) { return flow.LoadOptions(cp, hub) },
			newViewManager,
			license.NewService,
		),
		c.Provide(simple.NewEventBus, dig.As(new(events.EventSystem))),
		c.Provide(digutils.Identity[*sig.Service](), dig.As(new(driver.SigService))),
	)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed wiring party [%s]", label)
	}

	err = errors.Join(
		digutils.Register[*config.Provider](c),
		digutils.Register[*comm.Hub](c),
		digutils.Register[metrics.Provider](c),
		digutils.Register[events.EventSystem](c),
		digutils.Register[*tracker.Manager](c),
		digutils.Register[driver.SigService](c),
		digutils.Register[*vault.Vault](c),
		digutils.Register[*flow.Metrics](c),
		digutils.Register[*view2.Manager](c),
		c.Invoke(func(t *tracker.Manager, bus events.EventSystem) { t.Follow(bus, flow.ProgressTopic) }),
	)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed registering services of [%s]", label)
	}

	p := &Party{Label: label, Container: c}
	err = c.Invoke(func(in struct {
		dig.In
		Identity LocalIdentity
		Registry *registry.ServiceProvider
		Metrics  *prom.Registry
		Manager  *view2.Manager
		Vault    *vault.Vault
		Tracker  *tracker.Manager
		Events   events.EventSystem
		Options  *flow.Options
		Service  *license.Service
	}) {
		p.Identity = in.Identity.ID
		p.Registry = in.Registry
		p.Metrics = in.Metrics
		p.Manager = in.Manager
		p.Vault = in.Vault
		p.Tracker = in.Tracker
		p.Events = in.Events
		p.Options = in.Options
		p.Service = in.Service
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed assembling party [%s]", label)
	}

	if err := p.installResponders(policy); err != nil {
		return nil, err
	}
	if cp.GetBool(NotaryEnabledKey) {
		if err := p.installNotary(cp); err != nil {
			return nil, err
		}
	}
	logger.Debugf("services of [%s]:\n%s", label, digutils.Visualize(c))
	logger.Infof("party [%s] ready with identity [%s]", label, p.Identity)
	return p, nil
}

func (p *Party) installResponders(policy flow.Policy) error {
	return errors.Join(
		p.Manager.RegisterResponder(flow.NewResponder(policy, p.Options), &flow.CommitView{}),
		p.Manager.RegisterResponder(flow.NewRedeliveryResponder(p.Options), &flow.RedeliveryView{}),
	)
}

func (p *Party) installNotary(cp *config.Provider) error {
	store, err := db.OpenFromConfig(cp, NotaryPersistenceKey)
	if err != nil {
		return errors.WithMessagef(err, "failed opening notary store of [%s]", p.Label)
	}
	return p.Container.Invoke(func(id LocalIdentity, sigs *sig.Service, mp metrics.Provider) error {
		p.Notary = notary.NewService(id.ID, id.Signer, sigs, store, mp)
		if err := p.Registry.RegisterService(p.Notary); err != nil {
			return err
		}
		return p.Manager.RegisterResponder(&notary.Responder{}, &notary.RequestView{})
	})
}

// Close releases the storage of the party
func (p *Party) Close() error {
	var errs []error
	if p.Notary != nil {
		errs = append(errs, p.Notary.Close())
	}
	errs = append(errs, p.Vault.Close())
	return errors.Join(errs...)
}

func newLocalIdentity(cp *config.Provider) (LocalIdentity, error) {
	var (
		id       view.Identity
		signer   driver.Signer
		verifier driver.Verifier
		err      error
	)
	if cp.IsSet(IdentityKeyPathKey) {
		path := cp.GetPath(IdentityKeyPathKey)
		raw, rerr := os.ReadFile(path)
		if rerr != nil {
			return LocalIdentity{}, errors.Wrapf(rerr, "failed reading [%s]", path)
		}
		id, signer, verifier, err = ecdsa.NewSignerFromPEM(raw)
	} else {
		id, signer, verifier, err = ecdsa.NewSigner()
	}
	if err != nil {
		return LocalIdentity{}, errors.WithMessage(err, "failed loading party identity")
	}
	return LocalIdentity{ID: id, Signer: signer, Verifier: verifier}, nil
}

func newSigService(id LocalIdentity) (*sig.Service, error) {
	s := sig.NewService(sig.ECDSADeserializer{})
	if err := s.RegisterSigner(id.ID, id.Signer, id.Verifier); err != nil {
		return nil, err
	}
	return s, nil
}

func newVault(cp *config.Provider) (*vault.Vault, error) {
	store, err := db.OpenFromConfig(cp, VaultPersistenceKey)
	if err != nil {
		return nil, errors.WithMessage(err, "failed opening vault")
	}
	return vault.New(store), nil
}

func newViewManager(
	sp *registry.ServiceProvider,
	hub *comm.Hub,
	cp *config.Provider,
	id LocalIdentity,
	sigs *sig.Service,
	tp trace.TracerProvider,
	mp metrics.Provider,
) (*view2.Manager, error) {
	return view2.NewManager(sp, hub, cp.ID(), id.ID, sigs, tp, mp)
}
