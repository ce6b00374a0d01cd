/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sdk

import (
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/license/flow"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/comm"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/config"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
)

// Network is a set of parties living in the same process, connected by a hub.
// Notaries must be added before the parties that name them.
type Network struct {
	Hub     *comm.Hub
	Metrics *prom.Registry

	mutex   sync.RWMutex
	parties []*Party
}

func NewNetwork() *Network {
	r := prom.NewRegistry()
	return &Network{
		Hub:     comm.NewHub(prometheus.NewProvider(r)),
		Metrics: r,
	}
}

// AddParty builds a party from its configuration and attaches it to the network
func (n *Network) AddParty(cp *config.Provider, policy flow.Policy) (*Party, error) {
	p, err := NewParty(n.Hub, cp, policy)
	if err != nil {
		return nil, err
	}
	n.mutex.Lock()
	n.parties = append(n.parties, p)
	n.mutex.Unlock()
	return p, nil
}

// AddPartyFromYAML builds a party from an in-memory core.yaml
func (n *Network) AddPartyFromYAML(raw []byte, policy flow.Policy) (*Party, error) {
	cp, err := config.NewProviderFromYAML(raw)
	if err != nil {
		return nil, err
	}
	return n.AddParty(cp, policy)
}

// Party returns the party with the passed label, nil if there is none
func (n *Network) Party(label string) *Party {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	for _, p := range n.parties {
		if p.Label == label {
			return p
		}
	}
	return nil
}

func (n *Network) Parties() []*Party {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return append([]*Party{}, n.parties...)
}

func (n *Network) Close() error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	errs := make([]error, 0, len(n.parties))
	for _, p := range n.parties {
		errs = append(errs, p.Close())
	}
	n.parties = nil
	return errors.Join(errs...)
}
