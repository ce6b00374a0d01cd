/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package license

import (
	"fmt"
	"path/filepath"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/license/flow"
	"github.com/hyperledger-labs/license-ledger/platform/license/sdk"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
)

const (
	Notary = "notary"
	Alice  = "alice"
	Bob    = "bob"
	Carol  = "carol"
	// Dave declines every proposal
	Dave = "dave"
	Erin = "erin"
)

const notaryConfig = `
license:
  id: notary
  notary:
    enabled: true
    persistence:
      type: badger
      opts:
        inMemory: true
`

const partyConfig = `
license:
  id: %s
  notaries: [notary]
  session:
    timeout: 2s
  finality:
    timeout: 2s
  delivery:
    retries: 2
    delay: 10ms
`

const sqliteVault = `
  vault:
    persistence:
      type: sqlite
      opts:
        dataSource: file:%s
`

// DeclineAll refuses every proposal
var DeclineAll = flow.PolicyFunc(func(*transaction.Transaction) bool { return false })

// Infrastructure is a notary and five parties in one process.
// Alice keeps her vault in sqlite under dir, the others in memory.
type Infrastructure struct {
	*sdk.Network
}

func NewInfrastructure(dir string) (*Infrastructure, error) {
	n := sdk.NewNetwork()
	if _, err := n.AddPartyFromYAML([]byte(notaryConfig), nil); err != nil {
		return nil, errors.WithMessage(err, "failed adding notary")
	}
	for _, label := range []string{Alice, Bob, Carol, Dave, Erin} {
		raw := fmt.Sprintf(partyConfig, label)
		var policy flow.Policy
		switch label {
		case Alice:
			raw += fmt.Sprintf(sqliteVault, filepath.Join(dir, "alice.sqlite"))
		case Dave:
			policy = DeclineAll
		}
		if _, err := n.AddPartyFromYAML([]byte(raw), policy); err != nil {
			return nil, errors.WithMessagef(err, "failed adding [%s]", label)
		}
	}
	return &Infrastructure{Network: n}, nil
}
