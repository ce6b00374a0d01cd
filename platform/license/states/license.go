/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package states

import (
	"fmt"

	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// License is one version of a car license record.
// ID is assigned on creation and survives transfers. Issuer never changes, Holder changes on transfer.
type License struct {
	ID     string        `json:"id"`
	Plate  string        `json:"plate"`
	Issuer view.Identity `json:"issuer"`
	Holder view.Identity `json:"holder"`
}

// Participants returns the parties whose consent is required by default, issuer first
func (l *License) Participants() view.Identities {
	return view.Identities{l.Issuer, l.Holder}
}

// ChangeHolder returns a new version of this license held by the passed identity
func (l *License) ChangeHolder(holder view.Identity) *License {
	return &License{
		ID:     l.ID,
		Plate:  l.Plate,
		Issuer: l.Issuer,
		Holder: holder,
	}
}

func (l *License) Equal(o *License) bool {
	if l == nil || o == nil {
		return l == o
	}
	return l.ID == o.ID && l.Plate == o.Plate && l.Issuer.Equal(o.Issuer) && l.Holder.Equal(o.Holder)
}

func (l *License) String() string {
	return fmt.Sprintf("license [%s:%s] issuer [%s] holder [%s]", l.ID, l.Plate, l.Issuer, l.Holder)
}

// StateRef points to an output of a finalized transaction
type StateRef struct {
	TxID  string `json:"txID"`
	Index int    `json:"index"`
}

func (r StateRef) String() string {
	return fmt.Sprintf("%s:%d", r.TxID, r.Index)
}

// StateAndRef is a license version together with the output that introduced it
type StateAndRef struct {
	State *License `json:"state"`
	Ref   StateRef `json:"ref"`
}
