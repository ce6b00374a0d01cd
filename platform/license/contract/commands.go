/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contract

import (
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// Kind discriminates the transitions a license can go through.
// The set is closed: the rule table in Verify covers every kind.
type Kind string

const (
	Create   Kind = "create"
	Transfer Kind = "transfer"
	Scrap    Kind = "scrap"
)

// Kinds lists every known transition kind
var Kinds = []Kind{Create, Transfer, Scrap}

func (k Kind) Valid() bool {
	switch k {
	case Create, Transfer, Scrap:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// Command is the transition a transaction performs, together with the parties that must sign it
type Command struct {
	Kind    Kind            `json:"kind"`
	Signers view.Identities `json:"signers"`
}
