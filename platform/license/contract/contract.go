/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contract

import (
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/license/states"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("license.contract")

// LedgerTransaction is the view of a transaction the rules are evaluated on
type LedgerTransaction interface {
	Inputs() []*states.License
	Outputs() []*states.License
	Commands() []Command
}

// Verify checks that the passed transaction is a legal license transition.
// It returns nil or the first *Violation found, checking shape, then content, then signers.
// Verify has no side effects: every party running it on the same transaction gets the same verdict.
func Verify(tx LedgerTransaction) error {
	commands := tx.Commands()
	if len(commands) != 1 {
		return shape("", "expected exactly one command, got [%d]", len(commands))
	}
	cmd := commands[0]
	if !cmd.Kind.Valid() {
		return shape(cmd.Kind, "unknown command")
	}

	inputs, outputs := tx.Inputs(), tx.Outputs()
	if v := checkShape(cmd.Kind, inputs, outputs); v != nil {
		return v
	}
	if v := checkContent(cmd.Kind, inputs, outputs); v != nil {
		return v
	}
	if v := checkSigners(cmd, inputs, outputs); v != nil {
		return v
	}
	logger.Debugf("transaction with command [%s] verified", cmd.Kind)
	return nil
}

// RequiredSigners returns the exact set of parties that must sign a transition of the passed kind.
// Create requires issuer and holder of the new license, Transfer requires issuer, old holder and
// new holder, Scrap requires issuer and holder of the consumed license.
func RequiredSigners(kind Kind, inputs, outputs []*states.License) (view.Identities, error) {
	if !kind.Valid() {
		return nil, shape(kind, "unknown command")
	}
	if v := checkShape(kind, inputs, outputs); v != nil {
		return nil, v
	}
	return requiredSigners(kind, inputs, outputs), nil
}

func requiredSigners(kind Kind, inputs, outputs []*states.License) view.Identities {
	switch kind {
	case Create:
		return view.Identities{outputs[0].Issuer, outputs[0].Holder}.Distinct()
	case Transfer:
		return view.Identities{inputs[0].Issuer, inputs[0].Holder, outputs[0].Holder}.Distinct()
	default:
		return view.Identities{inputs[0].Issuer, inputs[0].Holder}.Distinct()
	}
}

func checkShape(kind Kind, inputs, outputs []*states.License) *Violation {
	var in, out int
	switch kind {
	case Create:
		in, out = 0, 1
	case Transfer:
		in, out = 1, 1
	default:
		in, out = 1, 0
	}
	if len(inputs) != in {
		return shape(kind, "expected [%d] consumed licenses, got [%d]", in, len(inputs))
	}
	if len(outputs) != out {
		return shape(kind, "expected [%d] produced licenses, got [%d]", out, len(outputs))
	}
	for _, l := range append(append([]*states.License{}, inputs...), outputs...) {
		if l == nil {
			return shape(kind, "nil license")
		}
	}
	return nil
}

func checkContent(kind Kind, inputs, outputs []*states.License) *Violation {
	switch kind {
	case Create:
		return checkWellFormed(kind, outputs[0])
	case Transfer:
		in, out := inputs[0], outputs[0]
		if v := checkWellFormed(kind, out); v != nil {
			return v
		}
		if in.ID != out.ID {
			return content(kind, "license id changed from [%s] to [%s]", in.ID, out.ID)
		}
		if !in.Issuer.Equal(out.Issuer) {
			return content(kind, "issuer of [%s] changed", in.ID)
		}
		if in.Plate != out.Plate {
			return content(kind, "plate of [%s] changed from [%s] to [%s]", in.ID, in.Plate, out.Plate)
		}
		if in.Holder.Equal(out.Holder) {
			return content(kind, "license [%s] is already held by the new holder", in.ID)
		}
	}
	return nil
}

func checkWellFormed(kind Kind, l *states.License) *Violation {
	switch {
	case len(l.ID) == 0:
		return content(kind, "license without id")
	case l.Issuer.IsNone():
		return content(kind, "license [%s] without issuer", l.ID)
	case l.Holder.IsNone():
		return content(kind, "license [%s] without holder", l.ID)
	case l.Issuer.Equal(l.Holder):
		return content(kind, "the issuer of license [%s] cannot be its holder", l.ID)
	}
	return nil
}

func checkSigners(cmd Command, inputs, outputs []*states.License) *Violation {
	required := requiredSigners(cmd.Kind, inputs, outputs)
	if len(cmd.Signers.Distinct()) != len(cmd.Signers) {
		return signer(cmd.Kind, "duplicate signers")
	}
	if len(cmd.Signers) != len(required) {
		return signer(cmd.Kind, "expected [%d] signers, got [%d]", len(required), len(cmd.Signers))
	}
	if !cmd.Signers.SetEqual(required) {
		return signer(cmd.Kind, "signers do not match the required ones")
	}
	return nil
}
