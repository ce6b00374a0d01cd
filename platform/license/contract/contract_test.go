/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contract

import (
	"testing"

	"github.com/hyperledger-labs/license-ledger/platform/license/states"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = view.Identity("alice")
	bob   = view.Identity("bob")
	carol = view.Identity("carol")
	dave  = view.Identity("dave")
)

type ledgerTx struct {
	inputs   []*states.License
	outputs  []*states.License
	commands []Command
}

func (l *ledgerTx) Inputs() []*states.License  { return l.inputs }
func (l *ledgerTx) Outputs() []*states.License { return l.outputs }
func (l *ledgerTx) Commands() []Command        { return l.commands }

func issued() *states.License {
	return &states.License{ID: "lic1", Plate: "ABC-123", Issuer: alice, Holder: bob}
}

func cmd(kind Kind, signers ...view.Identity) []Command {
	return []Command{{Kind: kind, Signers: signers}}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	transferred := issued().ChangeHolder(carol)

	tests := []struct {
		name string
		tx   *ledgerTx
		kind ViolationKind
		ok   bool
	}{
		{
			name: "valid create",
			tx:   &ledgerTx{outputs: []*states.License{issued()}, commands: cmd(Create, bob, alice)},
			ok:   true,
		},
		{
			name: "valid transfer",
			tx:   &ledgerTx{inputs: []*states.License{issued()}, outputs: []*states.License{transferred}, commands: cmd(Transfer, alice, bob, carol)},
			ok:   true,
		},
		{
			name: "valid scrap",
			tx:   &ledgerTx{inputs: []*states.License{issued()}, commands: cmd(Scrap, alice, bob)},
			ok:   true,
		},
		{
			name: "no command",
			tx:   &ledgerTx{outputs: []*states.License{issued()}},
			kind: ShapeViolation,
		},
		{
			name: "two commands of the same kind",
			tx: &ledgerTx{
				outputs:  []*states.License{issued()},
				commands: append(cmd(Create, alice, bob), cmd(Create, alice, bob)...),
			},
			kind: ShapeViolation,
		},
		{
			name: "unknown command",
			tx:   &ledgerTx{outputs: []*states.License{issued()}, commands: cmd("mint", alice, bob)},
			kind: ShapeViolation,
		},
		{
			name: "create consuming a license",
			tx:   &ledgerTx{inputs: []*states.License{issued()}, outputs: []*states.License{issued()}, commands: cmd(Create, alice, bob)},
			kind: ShapeViolation,
		},
		{
			name: "create producing nothing",
			tx:   &ledgerTx{commands: cmd(Create, alice, bob)},
			kind: ShapeViolation,
		},
		{
			name: "transfer without output",
			tx:   &ledgerTx{inputs: []*states.License{issued()}, commands: cmd(Transfer, alice, bob, carol)},
			kind: ShapeViolation,
		},
		{
			name: "scrap producing a license",
			tx:   &ledgerTx{inputs: []*states.License{issued()}, outputs: []*states.License{transferred}, commands: cmd(Scrap, alice, bob)},
			kind: ShapeViolation,
		},
		{
			name: "shape is checked before signers",
			tx:   &ledgerTx{commands: cmd(Scrap)},
			kind: ShapeViolation,
		},
		{
			name: "create where issuer holds the license",
			tx: &ledgerTx{
				outputs:  []*states.License{{ID: "lic1", Plate: "ABC-123", Issuer: alice, Holder: alice}},
				commands: cmd(Create, alice),
			},
			kind: ContentViolation,
		},
		{
			name: "create without id",
			tx: &ledgerTx{
				outputs:  []*states.License{{Plate: "ABC-123", Issuer: alice, Holder: bob}},
				commands: cmd(Create, alice, bob),
			},
			kind: ContentViolation,
		},
		{
			name: "content is checked before signers",
			tx: &ledgerTx{
				outputs:  []*states.License{{ID: "lic1", Plate: "ABC-123", Issuer: alice, Holder: alice}},
				commands: cmd(Create, dave),
			},
			kind: ContentViolation,
		},
		{
			name: "transfer changing the id",
			tx: &ledgerTx{
				inputs:   []*states.License{issued()},
				outputs:  []*states.License{{ID: "lic2", Plate: "ABC-123", Issuer: alice, Holder: carol}},
				commands: cmd(Transfer, alice, bob, carol),
			},
			kind: ContentViolation,
		},
		{
			name: "transfer changing the issuer",
			tx: &ledgerTx{
				inputs:   []*states.License{issued()},
				outputs:  []*states.License{{ID: "lic1", Plate: "ABC-123", Issuer: dave, Holder: carol}},
				commands: cmd(Transfer, alice, bob, carol),
			},
			kind: ContentViolation,
		},
		{
			name: "transfer changing the plate",
			tx: &ledgerTx{
				inputs:   []*states.License{issued()},
				outputs:  []*states.License{{ID: "lic1", Plate: "XYZ-999", Issuer: alice, Holder: carol}},
				commands: cmd(Transfer, alice, bob, carol),
			},
			kind: ContentViolation,
		},
		{
			name: "transfer to the issuer",
			tx: &ledgerTx{
				inputs:   []*states.License{issued()},
				outputs:  []*states.License{issued().ChangeHolder(alice)},
				commands: cmd(Transfer, alice, bob),
			},
			kind: ContentViolation,
		},
		{
			name: "transfer to the current holder",
			tx: &ledgerTx{
				inputs:   []*states.License{issued()},
				outputs:  []*states.License{issued()},
				commands: cmd(Transfer, alice, bob),
			},
			kind: ContentViolation,
		},
		{
			name: "create with an extra signer",
			tx:   &ledgerTx{outputs: []*states.License{issued()}, commands: cmd(Create, alice, bob, carol)},
			kind: SignerViolation,
		},
		{
			name: "create missing the holder signature",
			tx:   &ledgerTx{outputs: []*states.License{issued()}, commands: cmd(Create, alice)},
			kind: SignerViolation,
		},
		{
			name: "create with the right size but wrong members",
			tx:   &ledgerTx{outputs: []*states.License{issued()}, commands: cmd(Create, alice, carol)},
			kind: SignerViolation,
		},
		{
			name: "create with a duplicated signer",
			tx:   &ledgerTx{outputs: []*states.License{issued()}, commands: cmd(Create, alice, bob, bob)},
			kind: SignerViolation,
		},
		{
			name: "transfer missing the new holder",
			tx:   &ledgerTx{inputs: []*states.License{issued()}, outputs: []*states.License{transferred}, commands: cmd(Transfer, alice, bob)},
			kind: SignerViolation,
		},
		{
			name: "transfer missing the old holder",
			tx:   &ledgerTx{inputs: []*states.License{issued()}, outputs: []*states.License{transferred}, commands: cmd(Transfer, alice, carol, dave)},
			kind: SignerViolation,
		},
		{
			name: "scrap signed by the issuer only",
			tx:   &ledgerTx{inputs: []*states.License{issued()}, commands: cmd(Scrap, alice)},
			kind: SignerViolation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Verify(tt.tx)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			v, ok := IsViolation(err)
			require.True(t, ok, "expected a violation, got [%v]", err)
			assert.Equal(t, tt.kind, v.Kind, v.Error())
			assert.True(t, HasViolationKind(err, tt.kind))
		})
	}
}

func TestVerifyIsDeterministic(t *testing.T) {
	t.Parallel()
	tx := &ledgerTx{outputs: []*states.License{issued()}, commands: cmd(Create, alice, bob, carol)}
	first := Verify(tx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Verify(tx))
	}
}

func TestRequiredSigners(t *testing.T) {
	t.Parallel()
	signers, err := RequiredSigners(Create, nil, []*states.License{issued()})
	require.NoError(t, err)
	assert.True(t, signers.SetEqual(view.Identities{alice, bob}))

	signers, err = RequiredSigners(Transfer, []*states.License{issued()}, []*states.License{issued().ChangeHolder(carol)})
	require.NoError(t, err)
	assert.Len(t, signers, 3)
	assert.True(t, signers.SetEqual(view.Identities{alice, bob, carol}))

	signers, err = RequiredSigners(Scrap, []*states.License{issued()}, nil)
	require.NoError(t, err)
	assert.True(t, signers.SetEqual(view.Identities{alice, bob}))

	_, err = RequiredSigners(Scrap, nil, nil)
	assert.True(t, HasViolationKind(err, ShapeViolation))
	_, err = RequiredSigners("mint", nil, nil)
	assert.True(t, HasViolationKind(err, ShapeViolation))
}

func TestViolationError(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "SignerViolation [create]: duplicate signers", signer(Create, "duplicate signers").Error())
	assert.Equal(t, "ShapeViolation: no command", shape("", "no command").Error())
	assert.Equal(t, "ViolationKind(7)", ViolationKind(7).String())
	assert.Equal(t, []Kind{Create, Transfer, Scrap}, Kinds)
}
