/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transaction

import (
	"encoding/json"
	"testing"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/license/contract"
	"github.com/hyperledger-labs/license-ledger/platform/license/states"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/id/ecdsa"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/sig"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("not found")

type lookup map[string]*states.StateAndRef

func (l lookup) FindLive(id string) (*states.StateAndRef, error) {
	s, ok := l[id]
	if !ok {
		return nil, errors.Wrapf(errNotFound, "license [%s]", id)
	}
	return s, nil
}

type parties struct {
	sigs                      *sig.Service
	alice, bob, carol, notary view.Identity
}

func newParties(t *testing.T) *parties {
	p := &parties{sigs: sig.NewService(sig.ECDSADeserializer{})}
	for _, id := range []*view.Identity{&p.alice, &p.bob, &p.carol, &p.notary} {
		identity, signer, verifier, err := ecdsa.NewSigner()
		require.NoError(t, err)
		require.NoError(t, p.sigs.RegisterSigner(identity, signer, verifier))
		*id = identity
	}
	return p
}

func TestBuilderCreate(t *testing.T) {
	t.Parallel()
	p := newParties(t)

	tx, err := NewBuilder(p.bob, p.notary, lookup{}).Create("XYZ-999", p.alice)
	require.NoError(t, err)
	require.NoError(t, tx.CheckID())
	assert.Equal(t, contract.Create, tx.Kind())
	assert.Empty(t, tx.Consumed)
	require.Len(t, tx.Produced, 1)
	assert.Equal(t, "XYZ-999", tx.Produced[0].Plate)
	assert.True(t, tx.Produced[0].Issuer.Equal(p.alice))
	assert.True(t, tx.Produced[0].Holder.Equal(p.bob))
	assert.Equal(t, tx.Produced[0].ID, tx.LicenseID())
	assert.True(t, tx.Notary.Equal(p.notary))
	assert.Empty(t, tx.Signatures)
	assert.False(t, tx.IsFullySigned())
	require.NoError(t, contract.Verify(tx))

	required, err := tx.RequiredSigners()
	require.NoError(t, err)
	assert.True(t, required.SetEqual(view.Identities{p.alice, p.bob}))

	other, err := NewBuilder(p.bob, p.notary, lookup{}).Create("XYZ-999", p.alice)
	require.NoError(t, err)
	assert.NotEqual(t, tx.ID, other.ID)
	assert.NotEqual(t, tx.LicenseID(), other.LicenseID())
}

func TestBuilderAuthorization(t *testing.T) {
	t.Parallel()
	p := newParties(t)
	live := &states.StateAndRef{
		State: &states.License{ID: "lic1", Plate: "ABC-123", Issuer: p.alice, Holder: p.bob},
		Ref:   states.StateRef{TxID: "tx0"},
	}
	l := lookup{"lic1": live}

	_, err := NewBuilder(p.bob, p.notary, l).Transfer("lic1", p.carol)
	require.Error(t, err)
	assert.True(t, errors.HasCause(err, ErrNotAuthorized))

	_, err = NewBuilder(p.bob, p.notary, l).Scrap("lic1")
	assert.True(t, errors.HasCause(err, ErrNotAuthorized))

	_, err = NewBuilder(p.alice, p.notary, l).Transfer("missing", p.carol)
	assert.True(t, errors.HasCause(err, errNotFound))

	_, err = NewBuilder(p.alice, nil, l).Scrap("lic1")
	assert.Error(t, err)

	tx, err := NewBuilder(p.alice, p.notary, l).Transfer("lic1", p.carol)
	require.NoError(t, err)
	require.NoError(t, contract.Verify(tx))
	assert.Equal(t, live.Ref, tx.Consumed[0].Ref)
	assert.True(t, tx.Produced[0].Holder.Equal(p.carol))
	required, err := tx.RequiredSigners()
	require.NoError(t, err)
	assert.Len(t, required, 3)

	tx, err = NewBuilder(p.alice, p.notary, l).Scrap("lic1")
	require.NoError(t, err)
	require.NoError(t, contract.Verify(tx))
	assert.Empty(t, tx.Produced)
	assert.Equal(t, "lic1", tx.LicenseID())
}

func TestSignatures(t *testing.T) {
	t.Parallel()
	p := newParties(t)
	tx, err := NewBuilder(p.bob, p.notary, lookup{}).Create("ABC-123", p.alice)
	require.NoError(t, err)

	require.NoError(t, tx.Sign(p.bob, p.sigs))
	assert.Error(t, tx.Sign(p.bob, p.sigs), "a party signs once")
	assert.Error(t, tx.Sign(p.carol, p.sigs), "carol is not a required signer")
	assert.False(t, tx.IsFullySigned())

	require.NoError(t, tx.Sign(p.alice, p.sigs))
	assert.True(t, tx.IsFullySigned())
	assert.Equal(t, view.Identities{p.bob, p.alice}, tx.Signers())
	require.NoError(t, tx.VerifySignatures(p.sigs))

	assert.Error(t, tx.VerifyNotarySignature(p.sigs))
	sigma, err := p.sigs.Sign(p.notary, []byte(tx.ID))
	require.NoError(t, err)
	tx.Notarize(sigma)
	assert.True(t, tx.IsNotarized())
	require.NoError(t, tx.VerifyNotarySignature(p.sigs))

	tx.Signatures[1].Value = tx.Signatures[0].Value
	assert.Error(t, tx.VerifySignatures(p.sigs))
	assert.Error(t, tx.VerifyNotarySignature(p.sigs))
}

func TestSerialization(t *testing.T) {
	t.Parallel()
	p := newParties(t)
	live := &states.StateAndRef{
		State: &states.License{ID: "lic1", Plate: "ABC-123", Issuer: p.alice, Holder: p.bob},
		Ref:   states.StateRef{TxID: "tx0"},
	}
	tx, err := NewBuilder(p.alice, p.notary, lookup{"lic1": live}).Scrap("lic1")
	require.NoError(t, err)
	require.NoError(t, tx.Sign(p.alice, p.sigs))

	raw, err := tx.Bytes()
	require.NoError(t, err)
	decoded, err := FromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, decoded.ID)
	assert.Equal(t, tx.Signers(), decoded.Signers())
	assert.True(t, decoded.Consumed[0].State.Equal(live.State))

	// tampering with the content breaks the id
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	m["nonce"] = "another nonce"
	tampered, err := json.Marshal(m)
	require.NoError(t, err)
	_, err = FromBytes(tampered)
	assert.Error(t, err)

	_, err = FromBytes([]byte("{"))
	assert.Error(t, err)
}
