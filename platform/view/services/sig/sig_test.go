/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sig

import (
	"testing"

	"github.com/hyperledger-labs/license-ledger/platform/view/services/id/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	me, signer, verifier, err := ecdsa.NewSigner()
	require.NoError(t, err)
	other, otherSigner, _, err := ecdsa.NewSigner()
	require.NoError(t, err)

	s := NewService(ECDSADeserializer{})
	require.NoError(t, s.RegisterSigner(me, signer, verifier))
	assert.True(t, s.IsMe(me))
	assert.False(t, s.IsMe(other))

	sigma, err := s.Sign(me, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, s.Verify(me, []byte("payload"), sigma))

	// remote identities are verified by deserialization
	otherSigma, err := otherSigner.Sign([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, s.Verify(other, []byte("payload"), otherSigma))
	assert.Error(t, s.Verify(other, []byte("payload"), sigma))

	_, err = s.Sign(other, []byte("payload"))
	assert.Error(t, err)
	_, err = s.GetVerifier(nil)
	assert.Error(t, err)
}
