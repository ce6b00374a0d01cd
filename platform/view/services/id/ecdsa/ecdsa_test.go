/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ecdsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	id, signer, verifier, err := NewSigner()
	require.NoError(t, err)

	sigma, err := signer.Sign([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, verifier.Verify([]byte("hello"), sigma))
	assert.Error(t, verifier.Verify([]byte("hellO"), sigma))

	// the identity alone is enough to verify
	id2, verifier2, err := NewIdentityFromBytes(id)
	require.NoError(t, err)
	assert.True(t, id.Equal(id2))
	require.NoError(t, verifier2.Verify([]byte("hello"), sigma))
}

func TestPEMRoundTrip(t *testing.T) {
	id, signer, _, err := NewSigner()
	require.NoError(t, err)

	raw, err := MarshalSignerToPEM(signer)
	require.NoError(t, err)

	id2, signer2, verifier2, err := NewSignerFromPEM(raw)
	require.NoError(t, err)
	assert.True(t, id.Equal(id2))

	sigma, err := signer2.Sign([]byte("msg"))
	require.NoError(t, err)
	assert.NoError(t, verifier2.Verify([]byte("msg"), sigma))
}

func TestInvalidInputs(t *testing.T) {
	_, _, _, err := NewSignerFromPEM([]byte("invalid PEM"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot pem decode")

	_, _, err = NewIdentityFromBytes([]byte("alice"))
	assert.Error(t, err)
}
