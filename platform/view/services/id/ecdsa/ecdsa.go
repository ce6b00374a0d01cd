/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ecdsa

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

type dsaSigner struct {
	sk *ecdsa.PrivateKey
}

func (d *dsaSigner) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	return ecdsa.SignASN1(rand.Reader, d.sk, digest[:])
}

type dsaVerifier struct {
	pk *ecdsa.PublicKey
}

func (d *dsaVerifier) Verify(message, sigma []byte) error {
	digest := sha256.Sum256(message)
	if !ecdsa.VerifyASN1(d.pk, digest[:], sigma) {
		return errors.Errorf("signature not valid")
	}
	return nil
}

// NewSigner generates a fresh P-256 key pair.
// The returned identity is the PKIX encoding of the public key.
func NewSigner() (view.Identity, driver.Signer, driver.Verifier, error) {
	sk, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, nil, err
	}
	return newFromKey(sk)
}

// NewSignerFromPEM loads a PKCS8 PEM-encoded P-256 private key
func NewSignerFromPEM(raw []byte) (view.Identity, driver.Signer, driver.Verifier, error) {
	p, _ := pem.Decode(raw)
	if p == nil {
		return nil, nil, nil, errors.New("cannot pem decode secret key")
	}
	key, err := x509.ParsePKCS8PrivateKey(p.Bytes)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed unmarshalling secret key")
	}
	sk, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, nil, nil, errors.New("expected *ecdsa.PrivateKey")
	}
	return newFromKey(sk)
}

// MarshalSignerToPEM returns the PKCS8 PEM encoding of the secret key behind the passed signer
func MarshalSignerToPEM(signer driver.Signer) ([]byte, error) {
	s, ok := signer.(*dsaSigner)
	if !ok {
		return nil, errors.Errorf("expected an ecdsa signer, got [%T]", signer)
	}
	raw, err := x509.MarshalPKCS8PrivateKey(s.sk)
	if err != nil {
		return nil, errors.Wrap(err, "failed marshalling secret key")
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: raw}), nil
}

// NewIdentityFromBytes returns a verifier for the passed PKIX-encoded public key
func NewIdentityFromBytes(raw []byte) (view.Identity, driver.Verifier, error) {
	genericPublicKey, err := x509.ParsePKIXPublicKey(raw)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed parsing received public key")
	}
	publicKey, ok := genericPublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, nil, errors.New("expected *ecdsa.PublicKey")
	}

	return raw, &dsaVerifier{pk: publicKey}, nil
}

func newFromKey(sk *ecdsa.PrivateKey) (view.Identity, driver.Signer, driver.Verifier, error) {
	pkRaw, err := x509.MarshalPKIXPublicKey(sk.Public())
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed marshalling public key")
	}
	return pkRaw, &dsaSigner{sk: sk}, &dsaVerifier{pk: &sk.PublicKey}, nil
}
