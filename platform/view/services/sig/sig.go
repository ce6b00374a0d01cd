/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package sig

import (
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/id/ecdsa"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	"go.uber.org/zap/zapcore"
)

var logger = logging.MustGetLogger("view-sdk.sig")

// Deserializer turns a serialized identity into a verifier
type Deserializer interface {
	DeserializeVerifier(raw []byte) (driver.Verifier, error)
}

// ECDSADeserializer deserializes PKIX-encoded ecdsa public keys
type ECDSADeserializer struct{}

func (ECDSADeserializer) DeserializeVerifier(raw []byte) (driver.Verifier, error) {
	_, v, err := ecdsa.NewIdentityFromBytes(raw)
	return v, err
}

// Service is a repository of signers for local identities and verifiers for any identity
type Service struct {
	deserializer Deserializer

	mutex     sync.RWMutex
	signers   map[string]driver.Signer
	verifiers map[string]driver.Verifier
}

func NewService(deserializer Deserializer) *Service {
	return &Service{
		deserializer: deserializer,
		signers:      map[string]driver.Signer{},
		verifiers:    map[string]driver.Verifier{},
	}
}

func (o *Service) RegisterSigner(identity view.Identity, signer driver.Signer, verifier driver.Verifier) error {
	if signer == nil {
		return errors.New("invalid signer, expected a valid instance")
	}
	idHash := identity.UniqueID()

	o.mutex.Lock()
	if _, ok := o.signers[idHash]; ok {
		o.mutex.Unlock()
		logger.Debugf("another signer bound to [%s]", identity)
		return nil
	}
	o.signers[idHash] = signer
	o.mutex.Unlock()

	if verifier != nil {
		return o.RegisterVerifier(identity, verifier)
	}
	return nil
}

func (o *Service) RegisterVerifier(identity view.Identity, verifier driver.Verifier) error {
	if verifier == nil {
		return errors.New("invalid verifier, expected a valid instance")
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.verifiers[identity.UniqueID()] = verifier
	if logger.IsEnabledFor(zapcore.DebugLevel) {
		logger.Debugf("verifier for [%s] registered", identity)
	}
	return nil
}

func (o *Service) GetSigner(identity view.Identity) (driver.Signer, error) {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	signer, ok := o.signers[identity.UniqueID()]
	if !ok {
		return nil, errors.Errorf("signer not found for [%s]", identity)
	}
	return signer, nil
}

// GetVerifier returns the verifier bound to the passed identity.
// Unknown identities are deserialized and the resulting verifier is cached.
func (o *Service) GetVerifier(identity view.Identity) (driver.Verifier, error) {
	if identity.IsNone() {
		return nil, errors.New("cannot get a verifier for an empty identity")
	}
	o.mutex.RLock()
	verifier, ok := o.verifiers[identity.UniqueID()]
	o.mutex.RUnlock()
	if ok {
		return verifier, nil
	}
	if o.deserializer == nil {
		return nil, errors.Errorf("verifier not found for [%s]", identity)
	}
	verifier, err := o.deserializer.DeserializeVerifier(identity)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed deserializing verifier for [%s]", identity)
	}
	if err := o.RegisterVerifier(identity, verifier); err != nil {
		return nil, err
	}
	return verifier, nil
}

func (o *Service) IsMe(identity view.Identity) bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	_, ok := o.signers[identity.UniqueID()]
	return ok
}

// Sign signs the message with the signer bound to the passed identity
func (o *Service) Sign(identity view.Identity, message []byte) ([]byte, error) {
	signer, err := o.GetSigner(identity)
	if err != nil {
		return nil, err
	}
	return signer.Sign(message)
}

// Verify checks that sigma is a signature of the passed identity over message
func (o *Service) Verify(identity view.Identity, message, sigma []byte) error {
	verifier, err := o.GetVerifier(identity)
	if err != nil {
		return err
	}
	return verifier.Verify(message, sigma)
}
