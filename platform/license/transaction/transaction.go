/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transaction

import (
	"encoding/json"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/license/contract"
	"github.com/hyperledger-labs/license-ledger/platform/license/states"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/hash"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("license.transaction")

// SignerProvider returns the signer bound to a local identity
type SignerProvider interface {
	GetSigner(identity view.Identity) (driver.Signer, error)
}

// VerifierProvider returns the verifier bound to an identity
type VerifierProvider interface {
	GetVerifier(identity view.Identity) (driver.Verifier, error)
}

// Signature is the endorsement of a party over the transaction id
type Signature struct {
	Signer view.Identity `json:"signer"`
	Value  []byte        `json:"value"`
}

// Transaction moves licenses from consumed to produced under exactly one command.
// The id is the digest of everything but the signatures, so signatures over the id cover the whole content.
type Transaction struct {
	ID       string                `json:"id"`
	Nonce    string                `json:"nonce"`
	Notary   view.Identity         `json:"notary"`
	Consumed []*states.StateAndRef `json:"consumed,omitempty"`
	Produced []*states.License     `json:"produced,omitempty"`
	Cmds     []contract.Command    `json:"commands"`

	Signatures      []Signature `json:"signatures,omitempty"`
	NotarySignature []byte      `json:"notarySignature,omitempty"`
}

type body struct {
	Nonce    string                `json:"nonce"`
	Notary   view.Identity         `json:"notary"`
	Consumed []*states.StateAndRef `json:"consumed"`
	Produced []*states.License     `json:"produced"`
	Cmds     []contract.Command    `json:"commands"`
}

// FromBytes unmarshals a transaction and checks that its id matches its content
func FromBytes(raw []byte) (*Transaction, error) {
	tx := &Transaction{}
	if err := json.Unmarshal(raw, tx); err != nil {
		return nil, errors.Wrapf(err, "failed unmarshalling transaction [%s]", hash.Hashable(raw))
	}
	if err := tx.CheckID(); err != nil {
		return nil, err
	}
	return tx, nil
}

func (t *Transaction) Bytes() ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, errors.Wrapf(err, "failed marshalling transaction [%s]", t.ID)
	}
	return raw, nil
}

func (t *Transaction) computeID() (string, error) {
	b := &body{Nonce: t.Nonce, Notary: t.Notary, Cmds: t.Cmds}
	// empty and nil lists must hash the same, they are indistinguishable once unmarshalled
	if len(t.Consumed) != 0 {
		b.Consumed = t.Consumed
	}
	if len(t.Produced) != 0 {
		b.Produced = t.Produced
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return "", errors.Wrap(err, "failed marshalling transaction body")
	}
	return hash.SHA256Hex(raw), nil
}

func (t *Transaction) setID() error {
	id, err := t.computeID()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// CheckID returns an error if the id does not match the content
func (t *Transaction) CheckID() error {
	id, err := t.computeID()
	if err != nil {
		return err
	}
	if id != t.ID {
		return errors.Errorf("transaction id [%s] does not match its content [%s]", t.ID, id)
	}
	return nil
}

func (t *Transaction) Inputs() []*states.License {
	res := make([]*states.License, len(t.Consumed))
	for i, c := range t.Consumed {
		if c != nil {
			res[i] = c.State
		}
	}
	return res
}

func (t *Transaction) Outputs() []*states.License {
	return t.Produced
}

func (t *Transaction) Commands() []contract.Command {
	return t.Cmds
}

// Kind returns the kind of the first command, empty if there is none
func (t *Transaction) Kind() contract.Kind {
	if len(t.Cmds) == 0 {
		return ""
	}
	return t.Cmds[0].Kind
}

// LicenseID returns the id of the license this transaction is about
func (t *Transaction) LicenseID() string {
	for _, l := range append(t.Outputs(), t.Inputs()...) {
		if l != nil {
			return l.ID
		}
	}
	return ""
}

// OutputRef returns the reference of the i-th produced license
func (t *Transaction) OutputRef(i int) states.StateRef {
	return states.StateRef{TxID: t.ID, Index: i}
}

// RequiredSigners derives the parties that must sign from the command and the licenses
func (t *Transaction) RequiredSigners() (view.Identities, error) {
	if len(t.Cmds) != 1 {
		return nil, errors.Errorf("expected exactly one command, got [%d]", len(t.Cmds))
	}
	return contract.RequiredSigners(t.Cmds[0].Kind, t.Inputs(), t.Outputs())
}

// Signers returns the parties that signed so far, in signing order
func (t *Transaction) Signers() view.Identities {
	res := make(view.Identities, len(t.Signatures))
	for i, s := range t.Signatures {
		res[i] = s.Signer
	}
	return res
}

// HasSigned returns true if the passed party signed the transaction
func (t *Transaction) HasSigned(party view.Identity) bool {
	return t.Signers().Contain(party)
}

// Sign signs the transaction id as party
func (t *Transaction) Sign(party view.Identity, sp SignerProvider) error {
	signer, err := sp.GetSigner(party)
	if err != nil {
		return errors.WithMessagef(err, "cannot sign transaction [%s]", t.ID)
	}
	sigma, err := signer.Sign([]byte(t.ID))
	if err != nil {
		return errors.Wrapf(err, "failed signing transaction [%s]", t.ID)
	}
	return t.AppendSignature(party, sigma)
}

// AppendSignature adds the signature of a required signer. Signatures can only be added, once per signer.
func (t *Transaction) AppendSignature(party view.Identity, sigma []byte) error {
	required, err := t.RequiredSigners()
	if err != nil {
		return err
	}
	if !required.Contain(party) {
		return errors.Errorf("[%s] is not a required signer of [%s]", party, t.ID)
	}
	if t.HasSigned(party) {
		return errors.Errorf("[%s] already signed [%s]", party, t.ID)
	}
	t.Signatures = append(t.Signatures, Signature{Signer: party, Value: sigma})
	return nil
}

// IsFullySigned returns true if the signers are exactly the required ones
func (t *Transaction) IsFullySigned() bool {
	required, err := t.RequiredSigners()
	if err != nil {
		return false
	}
	signers := t.Signers()
	return len(signers) == len(required) && signers.SetEqual(required)
}

// VerifySignatures checks every signature collected so far
func (t *Transaction) VerifySignatures(vp VerifierProvider) error {
	for _, s := range t.Signatures {
		if err := verify(vp, s.Signer, []byte(t.ID), s.Value); err != nil {
			return errors.WithMessagef(err, "invalid signature of [%s] on [%s]", s.Signer, t.ID)
		}
	}
	return nil
}

// Notarize attaches the notary signature
func (t *Transaction) Notarize(sigma []byte) {
	t.NotarySignature = sigma
}

func (t *Transaction) IsNotarized() bool {
	return len(t.NotarySignature) != 0
}

// VerifyNotarySignature checks the notary signature and the signatures of the parties
func (t *Transaction) VerifyNotarySignature(vp VerifierProvider) error {
	if !t.IsNotarized() {
		return errors.Errorf("transaction [%s] is not notarized", t.ID)
	}
	if err := verify(vp, t.Notary, []byte(t.ID), t.NotarySignature); err != nil {
		return errors.WithMessagef(err, "invalid notary signature on [%s]", t.ID)
	}
	if !t.IsFullySigned() {
		return errors.Errorf("transaction [%s] is not fully signed", t.ID)
	}
	return t.VerifySignatures(vp)
}

func verify(vp VerifierProvider, party view.Identity, msg, sigma []byte) error {
	v, err := vp.GetVerifier(party)
	if err != nil {
		return err
	}
	return v.Verify(msg, sigma)
}
