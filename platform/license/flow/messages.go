/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flow

// Proposal asks a counterparty to sign a transaction
type Proposal struct {
	Tx []byte `json:"tx"`
}

// SignatureResponse is the answer to a Proposal
type SignatureResponse struct {
	Signature []byte `json:"signature,omitempty"`
	Declined  bool   `json:"declined,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Final carries the notarized transaction, or the news that the run was aborted
type Final struct {
	Tx      []byte `json:"tx,omitempty"`
	Aborted bool   `json:"aborted,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Ack confirms that a participant recorded a notarized transaction
type Ack struct {
	TxID string `json:"txID"`
}
