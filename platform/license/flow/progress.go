/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package flow

import (
	"github.com/hyperledger-labs/license-ledger/platform/license/contract"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/events"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProgressTopic is the topic progress events are published on
const ProgressTopic = "license.progress"

// State is a step of the commit protocol as seen by the proposer
type State string

const (
	Built                State = "BUILT"
	LocallyVerified      State = "LOCALLY_VERIFIED"
	SelfSigned           State = "SELF_SIGNED"
	CollectingSignatures State = "COLLECTING_SIGNATURES"
	Notarizing           State = "NOTARIZING"
	Finalized            State = "FINALIZED"
	Aborted              State = "ABORTED"
)

var descriptions = map[State]string{
	Built:                "Generating transaction based on new car license.",
	LocallyVerified:      "Verifying contract constraints.",
	SelfSigned:           "Signing transaction with our private key.",
	CollectingSignatures: "Gathering the counterparty's signature.",
	Notarizing:           "Obtaining notary signature and recording transaction.",
	Finalized:            "Transaction recorded by every participant.",
	Aborted:              "Run aborted.",
}

func (s State) Description() string {
	return descriptions[s]
}

// Terminal returns true for FINALIZED and ABORTED
func (s State) Terminal() bool {
	return s == Finalized || s == Aborted
}

// ProgressEvent reports a transition of a run. It never feeds back into the protocol.
// Runs are tracked by the id of the transaction they commit.
type ProgressEvent struct {
	Context string
	TxID    string
	Command contract.Kind
	State   State
	Err     error
}

func (e *ProgressEvent) Topic() string        { return ProgressTopic }
func (e *ProgressEvent) Message() interface{} { return e }
func (e *ProgressEvent) RunID() string        { return e.TxID }
func (e *ProgressEvent) Step() string         { return string(e.State) }
func (e *ProgressEvent) Failure() error       { return e.Err }
func (e *ProgressEvent) Terminal() bool       { return e.State.Terminal() }

type progress struct {
	contextID string
	txID      string
	command   contract.Kind
	publisher events.Publisher
	span      trace.Span
	state     State
}

func newProgress(context view.Context, txID string, command contract.Kind) *progress {
	p := &progress{
		contextID: context.ID(),
		txID:      txID,
		command:   command,
		span:      trace.SpanFromContext(context.Context()),
	}
	publisher, err := events.GetPublisher(context)
	if err != nil {
		logger.Debugf("progress of [%s] not published: %s", txID, err)
	} else {
		p.publisher = publisher
	}
	return p
}

func (p *progress) report(state State) {
	p.state = state
	p.emit(&ProgressEvent{Context: p.contextID, TxID: p.txID, Command: p.command, State: state})
}

func (p *progress) fail(state State, err error) {
	p.state = state
	p.emit(&ProgressEvent{Context: p.contextID, TxID: p.txID, Command: p.command, State: state, Err: err})
}

func (p *progress) emit(e *ProgressEvent) {
	logger.Debugf("[%s] tx [%s]: %s", e.Context, e.TxID, e.State.Description())
	p.span.AddEvent(string(e.State), trace.WithAttributes(attribute.String("tx_id", e.TxID)))
	if p.publisher != nil {
		p.publisher.Publish(e)
	}
}
