/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package contract

import (
	"fmt"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
)

type ViolationKind int

const (
	// ShapeViolation reports wrong input or output counts, or a bad command list
	ShapeViolation ViolationKind = iota
	// ContentViolation reports a broken field invariant
	ContentViolation
	// SignerViolation reports a signer set different from the required one
	SignerViolation
)

func (k ViolationKind) String() string {
	switch k {
	case ShapeViolation:
		return "ShapeViolation"
	case ContentViolation:
		return "ContentViolation"
	case SignerViolation:
		return "SignerViolation"
	default:
		return fmt.Sprintf("ViolationKind(%d)", int(k))
	}
}

// Violation is returned by Verify when a transaction breaks a rule of its command
type Violation struct {
	Kind    ViolationKind
	Command Kind
	Reason  string
}

func (v *Violation) Error() string {
	if len(v.Command) == 0 {
		return fmt.Sprintf("%s: %s", v.Kind, v.Reason)
	}
	return fmt.Sprintf("%s [%s]: %s", v.Kind, v.Command, v.Reason)
}

// IsViolation returns the violation carried by err, if any
func IsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// HasViolationKind returns true if err carries a violation of the passed kind
func HasViolationKind(err error, kind ViolationKind) bool {
	v, ok := IsViolation(err)
	return ok && v.Kind == kind
}

func shape(cmd Kind, format string, args ...interface{}) *Violation {
	return &Violation{Kind: ShapeViolation, Command: cmd, Reason: fmt.Sprintf(format, args...)}
}

func content(cmd Kind, format string, args ...interface{}) *Violation {
	return &Violation{Kind: ContentViolation, Command: cmd, Reason: fmt.Sprintf(format, args...)}
}

func signer(cmd Kind, format string, args ...interface{}) *Violation {
	return &Violation{Kind: SignerViolation, Command: cmd, Reason: fmt.Sprintf(format, args...)}
}
