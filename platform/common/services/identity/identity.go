/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"sort"
)

// Identity wraps the byte representation of a lower level identity.
type Identity []byte

// Equal return true if the identities are the same
func (id Identity) Equal(id2 Identity) bool {
	return bytes.Equal(id, id2)
}

// UniqueID returns a unique identifier of this identity
func (id Identity) UniqueID() string {
	if len(id) == 0 {
		return "<empty>"
	}
	h := sha256.Sum256(id)
	return base64.StdEncoding.EncodeToString(h[:])
}

// String returns a string representation of this identity
func (id Identity) String() string {
	return id.UniqueID()
}

// Bytes returns the byte representation of this identity
func (id Identity) Bytes() []byte {
	return id
}

// IsNone returns true if this identity is empty
func (id Identity) IsNone() bool {
	return len(id) == 0
}

// Identities is a list of identities with set-like helpers
type Identities []Identity

// Count returns the number of identities in the list
func (i Identities) Count() int {
	return len(i)
}

func (i Identities) Filter(f func(identity Identity) bool) Identities {
	res := Identities{}
	for _, identity := range i {
		if f(identity) {
			res = append(res, identity)
		}
	}
	return res
}

// Others returns the identities different from the passed one
func (i Identities) Others(me Identity) Identities {
	return i.Filter(func(identity Identity) bool { return !identity.Equal(me) })
}

func (i Identities) Contain(id Identity) bool {
	for _, identity := range i {
		if identity.Equal(id) {
			return true
		}
	}
	return false
}

// Distinct returns the identities without repetitions, preserving the first occurrence order
func (i Identities) Distinct() Identities {
	res := Identities{}
	for _, identity := range i {
		if !res.Contain(identity) {
			res = append(res, identity)
		}
	}
	return res
}

// SetEqual returns true if both lists contain the same identities, ignoring order and repetitions.
func (i Identities) SetEqual(ids Identities) bool {
	a, b := i.Distinct(), ids.Distinct()
	if len(a) != len(b) {
		return false
	}
	for _, id := range a {
		if !b.Contain(id) {
			return false
		}
	}
	return true
}

// Sorted returns a copy of the distinct identities sorted by their byte representation
func (i Identities) Sorted() Identities {
	res := i.Distinct()
	sort.Slice(res, func(x, y int) bool { return bytes.Compare(res[x], res[y]) < 0 })
	return res
}
