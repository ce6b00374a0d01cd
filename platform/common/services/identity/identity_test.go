/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentitiesSetEqual(t *testing.T) {
	alice, bob, carol := Identity("alice"), Identity("bob"), Identity("carol")

	tests := []struct {
		name     string
		a, b     Identities
		expected bool
	}{
		{name: "same order", a: Identities{alice, bob}, b: Identities{alice, bob}, expected: true},
		{name: "different order", a: Identities{alice, bob}, b: Identities{bob, alice}, expected: true},
		{name: "repetitions ignored", a: Identities{alice, bob, bob}, b: Identities{bob, alice}, expected: true},
		{name: "superset", a: Identities{alice, bob}, b: Identities{alice, bob, carol}, expected: false},
		{name: "subset", a: Identities{alice, bob, carol}, b: Identities{alice, bob}, expected: false},
		{name: "same size different members", a: Identities{alice, bob}, b: Identities{alice, carol}, expected: false},
		{name: "both empty", a: nil, b: Identities{}, expected: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.SetEqual(tt.b))
			assert.Equal(t, tt.expected, tt.b.SetEqual(tt.a))
		})
	}
}

func TestIdentitiesHelpers(t *testing.T) {
	alice, bob := Identity("alice"), Identity("bob")
	ids := Identities{bob, alice, bob}

	assert.Equal(t, Identities{bob, alice}, ids.Distinct())
	assert.Equal(t, Identities{alice, bob}, ids.Sorted())
	assert.Equal(t, Identities{alice}, ids.Others(bob))
	assert.True(t, ids.Contain(alice))
	assert.False(t, ids.Contain(Identity("carol")))
	assert.Equal(t, 3, ids.Count())
	assert.True(t, Identity(nil).IsNone())
	assert.Equal(t, "<empty>", Identity(nil).UniqueID())
}
