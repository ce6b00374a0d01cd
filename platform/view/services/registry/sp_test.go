/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"reflect"
	"testing"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet() string
}

type english struct{}

func (english) Greet() string { return "hello" }

type counter struct{ n int }

func TestGetService(t *testing.T) {
	sp := New()
	c := &counter{n: 3}
	require.NoError(t, sp.RegisterService(c))
	require.NoError(t, sp.RegisterService(english{}))

	s, err := sp.GetService(&counter{})
	require.NoError(t, err)
	assert.Same(t, c, s)

	s, err = sp.GetService(reflect.TypeOf((*greeter)(nil)))
	require.NoError(t, err)
	assert.Equal(t, "hello", s.(greeter).Greet())

	_, err = sp.GetService(reflect.TypeOf((*assert.TestingT)(nil)))
	assert.True(t, errors.HasCause(err, ServiceNotFound))

	assert.Error(t, sp.RegisterService(nil))
}
