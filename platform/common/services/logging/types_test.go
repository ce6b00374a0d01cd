/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type dummy struct{}

func TestIdentifier(t *testing.T) {
	expected := "github.com/hyperledger-labs/license-ledger/platform/common/services/logging/dummy"
	assert.Equal(t, expected, Identifier(dummy{}).String())
	assert.Equal(t, expected, Identifier(&dummy{}).String())
	assert.Equal(t, "<nil view>", Identifier(nil).String())
}

func TestBase64(t *testing.T) {
	assert.Equal(t, "YWJj", Base64([]byte("abc")).String())
}

func TestTestLoggerRecords(t *testing.T) {
	l, recorder := NewTestLogger(t, Named("license"))
	l.Infof("hello [%s]", "world")
	assert.Contains(t, recorder.Messages(), "hello [world]")
}
