/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracker

import (
	"testing"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/events/simple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	run      string
	step     string
	err      error
	terminal bool
}

func (r *report) RunID() string  { return r.run }
func (r *report) Step() string   { return r.step }
func (r *report) Failure() error { return r.err }
func (r *report) Terminal() bool { return r.terminal }
func (r *report) Topic() string  { return "progress" }
func (r *report) Message() any   { return r }

func TestManagerFollowsRuns(t *testing.T) {
	bus := simple.NewEventBus()
	m := NewManager()
	m.Follow(bus, "progress")

	_, ok := m.Get("run1")
	assert.False(t, ok)

	bus.Publish(&report{run: "run1", step: "BUILT"})
	bus.Publish(&report{run: "run2", step: "BUILT"})
	bus.Publish(&report{run: "run1", step: "SELF_SIGNED"})

	tr, ok := m.Get("run1")
	require.True(t, ok)
	assert.Equal(t, RUNNING, tr.Status())
	assert.Equal(t, "SELF_SIGNED", tr.LatestReport())

	bus.Publish(&report{run: "run1", step: "FINALIZED", terminal: true})
	assert.Equal(t, DONE, tr.Status())

	bus.Publish(&report{run: "run2", err: errors.New("conflict")})
	tr2, ok := m.Get("run2")
	require.True(t, ok)
	status := tr2.ViewStatus()
	assert.Equal(t, ERROR, status.Status)
	assert.Equal(t, "conflict", status.LastReport)
	assert.EqualError(t, status.Err, "conflict")
}
