/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tracker

import (
	"reflect"
	"sync"

	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/events"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("view-sdk.tracker")

const (
	RUNNING = iota
	DONE
	ERROR
)

type ViewStatus struct {
	Status     int
	LastReport string
	Err        error
}

type ViewTracker interface {
	Status() int

	Report(msg string)

	LatestReport() string

	Error(err error)

	Done(result interface{})

	ViewStatus() *ViewStatus
}

// Reportable is a message carrying the progress of a view run
type Reportable interface {
	RunID() string
	Step() string
	Failure() error
	Terminal() bool
}

type defaultTracker struct {
	lock       sync.RWMutex
	lastReport string
	err        error
	result     interface{}
	status     int
}

func NewTracker() *defaultTracker {
	return &defaultTracker{status: RUNNING}
}

func (d *defaultTracker) ViewStatus() *ViewStatus {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return &ViewStatus{
		Status:     d.status,
		LastReport: d.lastReport,
		Err:        d.err,
	}
}

func (d *defaultTracker) Status() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.status
}

func (d *defaultTracker) Report(msg string) {
	logger.Debugf("report [%s]", msg)
	d.lock.Lock()
	defer d.lock.Unlock()
	d.lastReport = msg
}

func (d *defaultTracker) LatestReport() string {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return d.lastReport
}

func (d *defaultTracker) Error(err error) {
	logger.Debugf("run failed: %s", err)
	d.lock.Lock()
	defer d.lock.Unlock()
	d.status = ERROR
	d.lastReport = err.Error()
	d.err = err
}

func (d *defaultTracker) Done(result interface{}) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.status = DONE
	d.result = result
}

// Manager keeps one tracker per run, fed by the events published on a topic
type Manager struct {
	lock     sync.RWMutex
	trackers map[string]*defaultTracker
}

func NewManager() *Manager {
	return &Manager{trackers: map[string]*defaultTracker{}}
}

// Follow subscribes the manager to the given topics
func (m *Manager) Follow(subscriber events.Subscriber, topics ...string) {
	for _, topic := range topics {
		subscriber.Subscribe(topic, m)
	}
}

func (m *Manager) OnReceive(event events.Event) {
	r, ok := event.Message().(Reportable)
	if !ok {
		logger.Debugf("ignoring event on topic [%s] of type [%T]", event.Topic(), event.Message())
		return
	}
	t := m.tracker(r.RunID(), true)
	if err := r.Failure(); err != nil {
		t.Error(err)
		return
	}
	t.Report(r.Step())
	if r.Terminal() {
		t.Done(r.Step())
	}
}

// Get returns the tracker of the given run, if any event has been received for it
func (m *Manager) Get(runID string) (ViewTracker, bool) {
	t := m.tracker(runID, false)
	if t == nil {
		return nil, false
	}
	return t, true
}

func (m *Manager) tracker(runID string, create bool) *defaultTracker {
	m.lock.RLock()
	t, ok := m.trackers[runID]
	m.lock.RUnlock()
	if ok || !create {
		return t
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if t, ok = m.trackers[runID]; ok {
		return t
	}
	t = NewTracker()
	m.trackers[runID] = t
	return t
}

func GetManager(sp view.ServiceProvider) (*Manager, error) {
	s, err := sp.GetService(reflect.TypeOf((*Manager)(nil)))
	if err != nil {
		return nil, err
	}
	return s.(*Manager), nil
}
