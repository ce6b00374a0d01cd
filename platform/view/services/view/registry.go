/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"reflect"
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

// ErrNoResponder is returned when no responder is bound to an initiator
var ErrNoResponder = errors.New("no responder found")

// Registry binds responder views to the identifiers of the views initiating them
type Registry struct {
	mutex      sync.RWMutex
	responders map[string]view.View
}

func NewRegistry() *Registry {
	return &Registry{responders: map[string]view.View{}}
}

// RegisterResponder binds responder to initiatedBy, which is either a view or a view identifier
func (r *Registry) RegisterResponder(responder view.View, initiatedBy interface{}) error {
	if responder == nil {
		return errors.New("responder cannot be nil")
	}
	id, err := initiatorID(initiatedBy)
	if err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.responders[id]; ok {
		return errors.Errorf("responder already registered for [%s]", id)
	}
	r.responders[id] = responder
	logger.Debugf("registered responder [%s] for [%s]", GetIdentifier(responder), id)
	return nil
}

// GetResponder returns the responder bound to initiatedBy
func (r *Registry) GetResponder(initiatedBy interface{}) (view.View, error) {
	id, err := initiatorID(initiatedBy)
	if err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	responder, ok := r.responders[id]
	if !ok {
		return nil, errors.Wrapf(ErrNoResponder, "for [%s]", id)
	}
	return responder, nil
}

func initiatorID(initiatedBy interface{}) (string, error) {
	switch t := initiatedBy.(type) {
	case view.View:
		return GetIdentifier(t), nil
	case string:
		if len(t) == 0 {
			return "", errors.New("empty initiator identifier")
		}
		return t, nil
	default:
		return "", errors.Errorf("initiatedBy must be a view or a string, got [%s]", reflect.TypeOf(initiatedBy))
	}
}
