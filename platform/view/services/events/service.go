/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"reflect"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var eventSystemType = reflect.TypeOf((*EventSystem)(nil))

func getService(sp view.ServiceProvider) (EventSystem, error) {
	s, err := sp.GetService(eventSystemType)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get event system from registry")
	}
	return s.(EventSystem), nil
}

func GetSubscriber(sp view.ServiceProvider) (Subscriber, error) {
	s, err := getService(sp)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get subscriber")
	}
	return s, nil
}

func GetPublisher(sp view.ServiceProvider) (Publisher, error) {
	s, err := getService(sp)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get publisher")
	}
	return s, nil
}
