/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"reflect"
	"strings"
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"go.uber.org/zap/zapcore"
)

var (
	ServiceNotFound = errors.New("service not found")
	logger          = logging.MustGetLogger("view-sdk.registry")
)

// ServiceProvider is a registry of services looked up by type.
// Interface types match the first registered service implementing them,
// concrete types match services of that type or pointers to it.
type ServiceProvider struct {
	services   []interface{}
	serviceMap map[reflect.Type]interface{}
	lock       sync.Mutex
}

func New() *ServiceProvider {
	return &ServiceProvider{
		services:   []interface{}{},
		serviceMap: map[reflect.Type]interface{}{},
	}
}

func (sp *ServiceProvider) GetService(v interface{}) (interface{}, error) {
	sp.lock.Lock()
	defer sp.lock.Unlock()

	var typ reflect.Type
	switch t := v.(type) {
	case reflect.Type:
		typ = t
	default:
		typ = reflect.TypeOf(v)
	}
	if typ == nil {
		return nil, errors.New("cannot look up a nil type")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	if service, ok := sp.serviceMap[typ]; ok {
		return service, nil
	}
	for _, s := range sp.services {
		st := reflect.TypeOf(s)
		switch {
		case typ.Kind() == reflect.Interface && st.Implements(typ):
		case st == typ:
		case st.Kind() == reflect.Ptr && st.Elem() == typ:
		default:
			continue
		}
		sp.serviceMap[typ] = s
		return s, nil
	}
	if logger.IsEnabledFor(zapcore.DebugLevel) {
		logger.Debugf("service [%s/%s] not found in [%s]", typ.PkgPath(), typ.Name(), sp.String())
	}
	return nil, errors.Wrapf(ServiceNotFound, "service [%s/%s]", typ.PkgPath(), typ.Name())
}

func (sp *ServiceProvider) RegisterService(service interface{}) error {
	if service == nil {
		return errors.New("cannot register a nil service")
	}
	sp.lock.Lock()
	defer sp.lock.Unlock()

	if logger.IsEnabledFor(zapcore.DebugLevel) {
		logger.Debugf("Register Service [%s]", logging.Identifier(service))
	}
	sp.services = append(sp.services, service)
	return nil
}

func (sp *ServiceProvider) String() string {
	ids := make([]string, 0, len(sp.services))
	for _, service := range sp.services {
		ids = append(ids, logging.Identifier(service).String())
	}
	return "services [" + strings.Join(ids, ", ") + "]"
}
