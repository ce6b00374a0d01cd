/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"reflect"

	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
)

// GetIdentifier returns the fully qualified type name of the passed view, the empty string for nil
func GetIdentifier(f interface{}) string {
	if f == nil {
		return ""
	}
	return logging.Identifier(f).String()
}

// GetName returns the unqualified type name of the passed view
func GetName(f interface{}) string {
	if f == nil {
		return "<nil view>"
	}
	t := reflect.TypeOf(f)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
