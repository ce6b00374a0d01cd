/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import (
	"encoding/base64"
	"fmt"
	"reflect"
)

// Base64 logs lazily a byte array in base64 format
func Base64(b []byte) base64Enc {
	return b
}

type base64Enc []byte

func (b base64Enc) String() string {
	return base64.StdEncoding.EncodeToString(b)
}

// Identifier logs lazily the fully qualified type name of the passed object
func Identifier(f any) fmt.Stringer {
	return identifier{f: f}
}

type identifier struct {
	f any
}

func (i identifier) String() string {
	if i.f == nil {
		return "<nil view>"
	}
	t := reflect.TypeOf(i.f)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.PkgPath() + "/" + t.Name()
}
