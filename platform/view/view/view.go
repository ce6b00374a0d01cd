/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

// View is a step of a protocol. It runs inside a Context, which gives access
// to the local services and to the sessions with the other parties.
type View interface {
	Call(context Context) (interface{}, error)
}
