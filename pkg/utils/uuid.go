/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import (
	"github.com/google/uuid"
)

func init() {
	uuid.EnableRandPool()
}

// GenerateUUID returns a random (version 4) UUID in its canonical string form.
// License ids, nonces, context and session ids are all drawn from here.
func GenerateUUID() string {
	return uuid.NewString()
}
