/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package hash

import (
	"encoding/base64"
)

// Hashable logs lazily the digest of a byte array
type Hashable []byte

func (id Hashable) String() string {
	if len(id) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(SHA256(id))
}
