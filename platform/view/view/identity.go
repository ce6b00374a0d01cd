/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package view

import (
	"github.com/hyperledger-labs/license-ledger/platform/common/services/identity"
)

// Identity and Identities are re-exported so that views depend on this package only
type (
	Identity   = identity.Identity
	Identities = identity.Identities
)
