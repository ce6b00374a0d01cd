/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import "github.com/hyperledger-labs/license-ledger/platform/common/services/logging"

var logger = logging.MustGetLogger("license.config")
