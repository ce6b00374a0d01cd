/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"os"
	"strings"

	"github.com/hyperledger-labs/license-ledger/cmd/licensectl/demo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const CmdRoot = "licensectl"

// The main command describes the service and
// defaults to printing the help message.
var mainCmd = &cobra.Command{Use: "licensectl"}

func main() {
	// For environment variables.
	viper.SetEnvPrefix(CmdRoot)
	viper.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	mainCmd.AddCommand(demo.NewCmd())

	// On failure Cobra prints the usage message and error string, so we only
	// need to exit with a non-0 status
	if mainCmd.Execute() != nil {
		os.Exit(1)
	}
}
