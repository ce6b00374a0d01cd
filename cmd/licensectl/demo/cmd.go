/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package demo

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"time"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/license/sdk"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/config"
	"github.com/spf13/cobra"
)

//go:embed sample/*.yaml
var sample embed.FS

var (
	// Function used to redirect output to
	outWriter io.Writer = os.Stdout

	configDir string
	plate     string
	issuer    string
	holder    string
	newHolder string
	logSpec   string
	timeout   time.Duration
	skipScrap bool
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a license through its lifecycle.",
		Long: `Start an in-process network, issue a license, transfer it and scrap it.
Each party is configured by a yaml file in the config directory, notaries are started first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(logging.Config{LogSpec: logSpec})
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return run(ctx)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&configDir, "configDir", "c", "", "Directory with one yaml configuration per party, the embedded sample if empty")
	flags.StringVarP(&plate, "plate", "p", "ABC-123", "Plate of the license")
	flags.StringVar(&issuer, "issuer", "alice", "Label of the issuing authority")
	flags.StringVar(&holder, "holder", "bob", "Label of the first holder")
	flags.StringVar(&newHolder, "newHolder", "carol", "Label of the holder after the transfer")
	flags.StringVar(&logSpec, "logging-spec", "error", "Logging spec")
	flags.DurationVarP(&timeout, "timeout", "t", time.Minute, "Timeout of the whole demo")
	flags.BoolVar(&skipScrap, "skipScrap", false, "Leave the license live")
	return cmd
}

func run(ctx context.Context) error {
	n, err := newNetwork()
	if err != nil {
		return err
	}
	defer n.Close()

	parties, err := lookup(n, issuer, holder, newHolder)
	if err != nil {
		return err
	}
	a, h, nh := parties[0], parties[1], parties[2]

	tx, err := h.Service.Issue(ctx, plate, a.Identity)
	if err != nil {
		return errors.WithMessagef(err, "failed issuing [%s]", plate)
	}
	id := tx.LicenseID()
	fmt.Fprintf(outWriter, "issued license [%s] with plate [%s] to [%s] in [%s]\n", id, plate, h.Label, tx.ID)

	tx, err = a.Service.Transfer(ctx, id, nh.Identity)
	if err != nil {
		return errors.WithMessagef(err, "failed transferring [%s]", id)
	}
	fmt.Fprintf(outWriter, "transferred license [%s] to [%s] in [%s]\n", id, nh.Label, tx.ID)

	if !skipScrap {
		tx, err = a.Service.Scrap(ctx, id)
		if err != nil {
			return errors.WithMessagef(err, "failed scrapping [%s]", id)
		}
		fmt.Fprintf(outWriter, "scrapped license [%s] in [%s]\n", id, tx.ID)
	}

	history, err := a.Service.History(id)
	if err != nil {
		return err
	}
	for _, v := range history {
		fmt.Fprintf(outWriter, "  #%d %s at %s\n", v.Seq, v.State, v.Ref)
	}
	return nil
}

func lookup(n *sdk.Network, labels ...string) ([]*sdk.Party, error) {
	res := make([]*sdk.Party, len(labels))
	for i, label := range labels {
		if res[i] = n.Party(label); res[i] == nil {
			return nil, errors.Errorf("party [%s] not found", label)
		}
	}
	return res, nil
}

// newNetwork starts a party for each configuration, notaries first
func newNetwork() (*sdk.Network, error) {
	providers, err := loadConfigs()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(providers, func(i, j int) bool {
		return providers[i].GetBool(sdk.NotaryEnabledKey) && !providers[j].GetBool(sdk.NotaryEnabledKey)
	})

	n := sdk.NewNetwork()
	for _, cp := range providers {
		if _, err := n.AddParty(cp, nil); err != nil {
			n.Close()
			return nil, err
		}
	}
	return n, nil
}

func loadConfigs() ([]*config.Provider, error) {
	var fsys fs.FS = sample
	root := "sample"
	if len(configDir) != 0 {
		fsys = os.DirFS(configDir)
		root = "."
	}
	files, err := fs.Glob(fsys, path.Join(root, "*.yaml"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed listing configurations")
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no configuration found in [%s]", configDir)
	}
	var providers []*config.Provider
	for _, f := range files {
		raw, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed reading [%s]", f)
		}
		cp, err := config.NewProviderFromYAML(raw)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed loading [%s]", f)
		}
		providers = append(providers, cp)
	}
	return providers, nil
}
