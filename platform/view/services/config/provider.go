/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	viperutil "github.com/hyperledger-labs/license-ledger/platform/view/services/config/viper"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/events"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/events/simple"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
	"github.com/spf13/viper"
)

const (
	CmdRoot = "core"
	// IDKey is the key to retrieve the party's label
	IDKey = "license.id"
	// PathEnv overrides the directory where core.yaml is looked up
	PathEnv = "LICENSE_CFG_PATH"
)

const (
	OfficialPath          = "/etc/hyperledger-labs/license-ledger"
	MergeConfigEventTopic = "license.mergeConfig.event.topic"
)

var logOutput = os.Stderr

type OnMergeConfigEventHandler interface {
	OnMergeConfig()
}

type Provider struct {
	confPath    string
	Backend     *viper.Viper
	eventSystem events.EventSystem

	mergeConfigMutex sync.Mutex
}

// NewProvider loads core.yaml from confPath, falling back to LICENSE_CFG_PATH,
// the working directory and OfficialPath.
func NewProvider(confPath string) (*Provider, error) {
	p := &Provider{
		confPath:    confPath,
		eventSystem: simple.NewEventBus(),
	}
	if err := p.load(); err != nil {
		return nil, err
	}

	return p, nil
}

// NewProviderFromYAML builds a provider over an in-memory yaml document.
// Relative paths are resolved against the working directory.
func NewProviderFromYAML(raw []byte) (*Provider, error) {
	p := &Provider{
		Backend:     viper.New(),
		eventSystem: simple.NewEventBus(),
	}
	p.Backend.SetConfigType("yaml")
	if err := p.Backend.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, errors.WithMessage(err, "error when reading yaml config")
	}
	if err := p.substituteEnv(); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProvider returns an instance of the config service.
// It panics, if no instance is found.
func GetProvider(sp view.ServiceProvider) *Provider {
	s, err := sp.GetService(reflect.TypeOf((*Provider)(nil)))
	if err != nil {
		panic(err)
	}
	return s.(*Provider)
}

func (p *Provider) ID() string {
	return p.GetString(IDKey)
}

func (p *Provider) GetDuration(key string) time.Duration {
	return p.Backend.GetDuration(key)
}

// GetDurationOrDefault returns the duration stored under key, or def if unset or not positive
func (p *Provider) GetDurationOrDefault(key string, def time.Duration) time.Duration {
	if !p.IsSet(key) {
		return def
	}
	if d := p.Backend.GetDuration(key); d > 0 {
		return d
	}
	return def
}

func (p *Provider) GetBool(key string) bool {
	return p.Backend.GetBool(key)
}

func (p *Provider) GetInt(key string) int {
	return p.Backend.GetInt(key)
}

func (p *Provider) GetIntOrDefault(key string, def int) int {
	if !p.IsSet(key) {
		return def
	}
	return p.Backend.GetInt(key)
}

func (p *Provider) GetStringSlice(key string) []string {
	return p.Backend.GetStringSlice(key)
}

func (p *Provider) UnmarshalKey(key string, rawVal interface{}) error {
	return viperutil.EnhancedExactUnmarshal(p.Backend, key, rawVal)
}

func (p *Provider) IsSet(key string) bool {
	return p.Backend.IsSet(key)
}

func (p *Provider) GetPath(key string) string {
	return p.TranslatePath(p.Backend.GetString(key))
}

func (p *Provider) TranslatePath(path string) string {
	if path == "" {
		return ""
	}

	base := "."
	if used := p.Backend.ConfigFileUsed(); used != "" {
		base = filepath.Dir(used)
	}
	return TranslatePath(base, path)
}

func (p *Provider) GetString(key string) string {
	return p.Backend.GetString(key)
}

func (p *Provider) ConfigFileUsed() string {
	return p.Backend.ConfigFileUsed()
}

func (p *Provider) MergeConfig(raw []byte) error {
	// only one writer at the time
	p.mergeConfigMutex.Lock()
	defer p.mergeConfigMutex.Unlock()

	err := p.Backend.MergeConfig(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	// notify the listener
	p.eventSystem.Publish(&MergeConfigEvent{})

	return nil
}

func (p *Provider) OnMergeConfig(handler OnMergeConfigEventHandler) {
	p.eventSystem.Subscribe(MergeConfigEventTopic, &eventListener{handler: handler})
}

func (p *Provider) load() error {
	p.Backend = viper.New()
	err := p.initViper(p.Backend, CmdRoot)
	if err != nil {
		return err
	}

	err = p.Backend.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || strings.Contains(fmt.Sprint(err), "Unsupported Config Type") {
			return errors.Errorf("Could not find config file. "+
				"Please make sure that %s is set to a path "+
				"which contains %s.yaml", PathEnv, CmdRoot)
		}
		return errors.WithMessagef(err, "error when reading %s config file", CmdRoot)
	}

	if err := p.substituteEnv(); err != nil {
		return err
	}

	logging.Init(logging.Config{
		Format:  p.Backend.GetString("logging.format"),
		LogSpec: p.Backend.GetString("logging.spec"),
		Writer:  logOutput,
	})

	return nil
}

// Manually override keys if the respective environment variable is set, because viper doesn't do
// that for UnmarshalKey values (see https://github.com/spf13/viper/pull/1699).
// Example: CORE_LOGGING_FORMAT sets logging.format.
func (p *Provider) substituteEnv() error {
	prefix := strings.ToUpper(CmdRoot) + "_"
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, prefix) {
			continue
		}

		env := strings.SplitN(e, "=", 2)
		if len(env) != 2 || len(env[1]) == 0 {
			continue
		}
		name, val := env[0], env[1]
		key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, prefix), "_", "."))

		keys := strings.Split(key, ".")
		parent := strings.Join(keys[:len(keys)-1], ".")
		if len(keys) < 2 || !p.Backend.IsSet(parent) {
			logger.Debugf("applying %s - parent not found in %s.yaml: %s", name, CmdRoot, parent)
			p.Backend.Set(key, val)
			continue
		}

		if len(p.Backend.GetStringMap(key)) > 0 {
			logger.Debugf("skipping %s: cannot override maps", name)
			continue
		}

		root := p.Backend.GetStringMap(keys[0])
		if err := setDeepValue(root, keys, val); err != nil {
			return errors.Wrap(err, "error when substituting")
		}
		p.Backend.Set(keys[0], root)
		logger.Debugf("applying %s", name)
	}
	return nil
}

// setDeepValue sets the value at the deepest level
func setDeepValue(m map[string]any, keys []string, value any) error {
	// key = root but we don't have the map by reference
	if len(keys) < 2 {
		return errors.New("can't set root key")
	}

	current := m
	for i := 1; i < len(keys)-1; i++ {
		key := keys[i]
		nextMap, ok := current[key].(map[string]any)
		if !ok {
			return errors.New("expected map at key " + key)
		}
		current = nextMap
	}
	current[keys[len(keys)-1]] = value

	return nil
}

func (p *Provider) initViper(v *viper.Viper, configName string) error {
	if len(p.confPath) != 0 {
		v.AddConfigPath(p.confPath)
	}

	if altPath := os.Getenv(PathEnv); altPath != "" {
		if !dirExists(altPath) {
			return errors.Errorf("%s %s does not exist", PathEnv, altPath)
		}
		v.AddConfigPath(altPath)
	} else {
		v.AddConfigPath("./")
		if dirExists(OfficialPath) {
			v.AddConfigPath(OfficialPath)
		}
	}

	v.SetConfigName(configName)
	return nil
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.IsDir()
}

func TranslatePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(base, p)
}

type eventListener struct {
	handler OnMergeConfigEventHandler
}

func (e *eventListener) OnReceive(events.Event) {
	e.handler.OnMergeConfig()
}

type MergeConfigEvent struct{}

func (m *MergeConfigEvent) Topic() string {
	return MergeConfigEventTopic
}

func (m *MergeConfigEvent) Message() interface{} {
	return nil
}
