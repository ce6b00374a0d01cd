/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type persistenceOpts struct {
	DataSource string
	InMemory   bool
}

func TestReadFile(t *testing.T) {
	p, err := NewProvider("./testdata")
	require.NoError(t, err)
	testBasics(t, p)
	testMerge(t, p)
}

func TestMissingFile(t *testing.T) {
	t.Setenv(PathEnv, t.TempDir())
	_, err := NewProvider("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not find config file")
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("CORE_LICENSE_VAULT_PERSISTENCE_OPTS_DATASOURCE", "new data source")
	t.Setenv("CORE_STR", "new=string=with=characters.\\AND.CAPS")
	t.Setenv("CORE_NUMBER", "10")
	t.Setenv("CORE_DURATION", "10s")
	t.Setenv("CORE_PATH_RELATIVE", "newfile.name")
	t.Setenv("CORE_PATH_ABSOLUTE", "") // empty env vars are disregarded
	t.Setenv("CORE_NON_EXISTENT_KEY", "new")

	p, err := NewProvider("./testdata")
	require.NoError(t, err)

	path, _ := filepath.Abs("testdata/newfile.name")
	assert.Equal(t, "new=string=with=characters.\\AND.CAPS", p.GetString("str"))
	assert.Equal(t, 10, p.GetInt("number"))
	assert.Equal(t, 10*time.Second, p.GetDuration("duration"))
	assert.Equal(t, path, p.GetPath("path.relative"))
	assert.Equal(t, "/absolute/path/file.name", p.GetPath("path.absolute"))

	var opts persistenceOpts
	assert.Equal(t, "sqlite", p.GetString("license.vault.persistence.type"))
	require.NoError(t, p.UnmarshalKey("license.vault.persistence.opts", &opts))
	assert.Equal(t, "new data source", opts.DataSource)

	// ensure other keys higher up the tree are not removed
	assert.Equal(t, true, p.GetBool("license.vault.keyexists"))
	assert.Equal(t, "new", p.GetString("non.existent.key"))
}

func TestFromYAML(t *testing.T) {
	raw, err := os.ReadFile("./testdata/core.yaml")
	require.NoError(t, err)
	p, err := NewProviderFromYAML(raw)
	require.NoError(t, err)

	assert.Equal(t, "alice", p.ID())
	assert.Equal(t, 3, p.GetIntOrDefault("license.delivery.retries", 1))
	assert.Equal(t, 7, p.GetIntOrDefault("license.delivery.missing", 7))
	assert.Equal(t, 100*time.Millisecond, p.GetDurationOrDefault("license.delivery.delay", time.Second))
	assert.Equal(t, time.Minute, p.GetDurationOrDefault("license.finality.timeout", time.Minute))

	var notaries []string
	require.NoError(t, p.UnmarshalKey("license.notaries", &notaries))
	assert.Equal(t, []string{"notary", "backup"}, notaries)
}

func TestUnmarshalRequiresPointer(t *testing.T) {
	p, err := NewProviderFromYAML([]byte("a: b"))
	require.NoError(t, err)
	var opts persistenceOpts
	assert.Error(t, p.UnmarshalKey("a", opts))
}

func testMerge(t *testing.T, p *Provider) {
	assert.Empty(t, p.GetString("newKey"))
	wg := sync.WaitGroup{}
	wg.Add(1)
	p.OnMergeConfig(&mergeConfigHandler{wg: &wg})

	merge1Raw, err := os.ReadFile("./testdata/merge1.yaml")
	require.NoError(t, err)
	require.NoError(t, p.MergeConfig(merge1Raw))

	assert.Equal(t, "hello world", p.GetString("newKey"))
	assert.Equal(t, 20*time.Second, p.GetDuration("license.session.timeout"))

	testBasics(t, p)

	wg.Wait()
}

func testBasics(t *testing.T, p *Provider) {
	path, _ := filepath.Abs("testdata/file.name")

	assert.Equal(t, "a string", p.GetString("str"))
	assert.Equal(t, 5, p.GetInt("number"))
	assert.Equal(t, 5*time.Second, p.GetDuration("duration"))
	assert.Equal(t, path, p.GetPath("path.relative"))
	assert.Equal(t, "/absolute/path/file.name", p.GetPath("path.absolute"))

	assert.Equal(t, "", p.GetString("emptykey"))
	assert.Equal(t, true, p.GetBool("CAPITALS"))
	assert.Equal(t, true, p.GetBool("capitals"))
	assert.Equal(t, "alice", p.ID())

	var opts persistenceOpts
	assert.Equal(t, "sqlite", p.GetString("license.vault.persistence.type"))
	require.NoError(t, p.UnmarshalKey("license.vault.persistence.opts", &opts))
	assert.Equal(t, "ds", opts.DataSource)
	assert.False(t, opts.InMemory)
}

type mergeConfigHandler struct {
	wg *sync.WaitGroup
}

func (m *mergeConfigHandler) OnMergeConfig() {
	m.wg.Done()
}
