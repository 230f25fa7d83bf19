package testing_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedreap/postreap/internal/config"
	testutil "github.com/seedreap/postreap/internal/testing"
)

func TestValidConfig(t *testing.T) {
	cfg := testutil.ValidConfig(t)

	loaded, err := config.Load(config.LoadOptions{ConfigFile: testutil.WriteConfigFile(t, cfg)})
	require.NoError(t, err, "ValidConfig should produce a valid config")

	require.Len(t, loaded.Sections, 5)
	for name, s := range loaded.Sections {
		assert.NotEmpty(t, s.Kind, name)
		assert.NotEmpty(t, s.Category, name)
		assert.True(t, s.IsEnabled(), name)
	}

	tv := loaded.Sections["tv"]
	assert.Equal(t, "sickbeard", tv.Kind)
	assert.Equal(t, "admin", tv.Username)
	assert.Empty(t, tv.APIKey)

	assert.NotEmpty(t, loaded.Extraction.PasswordFile)
	assert.Equal(t, "qbittorrent", loaded.Torrent.Client)
}

func TestValidConfigMinimal(t *testing.T) {
	cfg := testutil.ValidConfigMinimal(t)

	loaded, err := config.Load(config.LoadOptions{ConfigFile: testutil.WriteConfigFile(t, cfg)})
	require.NoError(t, err, "ValidConfigMinimal should produce a valid config")

	require.Len(t, loaded.Sections, 1)
	tv := loaded.Sections["tv"]
	assert.Equal(t, "localhost", tv.Host)
	assert.Equal(t, config.DefaultDialect, tv.Dialect)
	assert.Equal(t, config.DefaultHTTPTimeout, tv.HTTPTimeout)
}

func TestCreatePasswordFile(t *testing.T) {
	path := testutil.CreatePasswordFile(t, "one", "", "two")

	info, err := os.Stat(path)
	require.NoError(t, err, "password file should exist")
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo\n", string(data))
}

func TestConfigToYAML(t *testing.T) {
	cfg := testutil.ValidConfig(t)
	yamlContent := testutil.ConfigToYAML(t, cfg)

	assert.Contains(t, yamlContent, "sections:")
	assert.Contains(t, yamlContent, "torrent:")
	assert.Contains(t, yamlContent, "media:")
	assert.Contains(t, yamlContent, "transcoder:")
	assert.Contains(t, yamlContent, "movies:")
	assert.Contains(t, yamlContent, "kind: couchpotato")
}
