//nolint:testpackage // internal test needs access to the section env field list
package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSectionEnvOverrides sets every bound section field for one section
// through POSTREAP_SECTIONS_<NAME>_<FIELD> and checks it reaches SectionConfig.
// A field added to sectionEnvFields without a row here fails the test.
func TestSectionEnvOverrides(t *testing.T) {
	tests := map[string]struct {
		env   string
		check func(t *testing.T, s SectionConfig)
	}{
		"kind":     {env: "SickBeard", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "sickbeard", s.Kind) }},
		"category": {env: "tv", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "tv", s.Category) }},
		"host":     {env: "sickbeard.lan", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "sickbeard.lan", s.Host) }},
		"port":     {env: "8081", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, 8081, s.Port) }},
		"ssl":      {env: "true", check: func(t *testing.T, s SectionConfig) { assert.True(t, s.SSL) }},
		"webRoot":  {env: "/sb", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "/sb", s.WebRoot) }},
		"apiKey":   {env: "env-key", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "env-key", s.APIKey) }},
		"username": {env: "admin", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "admin", s.Username) }},
		"password": {env: "hunter2", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "hunter2", s.Password) }},
		"dialect":  {env: "failed", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "failed", s.Dialect) }},
		"enabled": {env: "false", check: func(t *testing.T, s SectionConfig) {
			require.NotNil(t, s.Enabled)
			assert.False(t, s.IsEnabled())
		}},
		"method":        {env: "manage", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "manage", s.Method) }},
		"delay":         {env: "30s", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, 30*time.Second, s.Delay) }},
		"waitFor":       {env: "5m", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, 5*time.Minute, s.WaitFor) }},
		"timePerGiB":    {env: "45s", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, 45*time.Second, s.TimePerGiB) }},
		"deleteFailed":  {env: "true", check: func(t *testing.T, s SectionConfig) { assert.True(t, s.DeleteFailed) }},
		"remotePath":    {env: "/downloads=/mnt/dl", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "/downloads=/mnt/dl", s.RemotePath) }},
		"processMethod": {env: "hardlink", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "hardlink", s.ProcessMethod) }},
		"torrentNoLink": {env: "true", check: func(t *testing.T, s SectionConfig) { assert.True(t, s.TorrentNoLink) }},
		"watchDir":      {env: "/watch/tv", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, "/watch/tv", s.WatchDir) }},
		"remote":        {env: "true", check: func(t *testing.T, s SectionConfig) { assert.True(t, s.Remote) }},
		"httpTimeout":   {env: "2m", check: func(t *testing.T, s SectionConfig) { assert.Equal(t, 2*time.Minute, s.HTTPTimeout) }},
	}

	covered := make([]string, 0, len(tests))
	for field := range tests {
		covered = append(covered, field)
	}
	require.ElementsMatch(t, sectionEnvFields, covered,
		"every field in sectionEnvFields needs an override row here")

	t.Setenv("POSTREAP_SECTIONS", "episodes")
	for field, tt := range tests {
		t.Setenv("POSTREAP_SECTIONS_EPISODES_"+strings.ToUpper(field), tt.env)
	}

	cfg, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)
	require.Contains(t, cfg.Sections, "episodes")
	s := cfg.Sections["episodes"]

	for field, tt := range tests {
		t.Run(field, func(t *testing.T) {
			tt.check(t, s)
		})
	}
}
