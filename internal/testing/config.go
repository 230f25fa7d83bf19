package testing

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seedreap/postreap/internal/config"
)

// CreatePasswordFile writes a newline-delimited password list into a temp
// directory and returns its path. The file is removed when the test completes.
func CreatePasswordFile(t *testing.T, passwords ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "passwords.txt")
	content := strings.Join(passwords, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to create password file: %v", err)
	}

	return path
}

// ValidConfig returns a fully populated, valid config.Config struct with one
// section per manager kind. The returned config passes all validation checks
// and can be used as a starting point for tests that need to modify specific fields.
func ValidConfig(t *testing.T) config.Config {
	t.Helper()

	section := func(kind, category string, port int) config.SectionConfig {
		return config.SectionConfig{
			Kind:        kind,
			Category:    category,
			Host:        "localhost",
			Port:        port,
			APIKey:      "test-api-key",
			Dialect:     config.DefaultDialect,
			Method:      config.DefaultMethod,
			WaitFor:     time.Minute,
			TimePerGiB:  config.DefaultTimePerGiB,
			HTTPTimeout: config.DefaultHTTPTimeout,
		}
	}

	tv := section("sickbeard", "tv", 8081)
	tv.APIKey = ""
	tv.Username = "admin"
	tv.Password = "secret"

	cfg := config.Sample()
	cfg.Sections = map[string]config.SectionConfig{
		"movies": section("couchpotato", "movies", 5050),
		"tv":     tv,
		"sonarr": section("sonarr", "tv-sonarr", 8989),
		"radarr": section("radarr", "movies-radarr", 7878),
		"games":  section("gamez", "games", 8085),
	}
	cfg.Extraction.PasswordFile = CreatePasswordFile(t, "secret")

	return cfg
}

// ValidConfigMinimal returns a minimal valid config with only required fields.
func ValidConfigMinimal(t *testing.T) config.Config {
	t.Helper()

	return config.Config{
		Sections: map[string]config.SectionConfig{
			"tv": {
				Kind:     "sickbeard",
				Category: "tv",
			},
		},
	}
}

// ConfigToYAML converts a config.Config struct to a YAML string.
// This is useful for tests that need to load config via the YAML parser.
func ConfigToYAML(t *testing.T, cfg config.Config) string {
	t.Helper()

	var buf bytes.Buffer
	if err := config.WriteYAML(&buf, cfg); err != nil {
		t.Fatalf("failed to marshal config to YAML: %v", err)
	}

	return buf.String()
}

// WriteConfigFile writes cfg to a temp file and returns its path.
func WriteConfigFile(t *testing.T, cfg config.Config) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(ConfigToYAML(t, cfg)), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	return path
}
