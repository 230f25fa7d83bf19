package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Sample returns a configuration with one section per manager kind, written
// by "postreap config init". Every section but the first is disabled.
func Sample() Config {
	disabled := false

	return Config{
		General: GeneralConfig{
			PollInterval: DefaultPollInterval,
		},
		Sections: map[string]SectionConfig{
			"movies": {
				Kind:        "couchpotato",
				Category:    "movies",
				Host:        "localhost",
				Port:        5050,
				APIKey:      "changeme",
				Dialect:     DefaultDialect,
				Method:      DefaultMethod,
				WaitFor:     DefaultWaitFor,
				TimePerGiB:  DefaultTimePerGiB,
				HTTPTimeout: DefaultHTTPTimeout,
			},
			"tv": {
				Kind:        "sickbeard",
				Category:    "tv",
				Host:        "localhost",
				Port:        8081,
				Username:    "admin",
				Password:    "changeme",
				Dialect:     DefaultDialect,
				Enabled:     &disabled,
				WaitFor:     DefaultWaitFor,
				TimePerGiB:  DefaultTimePerGiB,
				HTTPTimeout: DefaultHTTPTimeout,
			},
			"sonarr": {
				Kind:        "sonarr",
				Category:    "sonarr",
				Host:        "localhost",
				Port:        8989,
				APIKey:      "changeme",
				Dialect:     DefaultDialect,
				Enabled:     &disabled,
				WaitFor:     DefaultWaitFor,
				TimePerGiB:  DefaultTimePerGiB,
				HTTPTimeout: DefaultHTTPTimeout,
			},
			"radarr": {
				Kind:        "radarr",
				Category:    "radarr",
				Host:        "localhost",
				Port:        7878,
				APIKey:      "changeme",
				Dialect:     DefaultDialect,
				Enabled:     &disabled,
				WaitFor:     DefaultWaitFor,
				TimePerGiB:  DefaultTimePerGiB,
				HTTPTimeout: DefaultHTTPTimeout,
			},
			"games": {
				Kind:        "gamez",
				Category:    "games",
				Host:        "localhost",
				Port:        8085,
				APIKey:      "changeme",
				Dialect:     DefaultDialect,
				Enabled:     &disabled,
				WaitFor:     DefaultWaitFor,
				TimePerGiB:  DefaultTimePerGiB,
				HTTPTimeout: DefaultHTTPTimeout,
			},
		},
		Torrent: TorrentConfig{
			Client:      "qbittorrent",
			URL:         "http://localhost:8080",
			UseLink:     "no",
			GraceDelay:  DefaultGraceDelay,
			HTTPTimeout: DefaultHTTPTimeout,
		},
		Media: MediaConfig{
			MediaExtensions:      defaultMediaExtensions,
			MetaExtensions:       []string{".nfo", ".sub", ".srt", ".idx", ".jpg", ".gif"},
			CompressedExtensions: []string{".zip", ".rar", ".7z", ".gz", ".bz", ".tar", ".arj", ".1", ".01", ".001"},
			MinSampleSizeMB:      DefaultSampleSizeMB,
			SampleIDs:            []string{"sample", "-s."},
		},
		Transcoder: TranscoderConfig{
			Binary:          "ffmpeg",
			MediaExtensions: defaultMediaExtensions,
			OutputExtension: ".mp4",
			VideoCodec:      "libx264",
			VideoPreset:     "medium",
			AudioCodec:      "aac",
			FastStart:       true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogBackups,
		},
	}
}

// WriteYAML encodes cfg as YAML to w.
func WriteYAML(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
