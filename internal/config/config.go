// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultWaitFor      = 2 * time.Minute
	DefaultTimePerGiB   = 60 * time.Second
	DefaultPollInterval = 10 * time.Second
	DefaultGraceDelay   = 5 * time.Second
	DefaultDialect      = "auto"
	DefaultMethod       = "renamer"
	DefaultSampleSizeMB = 200
	DefaultLogMaxSizeMB = 10
	DefaultLogBackups   = 3
)

// Config is the application configuration.
type Config struct {
	General    GeneralConfig            `mapstructure:"general"    yaml:"general"`
	Sections   map[string]SectionConfig `mapstructure:"sections"   yaml:"sections"`
	Torrent    TorrentConfig            `mapstructure:"torrent"    yaml:"torrent"`
	Extraction ExtractionConfig         `mapstructure:"extraction" yaml:"extraction"`
	Media      MediaConfig              `mapstructure:"media"      yaml:"media"`
	Transcoder TranscoderConfig         `mapstructure:"transcoder" yaml:"transcoder"`
	Logging    LoggingConfig            `mapstructure:"logging"    yaml:"logging"`
}

// GeneralConfig holds settings shared by every run.
type GeneralConfig struct {
	OutputDirectory string        `mapstructure:"outputDirectory" yaml:"outputDirectory"` // torrent content is processed below this directory when set
	ForceClean      bool          `mapstructure:"forceClean"      yaml:"forceClean"`      // remove processed directories even if media files remain
	ASCIIConvert    bool          `mapstructure:"asciiConvert"    yaml:"asciiConvert"`    // rename content to ASCII-only names before dispatch
	PollInterval    time.Duration `mapstructure:"pollInterval"    yaml:"pollInterval"`    // wait between completion polls
}

// SectionConfig holds configuration for one downstream manager.
type SectionConfig struct {
	Kind          string        `mapstructure:"kind"          yaml:"kind"`
	Category      string        `mapstructure:"category"      yaml:"category"`
	Host          string        `mapstructure:"host"          yaml:"host"`
	Port          int           `mapstructure:"port"          yaml:"port"`
	SSL           bool          `mapstructure:"ssl"           yaml:"ssl"`
	WebRoot       string        `mapstructure:"webRoot"       yaml:"webRoot,omitempty"`
	APIKey        string        `mapstructure:"apiKey"        yaml:"apiKey,omitempty"`
	Username      string        `mapstructure:"username"      yaml:"username,omitempty"`
	Password      string        `mapstructure:"password"      yaml:"password,omitempty"`
	Dialect       string        `mapstructure:"dialect"       yaml:"dialect"`       // API variant, "auto" probes the manager
	Enabled       *bool         `mapstructure:"enabled"       yaml:"enabled"`       // nil means enabled
	Method        string        `mapstructure:"method"        yaml:"method"`        // couchpotato: renamer or manage
	Delay         time.Duration `mapstructure:"delay"         yaml:"delay"`         // wait before dispatch on automatic runs
	WaitFor       time.Duration `mapstructure:"waitFor"       yaml:"waitFor"`       // completion poll deadline
	TimePerGiB    time.Duration `mapstructure:"timePerGiB"    yaml:"timePerGiB"`    // dispatch timeout added per GiB of content
	DeleteFailed  bool          `mapstructure:"deleteFailed"  yaml:"deleteFailed"`  // remove the directory of failed downloads
	RemotePath    string        `mapstructure:"remotePath"    yaml:"remotePath,omitempty"`
	ProcessMethod string        `mapstructure:"processMethod" yaml:"processMethod,omitempty"`
	TorrentNoLink bool          `mapstructure:"torrentNoLink" yaml:"torrentNoLink"`
	WatchDir      string        `mapstructure:"watchDir"      yaml:"watchDir,omitempty"` // scanned by "postreap scan"
	Remote        bool          `mapstructure:"remote"        yaml:"remote"`             // manager runs on another host
	HTTPTimeout   time.Duration `mapstructure:"httpTimeout"   yaml:"httpTimeout"`
}

// IsEnabled reports whether the section takes part in processing.
func (s SectionConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// TorrentConfig holds the torrent client connection and link policy.
type TorrentConfig struct {
	Client         string        `mapstructure:"client"         yaml:"client"` // qbittorrent, transmission, deluge, utorrent; anything else disables control
	URL            string        `mapstructure:"url"            yaml:"url"`
	Username       string        `mapstructure:"username"       yaml:"username,omitempty"`
	Password       string        `mapstructure:"password"       yaml:"password,omitempty"`
	DeleteOriginal bool          `mapstructure:"deleteOriginal" yaml:"deleteOriginal"` // remove the torrent and its data after a confirmed import
	UseLink        string        `mapstructure:"useLink"        yaml:"useLink"`        // no, hard, sym or move
	GraceDelay     time.Duration `mapstructure:"graceDelay"     yaml:"graceDelay"`
	HTTPTimeout    time.Duration `mapstructure:"httpTimeout"    yaml:"httpTimeout"`
}

// ExtractionConfig holds archive extraction settings.
type ExtractionConfig struct {
	PasswordFile string `mapstructure:"passwordFile" yaml:"passwordFile,omitempty"` // newline-delimited candidates
}

// MediaConfig holds file classification settings.
type MediaConfig struct {
	MediaExtensions      []string `mapstructure:"mediaExtensions"      yaml:"mediaExtensions"`
	MetaExtensions       []string `mapstructure:"metaExtensions"       yaml:"metaExtensions"`
	CompressedExtensions []string `mapstructure:"compressedExtensions" yaml:"compressedExtensions"`
	MinSampleSizeMB      int64    `mapstructure:"minSampleSizeMB"      yaml:"minSampleSizeMB"`
	SampleIDs            []string `mapstructure:"sampleIDs"            yaml:"sampleIDs"` // "SizeOnly" treats every small file as a sample
}

// TranscoderConfig holds the encode profile.
type TranscoderConfig struct {
	Enabled          bool     `mapstructure:"enabled"          yaml:"enabled"`
	Binary           string   `mapstructure:"binary"           yaml:"binary"`
	MediaExtensions  []string `mapstructure:"mediaExtensions"  yaml:"mediaExtensions"`
	IgnoreExtensions []string `mapstructure:"ignoreExtensions" yaml:"ignoreExtensions"`
	OutputExtension  string   `mapstructure:"outputExtension"  yaml:"outputExtension"`
	VideoCodec       string   `mapstructure:"videoCodec"       yaml:"videoCodec"`
	VideoPreset      string   `mapstructure:"videoPreset"      yaml:"videoPreset"`
	VideoFramerate   string   `mapstructure:"videoFramerate"   yaml:"videoFramerate,omitempty"`
	VideoBitrate     string   `mapstructure:"videoBitrate"     yaml:"videoBitrate,omitempty"`
	AudioCodec       string   `mapstructure:"audioCodec"       yaml:"audioCodec"`
	AudioBitrate     string   `mapstructure:"audioBitrate"     yaml:"audioBitrate,omitempty"`
	SubtitleCodec    string   `mapstructure:"subtitleCodec"    yaml:"subtitleCodec,omitempty"`
	FastStart        bool     `mapstructure:"fastStart"        yaml:"fastStart"`
	QualityPercent   int      `mapstructure:"qualityPercent"   yaml:"qualityPercent"`
	Duplicate        bool     `mapstructure:"duplicate"        yaml:"duplicate"` // keep the original after encoding
	Niceness         int      `mapstructure:"niceness"         yaml:"niceness"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"      yaml:"level"`
	Pretty     bool   `mapstructure:"pretty"     yaml:"pretty"`
	File       string `mapstructure:"file"       yaml:"file,omitempty"` // rotating log file, in addition to stderr
	MaxSizeMB  int    `mapstructure:"maxSizeMB"  yaml:"maxSizeMB"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups"`
}

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// ConfigFile is an explicit config file path. If empty, default locations are searched.
	ConfigFile string
}

// Load reads configuration from file and environment variables.
// If opts.ConfigFile is set, that file is used directly.
// Otherwise, it searches default locations: $HOME, current directory, /config
// for files named .postreap.yaml, postreap.yaml, or config.yaml.
//
// Environment variables with prefix POSTREAP_ override config file values.
// For the dynamic sections map, set POSTREAP_SECTIONS to a comma-separated list
// of names to enable env var binding for those entries.
func Load(opts LoadOptions) (Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("/config")
		v.SetConfigType("yaml")
		v.SetConfigName(".postreap")
		v.SetConfigName("postreap")
		v.SetConfigName("config")
	}

	// Environment variables
	v.SetEnvPrefix("POSTREAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindSectionEnvVars(v)

	setDefaults(v)

	// Read config file (ignore error if not found)
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	setDefaultsOnSections(&cfg)
	setFallbacks(&cfg)

	if err := validate(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.pollInterval", DefaultPollInterval.String())

	v.SetDefault("torrent.useLink", "no")
	v.SetDefault("torrent.graceDelay", DefaultGraceDelay.String())
	v.SetDefault("torrent.httpTimeout", DefaultHTTPTimeout.String())

	v.SetDefault("media.mediaExtensions", defaultMediaExtensions)
	v.SetDefault("media.metaExtensions", []string{".nfo", ".sub", ".srt", ".idx", ".jpg", ".gif"})
	v.SetDefault("media.compressedExtensions",
		[]string{".zip", ".rar", ".7z", ".gz", ".bz", ".tar", ".arj", ".1", ".01", ".001"})
	v.SetDefault("media.minSampleSizeMB", DefaultSampleSizeMB)
	v.SetDefault("media.sampleIDs", []string{"sample", "-s."})

	v.SetDefault("transcoder.binary", "ffmpeg")
	v.SetDefault("transcoder.mediaExtensions", defaultMediaExtensions)
	v.SetDefault("transcoder.outputExtension", ".mp4")
	v.SetDefault("transcoder.videoCodec", "libx264")
	v.SetDefault("transcoder.videoPreset", "medium")
	v.SetDefault("transcoder.audioCodec", "aac")
	v.SetDefault("transcoder.fastStart", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.maxSizeMB", DefaultLogMaxSizeMB)
	v.SetDefault("logging.maxBackups", DefaultLogBackups)
}

//nolint:gochecknoglobals // default extension list shared by media and transcoder
var defaultMediaExtensions = []string{
	".mkv", ".avi", ".divx", ".xvid", ".mov", ".wmv", ".mp4",
	".mpg", ".mpeg", ".vob", ".iso", ".m4v", ".ts",
}

// setDefaultsOnSections applies default values to section fields that can't
// be set with viper.SetDefault.
func setDefaultsOnSections(cfg *Config) {
	for name, s := range cfg.Sections {
		s.Kind = strings.ToLower(s.Kind)
		if s.Dialect == "" {
			s.Dialect = DefaultDialect
		}
		if s.Method == "" {
			s.Method = DefaultMethod
		}
		if s.HTTPTimeout == 0 {
			s.HTTPTimeout = DefaultHTTPTimeout
		}
		if s.WaitFor == 0 {
			s.WaitFor = DefaultWaitFor
		}
		if s.TimePerGiB == 0 {
			s.TimePerGiB = DefaultTimePerGiB
		}
		if s.Host == "" {
			s.Host = "localhost"
		}
		cfg.Sections[name] = s
	}
}

// setFallbacks replaces values that were explicitly left empty and have no
// meaningful empty form.
func setFallbacks(cfg *Config) {
	if cfg.General.PollInterval == 0 {
		cfg.General.PollInterval = DefaultPollInterval
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Transcoder.Binary == "" {
		cfg.Transcoder.Binary = "ffmpeg"
	}
	if len(cfg.Media.MediaExtensions) == 0 {
		cfg.Media.MediaExtensions = defaultMediaExtensions
	}
	if len(cfg.Transcoder.MediaExtensions) == 0 {
		cfg.Transcoder.MediaExtensions = defaultMediaExtensions
	}
}

// Valid section kinds.
//
//nolint:gochecknoglobals // validation lookup table
var validKinds = map[string]bool{
	"couchpotato": true,
	"sickbeard":   true,
	"sonarr":      true,
	"radarr":      true,
	"gamez":       true,
}

// Kinds that authenticate with an API key.
//
//nolint:gochecknoglobals // validation lookup table
var apiKeyKinds = map[string]bool{
	"couchpotato": true,
	"sonarr":      true,
	"radarr":      true,
	"gamez":       true,
}

// Valid link modes.
//
//nolint:gochecknoglobals // validation lookup table
var validLinkModes = map[string]bool{
	"":     true,
	"no":   true,
	"hard": true,
	"sym":  true,
	"move": true,
}

// Valid CouchPotato methods.
//
//nolint:gochecknoglobals // validation lookup table
var validMethods = map[string]bool{
	"renamer": true,
	"manage":  true,
}

// Valid log levels.
//
//nolint:gochecknoglobals // validation lookup table
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validate checks that the configuration is valid.
//
//nolint:gocognit // validation requires checking many fields
func validate(cfg *Config) error {
	var errs []error

	categories := make(map[string]string)
	for name, s := range cfg.Sections {
		if s.Kind == "" {
			errs = append(errs, fmt.Errorf("section %q: kind is required", name))
		} else if !validKinds[s.Kind] {
			errs = append(errs, fmt.Errorf("section %q: unknown kind %q", name, s.Kind))
		}

		if s.Category == "" {
			errs = append(errs, fmt.Errorf("section %q: category is required", name))
		} else if s.IsEnabled() {
			if other, ok := categories[s.Category]; ok {
				errs = append(errs, fmt.Errorf("section %q: category %q is already handled by section %q",
					name, s.Category, other))
			}
			categories[s.Category] = name
		}

		if s.Port < 0 || s.Port > 65535 {
			errs = append(errs, fmt.Errorf("section %q: invalid port %d", name, s.Port))
		}

		if apiKeyKinds[s.Kind] && s.APIKey == "" {
			errs = append(errs, fmt.Errorf("section %q: apiKey is required", name))
		}

		if s.Kind == "couchpotato" && !validMethods[s.Method] {
			errs = append(errs, fmt.Errorf("section %q: unknown method %q", name, s.Method))
		}

		if s.Delay < 0 || s.WaitFor < 0 || s.TimePerGiB < 0 {
			errs = append(errs, fmt.Errorf("section %q: durations must not be negative", name))
		}
	}

	if !validLinkModes[cfg.Torrent.UseLink] {
		errs = append(errs, fmt.Errorf("torrent.useLink: unknown mode %q", cfg.Torrent.UseLink))
	}
	if cfg.Torrent.GraceDelay < 0 {
		errs = append(errs, errors.New("torrent.graceDelay must not be negative"))
	}

	if cfg.Media.MinSampleSizeMB < 0 {
		errs = append(errs, errors.New("media.minSampleSizeMB must not be negative"))
	}

	if cfg.Transcoder.Enabled && cfg.Transcoder.OutputExtension == "" {
		errs = append(errs, errors.New("transcoder.outputExtension is required when the transcoder is enabled"))
	}

	if cfg.General.PollInterval <= 0 {
		errs = append(errs, errors.New("general.pollInterval must be positive"))
	}

	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// sectionEnvFields lists all SectionConfig fields for env var binding.
// This must be kept in sync with SectionConfig struct.
// Tests verify this list matches the struct fields.
//
//nolint:gochecknoglobals // env var binding field list
var sectionEnvFields = []string{
	"kind",
	"category",
	"host",
	"port",
	"ssl",
	"webRoot",
	"apiKey",
	"username",
	"password",
	"dialect",
	"enabled",
	"method",
	"delay",
	"waitFor",
	"timePerGiB",
	"deleteFailed",
	"remotePath",
	"processMethod",
	"torrentNoLink",
	"watchDir",
	"remote",
	"httpTimeout",
}

// bindSectionEnvVars reads POSTREAP_SECTIONS env var to get the list of
// section names, then binds all section fields for each name using MustBindEnv.
// This allows viper to discover dynamic map keys from environment variables.
// The list env var is unset after reading to prevent viper from treating it as
// the "sections" config key (which would cause a type mismatch).
func bindSectionEnvVars(v *viper.Viper) {
	sectionsEnv := os.Getenv("POSTREAP_SECTIONS")
	if sectionsEnv == "" {
		return
	}

	// Unset the list env var so viper doesn't interpret it as sections=string
	_ = os.Unsetenv("POSTREAP_SECTIONS")

	for name := range strings.SplitSeq(sectionsEnv, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		for _, field := range sectionEnvFields {
			key := "sections." + name + "." + field
			v.MustBindEnv(key)
		}
	}
}
