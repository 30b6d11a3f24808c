package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"

	"github.com/08351ty/Google-Meet-Bot/internal/domain/meeting"
)

// DefaultSummaryPrompt is used when no custom prompt is configured.
const DefaultSummaryPrompt = `You are a meeting summarizer. Given a meeting transcript, produce a clear and concise summary in markdown format with these sections:

## Summary
A brief 2-3 sentence overview of what the meeting was about.

## Key Decisions
Bullet points of any decisions that were made.

## Action Items
Bullet points of tasks or follow-ups assigned, with the responsible person if identifiable.

## Discussion Highlights
Brief notes on the main topics discussed.

If any section has no content, omit it. Be concise but don't miss important details.`

// DefaultFolderTemplate is the default meeting folder name template.
// Available placeholders: {{.Year}}, {{.Month}}, {{.Day}}, {{.Hour}}, {{.Minute}}, {{.Second}}, {{.Name}}, {{.Code}}
const DefaultFolderTemplate = "{{.Year}}-{{.Month}}-{{.Day}}_{{.Hour}}-{{.Minute}}-{{.Second}}{{if .Name}}_{{.Name}}{{end}}"

const (
	DefaultDuration        = 60 * time.Second
	DefaultSampleRate      = 44100
	DefaultConfirmations   = 2
	DefaultPollInterval    = 10 * time.Second
	DefaultConfirmInterval = 5 * time.Second
	DefaultChromeDebugAddr = "localhost:9222"
)

// ConfigurationError reports an invalid or missing setting.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ArchiveConfig selects where finished meetings are copied.
type ArchiveConfig struct {
	Provider        string // "", "local" or "s3"
	Path            string // local provider root
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type Config struct {
	MeetingsDir    string
	DataDir        string // run history lives here
	MistralAPIKey  string
	AnthropicKey   string
	SummaryPrompt  string // system prompt for summary generation
	FolderTemplate string // Go template for meeting folder names

	MeetingURL          string
	MaxDuration         time.Duration
	SampleRate          int
	MonitorParticipants bool
	Confirmations       int
	PollInterval        time.Duration
	ConfirmInterval     time.Duration
	ChromeDebugAddr     string
	ChromePath          string // used by setup to print a launch command
	ChromeUserDataDir   string

	Transcribe bool
	Summarize  bool

	LogLevel  string
	LogFormat string

	Archive ArchiveConfig
}

type fileConfig struct {
	MeetingsDir    string `toml:"meetings_dir"`
	DataDir        string `toml:"data_dir"`
	MistralAPIKey  string `toml:"mistral_api_key"`
	AnthropicKey   string `toml:"anthropic_api_key"`
	SummaryPrompt  string `toml:"summary_prompt"`
	FolderTemplate string `toml:"folder_template"`

	MeetingURL             string `toml:"meet_link"`
	RecordingDuration      *int   `toml:"recording_duration"`
	SampleRate             *int   `toml:"sample_rate"`
	MonitorParticipants    *bool  `toml:"monitor_participants"`
	Confirmations          *int   `toml:"confirmations"`
	PollIntervalSeconds    *int   `toml:"poll_interval"`
	ConfirmIntervalSeconds *int   `toml:"confirm_interval"`
	ChromeDebugAddr        string `toml:"chrome_debug_addr"`
	ChromePath             string `toml:"chrome_path"`
	ChromeUserDataDir      string `toml:"chrome_user_data_dir"`

	Transcribe *bool `toml:"transcribe"`
	Summarize  *bool `toml:"summarize"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Archive struct {
		Provider        string `toml:"provider"`
		Path            string `toml:"path"`
		Bucket          string `toml:"bucket"`
		Region          string `toml:"region"`
		Prefix          string `toml:"prefix"`
		Endpoint        string `toml:"endpoint"`
		AccessKeyID     string `toml:"access_key_id"`
		SecretAccessKey string `toml:"secret_access_key"`
	} `toml:"archive"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		MeetingsDir:         defaultMeetingsDir(),
		DataDir:             defaultDataDir(),
		SummaryPrompt:       DefaultSummaryPrompt,
		FolderTemplate:      DefaultFolderTemplate,
		MaxDuration:         DefaultDuration,
		SampleRate:          DefaultSampleRate,
		MonitorParticipants: true,
		Confirmations:       DefaultConfirmations,
		PollInterval:        DefaultPollInterval,
		ConfirmInterval:     DefaultConfirmInterval,
		ChromeDebugAddr:     DefaultChromeDebugAddr,
		Transcribe:          true,
		LogLevel:            "info",
		LogFormat:           "console",
	}
}

// Load reads defaults, then the config file, then environment overrides.
func Load() (*Config, error) {
	cfg := Defaults()

	if configPath := FilePath(); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cfg.applyFile(configPath); err != nil {
				return nil, err
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.MeetingsDir, 0o755); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return &ConfigurationError{Field: "file", Reason: path, Err: err}
	}

	setString(&cfg.MeetingsDir, expandTilde(fc.MeetingsDir))
	setString(&cfg.DataDir, expandTilde(fc.DataDir))
	setString(&cfg.MistralAPIKey, fc.MistralAPIKey)
	setString(&cfg.AnthropicKey, fc.AnthropicKey)
	setString(&cfg.SummaryPrompt, fc.SummaryPrompt)
	setString(&cfg.FolderTemplate, fc.FolderTemplate)
	setString(&cfg.MeetingURL, fc.MeetingURL)
	setString(&cfg.ChromeDebugAddr, fc.ChromeDebugAddr)
	setString(&cfg.ChromePath, expandTilde(fc.ChromePath))
	setString(&cfg.ChromeUserDataDir, expandTilde(fc.ChromeUserDataDir))
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)

	if fc.RecordingDuration != nil {
		cfg.MaxDuration = time.Duration(*fc.RecordingDuration) * time.Second
	}
	if fc.SampleRate != nil {
		cfg.SampleRate = *fc.SampleRate
	}
	if fc.MonitorParticipants != nil {
		cfg.MonitorParticipants = *fc.MonitorParticipants
	}
	if fc.Confirmations != nil {
		cfg.Confirmations = *fc.Confirmations
	}
	if fc.PollIntervalSeconds != nil {
		cfg.PollInterval = time.Duration(*fc.PollIntervalSeconds) * time.Second
	}
	if fc.ConfirmIntervalSeconds != nil {
		cfg.ConfirmInterval = time.Duration(*fc.ConfirmIntervalSeconds) * time.Second
	}
	if fc.Transcribe != nil {
		cfg.Transcribe = *fc.Transcribe
	}
	if fc.Summarize != nil {
		cfg.Summarize = *fc.Summarize
	}

	a := fc.Archive
	setString(&cfg.Archive.Provider, a.Provider)
	setString(&cfg.Archive.Path, expandTilde(a.Path))
	setString(&cfg.Archive.Bucket, a.Bucket)
	setString(&cfg.Archive.Region, a.Region)
	setString(&cfg.Archive.Prefix, a.Prefix)
	setString(&cfg.Archive.Endpoint, a.Endpoint)
	setString(&cfg.Archive.AccessKeyID, a.AccessKeyID)
	setString(&cfg.Archive.SecretAccessKey, a.SecretAccessKey)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// env returns the first non-empty variable among names.
func env(names ...string) (string, string) {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return n, v
		}
	}
	return "", ""
}

func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		dst   *string
		names []string
		path  bool
	}{
		{&cfg.MistralAPIKey, []string{"MEETBOT_MISTRAL_API_KEY"}, false},
		{&cfg.AnthropicKey, []string{"MEETBOT_ANTHROPIC_API_KEY"}, false},
		{&cfg.MeetingsDir, []string{"MEETBOT_MEETINGS_DIR"}, true},
		{&cfg.DataDir, []string{"MEETBOT_DATA_DIR"}, true},
		{&cfg.MeetingURL, []string{"MEETBOT_MEET_LINK", "MEET_LINK"}, false},
		{&cfg.ChromeDebugAddr, []string{"MEETBOT_CHROME_DEBUG_ADDR"}, false},
		{&cfg.ChromePath, []string{"MEETBOT_CHROME_PATH", "CHROME_PATH"}, true},
		{&cfg.ChromeUserDataDir, []string{"MEETBOT_CHROME_USER_DATA_DIR", "CHROME_USER_DATA_DIR"}, true},
		{&cfg.LogLevel, []string{"MEETBOT_LOG_LEVEL"}, false},
		{&cfg.LogFormat, []string{"MEETBOT_LOG_FORMAT"}, false},
		{&cfg.Archive.Provider, []string{"MEETBOT_ARCHIVE_PROVIDER"}, false},
		{&cfg.Archive.Path, []string{"MEETBOT_ARCHIVE_PATH"}, true},
		{&cfg.Archive.Bucket, []string{"MEETBOT_ARCHIVE_BUCKET"}, false},
		{&cfg.Archive.Region, []string{"MEETBOT_ARCHIVE_REGION", "AWS_REGION"}, false},
		{&cfg.Archive.Prefix, []string{"MEETBOT_ARCHIVE_PREFIX"}, false},
		{&cfg.Archive.Endpoint, []string{"MEETBOT_ARCHIVE_ENDPOINT"}, false},
	}
	for _, s := range strs {
		if _, v := env(s.names...); v != "" {
			if s.path {
				v = expandTilde(v)
			}
			*s.dst = v
		}
	}

	var errs error
	if name, v := env("MEETBOT_RECORDING_DURATION", "RECORDING_DURATION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, &ConfigurationError{Field: name, Reason: "must be a whole number of seconds", Err: err})
		} else {
			cfg.MaxDuration = time.Duration(n) * time.Second
		}
	}
	if name, v := env("MEETBOT_SAMPLE_RATE", "SAMPLE_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, &ConfigurationError{Field: name, Reason: "must be an integer", Err: err})
		} else {
			cfg.SampleRate = n
		}
	}
	if name, v := env("MEETBOT_CONFIRMATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = multierr.Append(errs, &ConfigurationError{Field: name, Reason: "must be an integer", Err: err})
		} else {
			cfg.Confirmations = n
		}
	}
	if name, v := env("MEETBOT_MONITOR_PARTICIPANTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = multierr.Append(errs, &ConfigurationError{Field: name, Reason: "must be true or false", Err: err})
		} else {
			cfg.MonitorParticipants = b
		}
	}
	if name, v := env("MEETBOT_CHROME_DEBUG_PORT", "CHROME_DEBUG_PORT"); v != "" {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			errs = multierr.Append(errs, &ConfigurationError{Field: name, Reason: "must be a port number", Err: err})
		} else {
			host := "localhost"
			if h, _, err := net.SplitHostPort(cfg.ChromeDebugAddr); err == nil && h != "" {
				host = h
			}
			cfg.ChromeDebugAddr = net.JoinHostPort(host, v)
		}
	}
	if v := os.Getenv("MEETBOT_ARCHIVE_ACCESS_KEY_ID"); v != "" {
		cfg.Archive.AccessKeyID = v
		cfg.Archive.SecretAccessKey = os.Getenv("MEETBOT_ARCHIVE_SECRET_ACCESS_KEY")
	}
	return errs
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks every setting and returns all problems combined.
func (cfg *Config) Validate() error {
	var errs error
	add := func(field, reason string) {
		errs = multierr.Append(errs, &ConfigurationError{Field: field, Reason: reason})
	}

	if cfg.MaxDuration <= 0 {
		add("recording_duration", "must be a positive number of seconds")
	}
	if cfg.SampleRate < 8000 || cfg.SampleRate > 192000 {
		add("sample_rate", fmt.Sprintf("%d is outside 8000-192000 Hz", cfg.SampleRate))
	}
	if cfg.Confirmations < 1 {
		add("confirmations", "must be at least 1")
	}
	if cfg.PollInterval <= 0 {
		add("poll_interval", "must be positive")
	}
	if cfg.ConfirmInterval <= 0 {
		add("confirm_interval", "must be positive")
	}
	if _, _, err := net.SplitHostPort(cfg.ChromeDebugAddr); err != nil {
		add("chrome_debug_addr", fmt.Sprintf("%q is not host:port", cfg.ChromeDebugAddr))
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		add("log_level", fmt.Sprintf("unknown level %q", cfg.LogLevel))
	}
	if f := strings.ToLower(cfg.LogFormat); f != "console" && f != "json" {
		add("log_format", fmt.Sprintf("unknown format %q", cfg.LogFormat))
	}

	switch cfg.Archive.Provider {
	case "":
	case "local":
		if cfg.Archive.Path == "" {
			add("archive.path", "required for the local provider")
		}
	case "s3":
		if cfg.Archive.Bucket == "" || cfg.Archive.Region == "" {
			add("archive", "bucket and region are required for the s3 provider")
		}
	default:
		add("archive.provider", fmt.Sprintf("unknown provider %q", cfg.Archive.Provider))
	}
	return errs
}

// Plan builds the session plan for one run. A missing or malformed
// meeting link is a ConfigurationError.
func (cfg *Config) Plan() (meeting.SessionPlan, error) {
	if err := cfg.Validate(); err != nil {
		return meeting.SessionPlan{}, err
	}
	if cfg.MeetingURL == "" {
		return meeting.SessionPlan{}, &ConfigurationError{
			Field:  "meet_link",
			Reason: "no meeting link given; pass it as an argument or set MEET_LINK",
		}
	}
	u, err := url.Parse(cfg.MeetingURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return meeting.SessionPlan{}, &ConfigurationError{
			Field:  "meet_link",
			Reason: fmt.Sprintf("%q is not an http(s) URL", cfg.MeetingURL),
			Err:    err,
		}
	}
	return meeting.SessionPlan{
		MeetingURL:      cfg.MeetingURL,
		MaxDuration:     cfg.MaxDuration,
		PollInterval:    cfg.PollInterval,
		Confirmations:   cfg.Confirmations,
		MonitorPresence: cfg.MonitorParticipants,
	}, nil
}

// IsConfigurationError reports whether err contains a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// FilePath returns the location of config.toml, whether or not it exists.
func FilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "meetbot")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "meetbot")
	} else {
		return ""
	}
	return filepath.Join(configDir, "config.toml")
}

func defaultMeetingsDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "meetings")
	}
	return filepath.Join(".", "meetings")
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "meetbot")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "meetbot")
	}
	return filepath.Join(".", ".meetbot")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
