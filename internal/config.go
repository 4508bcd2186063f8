package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hbomb79/Siphon/internal/api"
	"github.com/hbomb79/Siphon/internal/ffmpeg"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

const (
	BackendYtDlp  = "ytdlp"
	BackendNative = "native"

	SIPHON_USER_DIR_SUFFIX = "siphon"
)

// SiphonConfig is the struct used to contain the
// various user config supplied by file, environment,
// or manually inside the code.
type SiphonConfig struct {
	RestConfig  api.RestConfig      `yaml:"rest"`
	RateLimit   api.RateLimitConfig `yaml:"rate_limit"`
	Extractor   ExtractorConfig     `yaml:"extractor"`
	Transcoder  ffmpeg.Config       `yaml:"transcoder"`
	Staging     StagingConfig       `yaml:"staging"`
	Concurrency ConcurrencyConfig   `yaml:"concurrency"`
	LogLevel    string              `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
}

// ExtractorConfig selects and configures the backend used to enumerate and
// fetch formats.
type ExtractorConfig struct {
	Backend       string        `yaml:"backend" env:"EXTRACTOR_BACKEND" env-default:"ytdlp"`
	YtDlpPath     string        `yaml:"ytdlp_binary" env:"EXTRACTOR_YTDLP_BINARY_PATH" env-default:"yt-dlp"`
	SocketTimeout time.Duration `yaml:"socket_timeout" env:"EXTRACTOR_SOCKET_TIMEOUT" env-default:"30s"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" env:"EXTRACTOR_FETCH_TIMEOUT" env-default:"30m"`

	// Outbound throttle shared by every enumeration. A zero rate disables it.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"EXTRACTOR_RPS" env-default:"2"`
	Burst             int     `yaml:"burst" env:"EXTRACTOR_BURST" env-default:"4"`
}

// StagingConfig controls where produced files are written and how long
// they are kept.
type StagingConfig struct {
	Dir           string        `yaml:"dir" env:"STAGING_DIR"`
	MaxFileSizeMB int           `yaml:"max_file_size_mb" env:"STAGING_MAX_FILE_SIZE_MB" env-default:"500"`
	CleanupDelay  time.Duration `yaml:"cleanup_delay" env:"STAGING_CLEANUP_DELAY" env-default:"5m"`
	SweepMaxAge   time.Duration `yaml:"sweep_max_age" env:"STAGING_SWEEP_MAX_AGE" env-default:"1h"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"STAGING_SWEEP_INTERVAL" env-default:"10m"`
}

// ConcurrencyConfig is a subset of the configuration that focuses
// only on the concurrency related configs.
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" env:"CONCURRENCY_WORKERS" env-default:"4"`
}

// LoadConfig reads the configuration from the YAML file at configPath (if
// one is provided) and the environment. Environment variables take precedence
// over the file, and defaults fill in anything left unset.
func LoadConfig(configPath string) (*SiphonConfig, error) {
	config := &SiphonConfig{}
	if configPath != "" {
		if err := cleanenv.ReadConfig(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
	} else if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (config *SiphonConfig) validate() error {
	switch config.Extractor.Backend {
	case BackendYtDlp, BackendNative:
	default:
		return fmt.Errorf("unknown extractor backend %q (expected %q or %q)", config.Extractor.Backend, BackendYtDlp, BackendNative)
	}

	if config.Concurrency.Workers < 1 {
		return fmt.Errorf("concurrency.workers must be at least 1, got %d", config.Concurrency.Workers)
	}

	return nil
}

// StagingDir returns the directory produced files are written to. It will
// first look to the config for a value (expanding a leading '~'), but if none
// is found a default beneath the user cache directory is used.
func (config *SiphonConfig) StagingDir() (string, error) {
	if config.Staging.Dir != "" {
		dir, err := homedir.Expand(config.Staging.Dir)
		if err != nil {
			return "", fmt.Errorf("failed to expand staging dir %s: %w", config.Staging.Dir, err)
		}

		return filepath.Clean(dir), nil
	}

	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), SIPHON_USER_DIR_SUFFIX, "downloads"), nil
	}

	return filepath.Join(dir, SIPHON_USER_DIR_SUFFIX, "downloads"), nil
}
