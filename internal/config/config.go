package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the full exporter configuration.
type Config struct {
	Source    SourceConfig          `mapstructure:"source" yaml:"source"`
	OutputDir string                `mapstructure:"output_dir" yaml:"output_dir"`
	Upload    UploadConfig          `mapstructure:"upload" yaml:"upload"`
	Mirror    MirrorConfig          `mapstructure:"mirror" yaml:"mirror"`
	History   HistoryConfig         `mapstructure:"history" yaml:"history"`
	Log       LogConfig             `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig         `mapstructure:"metrics" yaml:"metrics"`
	Kinds     map[string]KindConfig `mapstructure:"kinds" yaml:"kinds"`
}

// SourceConfig selects where rows are fetched from.
type SourceConfig struct {
	Type            string        `mapstructure:"type" yaml:"type"` // airtable | json_dir
	BaseID          string        `mapstructure:"base_id" yaml:"base_id"`
	APIURL          string        `mapstructure:"api_url" yaml:"api_url"`
	TokenEnv        string        `mapstructure:"token_env" yaml:"token_env"`
	TokenSource     string        `mapstructure:"token_source" yaml:"token_source"` // env | keychain
	KeychainService string        `mapstructure:"keychain_service" yaml:"keychain_service"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageSize        int           `mapstructure:"page_size" yaml:"page_size"`
	FixturesDir     string        `mapstructure:"fixtures_dir" yaml:"fixtures_dir"`
}

// UploadConfig configures archiving to S3.
type UploadConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Region   string `mapstructure:"region" yaml:"region"`
	Profile  string `mapstructure:"profile" yaml:"profile"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// MirrorConfig configures the optional database mirror.
type MirrorConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Driver   string `mapstructure:"driver" yaml:"driver"`
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Database string `mapstructure:"database" yaml:"database,omitempty"`
}

// HistoryConfig locates the run history database.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint served by `schedule`.
type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// KindConfig enables a built-in kind and sets its schedule.
type KindConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
}

// Default values.
const (
	DefaultSourceType  = "airtable"
	DefaultBaseID      = "appBRLEUdTlfhgkUZ"
	DefaultAPIURL      = "https://api.airtable.com/v0"
	DefaultTokenEnv    = "AIRTABLE_BEARER_KEY"
	DefaultTokenSource = "env"
	DefaultTimeout     = 30 * time.Second
	DefaultPageSize    = 100
	DefaultRegion      = "us-east-1"
	DefaultProfile     = "pathstream"
	DefaultMirrorDrv   = "sqlite"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultSchedule    = "0 6 * * *"
)

// DefaultHistoryPath returns $XDG_DATA_HOME/airexport/history.db, falling
// back to ~/.local/share.
func DefaultHistoryPath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".airexport", "history.db")
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "airexport", "history.db")
}

// EnabledKinds returns the names of enabled kinds.
func (c *Config) EnabledKinds() []string {
	var out []string
	for name, k := range c.Kinds {
		if k.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// DefaultYAML is written by `config init`.
const DefaultYAML = `# airexport configuration
# Every key can be overridden by an AIREXPORT_ environment variable,
# e.g. AIREXPORT_OUTPUT_DIR or AIREXPORT_UPLOAD_BUCKET.

source:
  type: airtable            # airtable | json_dir
  base_id: appBRLEUdTlfhgkUZ
  api_url: https://api.airtable.com/v0
  token_env: AIRTABLE_BEARER_KEY
  token_source: env         # env | keychain
  timeout: 30s
  page_size: 100
  # fixtures_dir: ./fixtures  # used when type is json_dir

output_dir: .

upload:
  enabled: false
  bucket: ""
  region: us-east-1
  profile: pathstream
  # endpoint: http://localhost:9000

mirror:
  enabled: false
  driver: sqlite            # sqlite | mysql | postgres | mongodb
  dsn: ""
  # database: exports       # mongodb only

# history:
#   path: ~/.local/share/airexport/history.db

log:
  level: info
  format: text

metrics:
  listen: ""                # e.g. :9108, served by "airexport schedule"

kinds:
  purchases:
    enabled: true
    schedule: "0 6 * * *"
  enrollments:
    enabled: true
    schedule: "0 6 * * *"
`
