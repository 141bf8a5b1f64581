package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"airexport/internal/etl"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AIREXPORT"

// Load reads configuration from path, or from the first existing default
// location when path is empty. A missing default file is not an error.
// It returns the config and the file actually read ("" when none).
func Load(path string) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, "", fmt.Errorf("config file not found: %s", path)
			}
			return nil, "", fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}
	return cfg, v.ConfigFileUsed(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.type", DefaultSourceType)
	v.SetDefault("source.base_id", DefaultBaseID)
	v.SetDefault("source.api_url", DefaultAPIURL)
	v.SetDefault("source.token_env", DefaultTokenEnv)
	v.SetDefault("source.token_source", DefaultTokenSource)
	v.SetDefault("source.keychain_service", "airexport")
	v.SetDefault("source.timeout", DefaultTimeout)
	v.SetDefault("source.page_size", DefaultPageSize)
	v.SetDefault("source.fixtures_dir", "")
	v.SetDefault("output_dir", ".")
	v.SetDefault("upload.enabled", false)
	v.SetDefault("upload.bucket", "")
	v.SetDefault("upload.region", DefaultRegion)
	v.SetDefault("upload.profile", DefaultProfile)
	v.SetDefault("upload.endpoint", "")
	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.driver", DefaultMirrorDrv)
	v.SetDefault("mirror.dsn", "")
	v.SetDefault("mirror.database", "")
	v.SetDefault("history.path", DefaultHistoryPath())
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("metrics.listen", "")
	for _, k := range etl.Kinds() {
		v.SetDefault("kinds."+k.Name+".enabled", true)
		v.SetDefault("kinds."+k.Name+".schedule", DefaultSchedule)
	}
}

// findConfigFile returns ./airexport.yaml or the XDG config file,
// whichever exists first.
func findConfigFile() string {
	candidates := []string{"airexport.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "airexport", "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// WriteDefault writes DefaultYAML to path. It refuses to overwrite.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, []byte(DefaultYAML), 0o644)
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
