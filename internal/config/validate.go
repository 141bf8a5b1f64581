package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"airexport/internal/domain"
	"airexport/internal/etl"
)

// FieldError is a validation failure for one configuration field.
type FieldError struct {
	Field   string // dotted path, e.g. "upload.bucket"
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid configuration: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid configuration (%d errors):", len(e.Errors))
	for _, fe := range e.Errors {
		sb.WriteString("\n  - " + fe.Error())
	}
	return sb.String()
}

// Validate checks cfg and returns a *ValidationError listing every problem.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch cfg.Source.Type {
	case "airtable":
		if cfg.Source.BaseID == "" {
			add("source.base_id", "required for airtable source")
		}
		if u, err := url.Parse(cfg.Source.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
			add("source.api_url", "must be an absolute URL, got %q", cfg.Source.APIURL)
		}
		switch cfg.Source.TokenSource {
		case "env":
			if cfg.Source.TokenEnv == "" {
				add("source.token_env", "required when token_source is env")
			}
		case "keychain":
		default:
			add("source.token_source", "must be env or keychain, got %q", cfg.Source.TokenSource)
		}
	case "json_dir":
		if cfg.Source.FixturesDir == "" {
			add("source.fixtures_dir", "required for json_dir source")
		}
	default:
		add("source.type", "must be airtable or json_dir, got %q", cfg.Source.Type)
	}
	if cfg.Source.Timeout <= 0 {
		add("source.timeout", "must be positive")
	}
	if cfg.Source.PageSize < 1 || cfg.Source.PageSize > 100 {
		add("source.page_size", "must be between 1 and 100, got %d", cfg.Source.PageSize)
	}

	if cfg.OutputDir == "" {
		add("output_dir", "required")
	}
	if cfg.Upload.Enabled && cfg.Upload.Bucket == "" {
		add("upload.bucket", "required when upload is enabled")
	}
	if cfg.Mirror.Enabled {
		if _, err := domain.ParseDatabaseDriver(cfg.Mirror.Driver); err != nil {
			add("mirror.driver", "%v", err)
		}
		if cfg.Mirror.DSN == "" {
			add("mirror.dsn", "required when mirror is enabled")
		}
	}
	if cfg.History.Path == "" {
		add("history.path", "required")
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "unknown level %q", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "must be text or json, got %q", cfg.Log.Format)
	}

	names := make([]string, 0, len(cfg.Kinds))
	for name := range cfg.Kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field := "kinds." + name
		if _, err := etl.GetKind(name); err != nil {
			add(field, "unknown kind")
			continue
		}
		k := cfg.Kinds[name]
		if k.Schedule == "" {
			continue
		}
		if _, err := cron.ParseStandard(k.Schedule); err != nil {
			add(field+".schedule", "invalid cron expression: %v", err)
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}
