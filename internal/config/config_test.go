package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "airexport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, used, err := Load("")

	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, "airtable", cfg.Source.Type)
	assert.Equal(t, DefaultBaseID, cfg.Source.BaseID)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
	assert.Equal(t, "pathstream", cfg.Upload.Profile)
	assert.True(t, cfg.Kinds["purchases"].Enabled)
	assert.Equal(t, DefaultSchedule, cfg.Kinds["enrollments"].Schedule)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
source:
  timeout: 5s
  page_size: 50
output_dir: /tmp/exports
upload:
  enabled: true
  bucket: from-file
kinds:
  enrollments:
    enabled: false
`)
	t.Setenv("AIREXPORT_UPLOAD_BUCKET", "from-env")

	cfg, used, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 50, cfg.Source.PageSize)
	assert.Equal(t, "/tmp/exports", cfg.OutputDir)
	assert.Equal(t, "from-env", cfg.Upload.Bucket)
	assert.False(t, cfg.Kinds["enrollments"].Enabled)
	assert.Equal(t, []string{"purchases"}, cfg.EnabledKinds())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultYAMLMatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "airexport.yaml")
	require.NoError(t, WriteDefault(path))
	assert.ErrorContains(t, WriteDefault(path), "already exists")

	fromFile, _, err := Load(path)
	require.NoError(t, err)
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	fromDefaults, _, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, fromDefaults, fromFile)
}

func TestValidate_CollectsEveryError(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, `
source:
  type: airtable
  api_url: not-a-url
  token_source: vault
  page_size: 500
upload:
  enabled: true
mirror:
  enabled: true
  driver: oracle
log:
  format: xml
kinds:
  refunds:
    enabled: true
  purchases:
    schedule: "every day"
`))
	require.NoError(t, err)

	err = Validate(cfg)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]bool{}
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, f := range []string{
		"source.api_url", "source.token_source", "source.page_size", "upload.bucket",
		"mirror.driver", "mirror.dsn", "log.format", "kinds.refunds", "kinds.purchases.schedule",
	} {
		assert.True(t, fields[f], "expected error for %s", f)
	}
}

func TestValidate_JSONDirNeedsFixtures(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, "source:\n  type: json_dir\n"))
	require.NoError(t, err)

	err = Validate(cfg)

	assert.ErrorContains(t, err, "source.fixtures_dir")
}

func TestConfig_YAML(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, "output_dir: out\n"))
	require.NoError(t, err)

	data, err := cfg.YAML()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, "out", back.OutputDir)
	assert.Equal(t, cfg.Source.Timeout, back.Source.Timeout)
}
