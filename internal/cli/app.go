package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"airexport/internal/config"
	"airexport/internal/dbclient"
	"airexport/internal/domain"
	"airexport/internal/etl"
	_ "airexport/internal/etl/sources"
	"airexport/internal/logging"
	"airexport/internal/secret"
	"airexport/internal/storage"
	"airexport/internal/upload"
)

// app is the loaded configuration plus the logger built from it.
type app struct {
	cfg        *config.Config
	configFile string // file actually read, "" when running on defaults
	logger     *slog.Logger
}

// loadApp reads and validates the configuration and builds the logger.
// Logs go to the command's stderr so stdout stays clean for --json.
func loadApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, used, err := config.Load(opts.configPath)
	if err != nil {
		return nil, NewConfigError("", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, NewConfigError("", err)
	}
	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, NewConfigError("log", err)
	}
	return &app{cfg: cfg, configFile: used, logger: logger}, nil
}

// engineOptions switch off optional sinks for one invocation.
type engineOptions struct {
	outputDir string
	noUpload  bool
	noMirror  bool
}

// buildEngine wires the source, the CSV sink and the optional mirror and
// uploader. The returned close function releases the mirror connection.
// Kind mappings are validated first so drift fails before any fetch.
func (a *app) buildEngine(ctx context.Context, rec etl.Recorder, eo engineOptions) (*etl.Engine, func() error, error) {
	if err := etl.ValidateKinds(etl.Kinds()); err != nil {
		return nil, nil, NewConfigError("kinds", err)
	}

	src, err := a.newSource()
	if err != nil {
		return nil, nil, err
	}

	outputDir := a.cfg.OutputDir
	if eo.outputDir != "" {
		outputDir = eo.outputDir
	}
	engine := &etl.Engine{
		Source:   src,
		Dest:     &etl.CSVWriter{Dir: outputDir},
		Recorder: rec,
		Logger:   logging.Component(a.logger, "etl"),
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	if a.cfg.Mirror.Enabled && !eo.noMirror {
		mirror, err := a.newMirror()
		if err != nil {
			return nil, nil, err
		}
		engine.Mirror = mirror
		closers = append(closers, mirror.Close)
	}

	if a.cfg.Upload.Enabled && !eo.noUpload {
		uploader, err := upload.NewS3Uploader(ctx, upload.Config{
			Bucket:   a.cfg.Upload.Bucket,
			Region:   a.cfg.Upload.Region,
			Profile:  a.cfg.Upload.Profile,
			Endpoint: a.cfg.Upload.Endpoint,
		}, logging.Component(a.logger, "upload"))
		if err != nil {
			closeAll()
			return nil, nil, NewConfigError("upload", err)
		}
		engine.Uploader = uploader
	}

	return engine, closeAll, nil
}

func (a *app) newSource() (etl.Source, error) {
	sc := a.cfg.Source
	switch sc.Type {
	case "json_dir":
		src, err := etl.NewSource("json_dir", etl.SourceConfig{"dir": sc.FixturesDir})
		if err != nil {
			return nil, NewConfigError("source.fixtures_dir", err)
		}
		return src, nil
	default:
		token, err := a.token()
		if err != nil {
			return nil, err
		}
		src, err := etl.NewSource("airtable", etl.SourceConfig{
			"apiUrl":   sc.APIURL,
			"baseId":   sc.BaseID,
			"token":    token,
			"timeout":  sc.Timeout,
			"pageSize": sc.PageSize,
			"logger":   logging.Component(a.logger, "source"),
		})
		if err != nil {
			return nil, NewConfigError("source", err)
		}
		return src, nil
	}
}

// token reads the API token from the configured secret store. The token
// env name doubles as the keychain account.
func (a *app) token() (string, error) {
	token, err := secret.Require(a.secretStore(), a.cfg.Source.TokenEnv)
	if err != nil {
		return "", NewConfigError("source.token_source", err)
	}
	return token, nil
}

func (a *app) secretStore() secret.SecretStore {
	if a.cfg.Source.TokenSource == "keychain" {
		return secret.NewKeychainStore(a.cfg.Source.KeychainService)
	}
	return secret.NewEnvStore()
}

func (a *app) newMirror() (*dbclient.Mirror, error) {
	driver, err := domain.ParseDatabaseDriver(a.cfg.Mirror.Driver)
	if err != nil {
		return nil, NewConfigError("mirror.driver", err)
	}
	conn, err := dbclient.NewConnector(&domain.MirrorConnection{
		Driver:   driver,
		DSN:      a.cfg.Mirror.DSN,
		Database: a.cfg.Mirror.Database,
	})
	if err != nil {
		return nil, NewCommandError("mirror", err)
	}
	return dbclient.NewMirror(conn, logging.Component(a.logger, "mirror")), nil
}

// openHistory opens the run history database.
func (a *app) openHistory() (*storage.RunStore, func() error, error) {
	db, err := storage.New(a.cfg.History.Path)
	if err != nil {
		return nil, nil, NewCommandError("history", fmt.Errorf("open %s: %w", a.cfg.History.Path, err))
	}
	return storage.NewRunStore(db), db.Close, nil
}

// selectKinds returns the named kinds in run order, or every enabled kind
// when names is empty.
func (a *app) selectKinds(names []string) ([]*etl.KindSpec, error) {
	if len(names) == 0 {
		var kinds []*etl.KindSpec
		for _, k := range etl.Kinds() {
			if kc, ok := a.cfg.Kinds[k.Name]; ok && kc.Enabled {
				kinds = append(kinds, k)
			}
		}
		if len(kinds) == 0 {
			return nil, NewConfigError("kinds", errors.New("no kinds are enabled"))
		}
		return kinds, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := etl.GetKind(name); err != nil {
			return nil, NewConfigError("kind", err)
		}
		wanted[name] = true
	}
	var kinds []*etl.KindSpec
	for _, k := range etl.Kinds() {
		if wanted[k.Name] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
