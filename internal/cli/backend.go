package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/cosmongo/internal/config"
	"github.com/roach88/cosmongo/internal/cosmos"
	"github.com/roach88/cosmongo/internal/docstore"
	"github.com/roach88/cosmongo/internal/mongostore"
	"github.com/roach88/cosmongo/internal/store"
)

// loadConfig reads and validates the configuration and installs the
// slog handler. --verbose forces debug logging.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{Fs: opts.Fs, ConfigFile: opts.ConfigFile})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}

// opener returns the backend constructor for cfg's URI scheme.
func opener(cfg *config.Config) (cosmos.Opener, error) {
	kind, err := cfg.BackendKind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case config.BackendMongo:
		return func(ctx context.Context) (docstore.Backend, error) {
			if cfg.ConnectTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
				defer cancel()
			}
			return mongostore.Open(ctx, mongostore.Options{
				URI:            cfg.URI,
				MaxPoolSize:    cfg.MaxPoolSize,
				MinPoolSize:    cfg.MinPoolSize,
				ConnectTimeout: cfg.ConnectTimeout,
			})
		}, nil
	case config.BackendSQLite:
		path := cfg.SQLitePath()
		return func(ctx context.Context) (docstore.Backend, error) {
			return store.Open(path)
		}, nil
	}
	return nil, fmt.Errorf("unsupported backend %q", kind)
}

// withDatabase loads the configuration, connects, and runs fn against
// the configured database. The connection is closed when fn returns or
// on SIGINT/SIGTERM.
func withDatabase(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, db *cosmos.Database) error) error {
	f := opts.formatter(cmd)

	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	open, err := opener(cfg)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	conn := cosmos.NewConnection(open)
	stop := conn.CloseOnSignal(ctx)
	defer stop()

	client := cosmos.NewClient(conn)
	defer func() {
		if err := client.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Error("error closing backend", "error", err)
		}
	}()

	redacted := cfg.Redacted()
	slog.Debug("backend configured", "uri", redacted.URI, "database", cfg.Database)
	if _, err := conn.Backend(ctx); err != nil {
		_ = f.Error(ErrCodeBackend, err.Error(), nil)
		return WrapExitError(ExitCommandError, "backend unavailable", err)
	}
	return fn(ctx, client.Database(cfg.Database))
}
