package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/flemzord/stockchat/internal/config"
	"github.com/flemzord/stockchat/internal/conversation"
	"github.com/flemzord/stockchat/internal/notify"
	"github.com/flemzord/stockchat/internal/remote"
	"github.com/flemzord/stockchat/internal/security"
	"github.com/flemzord/stockchat/internal/store"
	"github.com/flemzord/stockchat/internal/store/sqlite"
	"github.com/flemzord/stockchat/internal/telemetry"
)

// runtime holds everything a command needs once the configuration is loaded.
type runtime struct {
	cfg       *config.Config
	cfgPath   string
	logger    *slog.Logger
	redactor  *security.Redactor
	telemetry *telemetry.Telemetry
	client    *remote.Client
	manager   *conversation.Manager

	closers []func() error
}

// openRuntime loads the configuration and builds the manager. The manager is
// initialized, so the persisted conversation and the remote configuration are
// already in place when it returns.
func openRuntime(cmd *cobra.Command) (*runtime, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	explicit, _ := cmd.Flags().GetString("config")
	cfg, cfgPath, err := config.LoadOrDefault(explicit)
	if err != nil {
		return nil, err
	}
	if ephemeral, _ := cmd.Flags().GetBool("ephemeral"); ephemeral {
		cfg.Store.Ephemeral = true
		cfg.Store.Path = ""
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	redactor := security.NewRedactor()
	registerSecrets(redactor, cfg)
	logger := slog.New(security.NewRedactingHandler(
		slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}),
		redactor,
	))

	rt := &runtime{cfg: cfg, cfgPath: cfgPath, logger: logger, redactor: redactor}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		return nil, err
	}
	rt.telemetry = tel
	if cfg.Telemetry.MetricsAddr != "" {
		if _, err := tel.Serve(cfg.Telemetry.MetricsAddr); err != nil {
			rt.Close()
			return nil, err
		}
	}

	backend, err := rt.openBackend(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	timeout, _ := cfg.Remote.ParsedTimeout()
	client, err := remote.New(remote.Options{
		BaseURL:        cfg.Remote.BaseURL,
		Timeout:        timeout,
		Logger:         logger,
		Metrics:        remote.NewMetrics(tel.Registry),
		TracerProvider: tel.TracerProvider,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.client = client

	mgr, err := conversation.New(conversation.Options{
		Service:  client,
		Store:    store.New(backend, logger),
		Notifier: notify.NewWriterNotifier(cmd.ErrOrStderr()),
		Redactor: redactor,
		Logger:   logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	if err := mgr.Initialize(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	rt.manager = mgr
	return rt, nil
}

// registerSecrets teaches the redactor the secrets carried by the client
// configuration itself: a password embedded in remote.base_url.
func registerSecrets(r *security.Redactor, cfg *config.Config) {
	u, err := url.Parse(cfg.Remote.BaseURL)
	if err != nil || u.User == nil {
		return
	}
	if password, ok := u.User.Password(); ok {
		r.AddLiteral(password)
	}
}

func (rt *runtime) openBackend(ctx context.Context) (store.Backend, error) {
	if rt.cfg.Store.Ephemeral {
		rt.logger.Debug("store: using in-memory backend")
		return store.NewMemoryBackend(), nil
	}

	path := rt.cfg.Store.Path
	if path == "" {
		path = filepath.Join(config.DefaultDataDir(), sqlite.DefaultFile)
	}
	backend, err := sqlite.Open(ctx, sqlite.Config{
		Path:        path,
		WAL:         rt.cfg.Store.WAL,
		BusyTimeout: rt.cfg.Store.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, backend.Close)
	rt.logger.Debug("store: using sqlite backend", "path", path)
	return backend, nil
}

// Close releases the store and flushes telemetry.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("closing runtime", "error", err)
		}
	}
	rt.closers = nil
	if rt.telemetry != nil {
		if err := rt.telemetry.Shutdown(context.Background()); err != nil {
			rt.logger.Warn("shutting down telemetry", "error", err)
		}
	}
}

// withRuntime adapts fn into a cobra RunE that opens and closes a runtime.
func withRuntime(fn func(cmd *cobra.Command, args []string, rt *runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd, args, rt)
	}
}
