package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/richsynapse/synapsehub-client/internal/account"
	"github.com/richsynapse/synapsehub-client/internal/chat"
	"github.com/richsynapse/synapsehub-client/internal/client"
	"github.com/richsynapse/synapsehub-client/internal/config"
	"github.com/richsynapse/synapsehub-client/internal/credstore"
	"github.com/richsynapse/synapsehub-client/internal/credstore/postgres"
	"github.com/richsynapse/synapsehub-client/internal/credstore/sqlite"
	"github.com/richsynapse/synapsehub-client/internal/logging"
	"github.com/richsynapse/synapsehub-client/internal/stream"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configDir string
	baseURL   string
	logLevel  string
	encoding  string
}

// app holds the services one command invocation works with.
type app struct {
	cfg     config.ClientConfig
	logger  *zap.Logger
	store   credstore.Store
	db      *sql.DB
	api     *client.APIClient
	account *account.Service
	chat    *chat.Service

	closers []io.Closer
}

func loadConfig(opts globalOptions) (config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(opts.configDir)
	if err != nil {
		return config.ClientConfig{}, fmt.Errorf("load config: %w", err)
	}
	if opts.baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.baseURL, "/")
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.encoding != "" {
		if cfg.ParamEncoding, err = stream.ParseEncoding(opts.encoding); err != nil {
			return config.ClientConfig{}, err
		}
	}
	return cfg, nil
}

func newApp(opts globalOptions, stderr io.Writer) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		Environment: cfg.Environment,
		Console:     stderr,
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	a.store, a.db, err = openStore(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.store)

	a.api, err = client.New(client.Options{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.RequestTimeout,
		TokenCookie: cfg.CredentialCookie,
		Logger:      logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.account = account.NewService(a.api, a.store, cfg.CredentialCookie, logger)

	endpoints, err := config.LoadEndpoints(cfg.EndpointsFile)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	streamCfg := cfg.StreamConfig()
	streamCfg.Credentials = a.account
	streamCfg.Logger = logger
	streams, err := stream.NewClient(streamCfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.chat = chat.NewService(streams, endpoints, logger)

	logger.Debug("client ready",
		zap.String("base_url", cfg.BaseURL),
		zap.String("encoding", string(cfg.ParamEncoding)),
		zap.String("validation", string(cfg.Validation)),
		zap.String("credential_store", cfg.CredentialStore))
	return a, nil
}

func openStore(cfg config.ClientConfig) (credstore.Store, *sql.DB, error) {
	switch cfg.CredentialStore {
	case "memory":
		return credstore.NewMemory(), nil, nil
	case "postgres":
		s, err := postgres.New(cfg.CredentialDSN, cfg.Environment)
		if err != nil {
			return nil, nil, err
		}
		return s, s.DB(), nil
	default:
		s, err := sqlite.New(cfg.CredentialPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.DB(), nil
	}
}

// Close releases the store and flushes the logger.
func (a *app) Close() error {
	var errs []error
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
