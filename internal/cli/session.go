package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chazuruo/flowdex/internal/catalog"
	"github.com/chazuruo/flowdex/internal/config"
	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/index"
	"github.com/chazuruo/flowdex/internal/logging"
	"github.com/chazuruo/flowdex/internal/tables"
	"github.com/chazuruo/flowdex/internal/tables/memstore"
	"github.com/chazuruo/flowdex/internal/tables/postgrest"
	"github.com/chazuruo/flowdex/internal/tables/sqlstore"
)

// session is the per-command runtime: loaded config, logger and table client.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	client tables.Client

	closers []func() error
}

// loadConfig loads the config named by g and applies the flag overrides.
func loadConfig(g GlobalOptions) (*config.Config, error) {
	cfg, err := config.LoadWithDefaults(g.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if g.Backend != "" {
		cfg.Remote.Backend = g.Backend
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// openSession loads config, builds the logger and connects the table client.
// The caller must Close the session.
func openSession(ctx context.Context, g GlobalOptions) (*session, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger}
	s.client, err = s.connect(ctx)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return s, nil
}

func (s *session) connect(ctx context.Context) (tables.Client, error) {
	switch s.cfg.Remote.Backend {
	case config.BackendMemory:
		return s.memoryStore(ctx)

	case config.BackendSQLite:
		store, err := sqlstore.Open(ctx, s.cfg.Database.Path, sqlstore.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		return store, nil

	case config.BackendPostgREST:
		client, err := postgrest.New(s.cfg.Remote.URL, s.cfg.APIKey(),
			postgrest.WithTimeout(s.cfg.Remote.Timeout.Duration),
			postgrest.WithMaxRetries(s.cfg.Remote.MaxRetries),
			postgrest.WithLogger(s.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgREST client: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown backend: %s", s.cfg.Remote.Backend)
	}
}

// aggregator returns a catalog aggregator configured from the session config.
func (s *session) aggregator() *catalog.Aggregator {
	c := s.cfg.Catalog
	return catalog.NewAggregator(s.client,
		catalog.WithLogger(s.logger),
		catalog.WithFallbackCategory(c.FallbackCategory),
		catalog.WithThresholds(float64(c.MediumThreshold), float64(c.ComplexThreshold)),
		catalog.WithFetchTimeout(c.FetchTimeout.Duration),
		catalog.WithActiveOnly(c.ActiveOnly),
	)
}

// loadCatalog runs one catalog load.
func (s *session) loadCatalog(ctx context.Context) (*catalog.Snapshot, error) {
	snap, err := s.aggregator().Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return snap, nil
}

// Close releases the table client and flushes the logger.
func (s *session) Close() error {
	var firstErr error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = s.logger.Sync()
	return firstErr
}

// memoryStore builds a throwaway store holding an index of the download
// root, so local files can be browsed without a database. Nothing written
// to it outlives the command.
func (s *session) memoryStore(ctx context.Context) (tables.Client, error) {
	store := memstore.New()
	builder := index.NewBuilder(store,
		index.WithMaxInlineBytes(s.cfg.Index.MaxInlineBytes),
		index.WithBatchSize(s.cfg.Index.BatchSize),
		index.WithLogger(s.logger),
	)
	if _, err := builder.Sync(ctx, s.cfg.Download.Root); err != nil {
		if !fxerrors.IsNotFound(err) {
			return nil, fmt.Errorf("failed to index %s: %w", s.cfg.Download.Root, err)
		}
		s.logger.Debug("download root missing, memory catalog is empty",
			zap.String("root", s.cfg.Download.Root))
	}
	return store, nil
}
