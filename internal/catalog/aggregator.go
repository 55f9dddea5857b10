package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/logging"
	"github.com/chazuruo/flowdex/internal/tables"
)

// DefaultFetchTimeout bounds each table fetch of a load.
const DefaultFetchTimeout = 15 * time.Second

// State is the observable result of the latest load.
type State struct {
	// Snapshot is nil until a load succeeds, and after a load fails.
	Snapshot *Snapshot
	Loading  bool
	Err      error

	// Generation identifies the load that produced this state.
	Generation uint64
}

// Aggregator loads the catalog from a table client. It owns the published
// snapshot; only Load writes it.
type Aggregator struct {
	client       tables.Client
	opts         BuildOptions
	fetchTimeout time.Duration
	activeOnly   bool
	logger       *zap.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = logging.OrNop(l) }
}

// WithFallbackCategory sets the catch-all category name.
func WithFallbackCategory(name string) Option {
	return func(a *Aggregator) {
		if name != "" {
			a.opts.FallbackCategory = name
		}
	}
}

// WithThresholds sets the complexity thresholds.
func WithThresholds(medium, complex float64) Option {
	return func(a *Aggregator) {
		a.opts.MediumThreshold = medium
		a.opts.ComplexThreshold = complex
	}
}

// WithFetchTimeout bounds each table fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithActiveOnly restricts workflows to rows with is_active set.
func WithActiveOnly(active bool) Option {
	return func(a *Aggregator) { a.activeOnly = active }
}

// NewAggregator returns an Aggregator reading from client.
func NewAggregator(client tables.Client, opts ...Option) *Aggregator {
	a := &Aggregator{
		client:       client,
		opts:         DefaultBuildOptions(),
		fetchTimeout: DefaultFetchTimeout,
		activeOnly:   true,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Snapshot returns the current snapshot, or nil.
func (a *Aggregator) Snapshot() *Snapshot {
	return a.State().Snapshot
}

// Load fetches and merges the catalog and publishes it.
//
// Starting a load cancels any load still in flight. A load that has been
// superseded never publishes its result and returns ErrSuperseded.
func (a *Aggregator) Load(ctx context.Context) (*Snapshot, error) {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.gen++
	gen := a.gen
	loadCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.state.Loading = true
	a.state.Generation = gen
	a.mu.Unlock()
	defer cancel()

	start := time.Now()
	rows, err := a.fetch(loadCtx)

	var snap *Snapshot
	if err == nil {
		snap = Build(rows, a.opts)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen {
		a.logger.Debug("discarding superseded catalog load",
			zap.Uint64("generation", gen),
			zap.Uint64("current", a.gen),
		)
		return nil, &fxerrors.CatalogError{Op: "load", Err: fxerrors.ErrSuperseded}
	}
	a.cancel = nil

	if err != nil {
		a.state = State{Err: err, Generation: gen}
		a.logger.Error("catalog load failed", zap.Uint64("generation", gen), zap.Error(err))
		return nil, err
	}

	a.state = State{Snapshot: snap, Generation: gen}
	a.logger.Info("catalog loaded",
		zap.Uint64("generation", gen),
		zap.Int("categories", len(snap.Categories)),
		zap.Int("workflows", len(snap.Workflows)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snap, nil
}

// fetch runs every table query of a load concurrently. Categories and
// workflows are mandatory; the auxiliary tables degrade to empty sets.
func (a *Aggregator) fetch(ctx context.Context) (Rows, error) {
	var rows Rows
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		records, err := a.selectTable(gctx, tables.Query{Table: tables.TableCategories, OrderBy: "name"})
		if err != nil {
			return a.loadError(ctx, tables.TableCategories, err)
		}
		rows.Categories = decode[tables.CategoryRow](a.logger, tables.TableCategories, records)
		return nil
	})

	g.Go(func() error {
		q := tables.Query{
			Table:   tables.TableWorkflows,
			Join:    &tables.Join{Table: tables.TableCategories, ForeignKey: "category_id", Columns: []string{"name"}},
			OrderBy: "name",
		}
		if a.activeOnly {
			q.Eq = map[string]any{"is_active": true}
		}
		records, err := a.selectTable(gctx, q)
		if err != nil {
			return a.loadError(ctx, tables.TableWorkflows, err)
		}
		rows.Workflows = decode[tables.WorkflowRow](a.logger, tables.TableWorkflows, records)
		return nil
	})

	g.Go(func() error {
		records := a.selectAux(gctx, tables.Query{Table: tables.TableRawFiles, OrderBy: "file_path"})
		rows.Files = decode[tables.RawFileRow](a.logger, tables.TableRawFiles, records)
		return nil
	})

	g.Go(func() error {
		records := a.selectAux(gctx, tables.Query{Table: tables.TableTags, OrderBy: "usage_count", Descending: true})
		rows.Tags = decode[tables.TagRow](a.logger, tables.TableTags, records)
		return nil
	})

	g.Go(func() error {
		records := a.selectAux(gctx, tables.Query{Table: tables.TableWorkflowTags})
		rows.WorkflowTags = decode[tables.WorkflowTagRow](a.logger, tables.TableWorkflowTags, records)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Rows{}, err
	}
	return rows, nil
}

func (a *Aggregator) selectTable(ctx context.Context, q tables.Query) ([]tables.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()
	return a.client.Select(ctx, q)
}

func (a *Aggregator) selectAux(ctx context.Context, q tables.Query) []tables.Record {
	records, err := a.selectTable(ctx, q)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("auxiliary table unavailable, continuing without it",
				zap.String("table", q.Table),
				zap.Error(err),
			)
		}
		return nil
	}
	return records
}

// loadError classifies a mandatory fetch failure. Cancellation by the
// caller stays a cancellation; everything else makes the catalog unavailable.
func (a *Aggregator) loadError(parent context.Context, table string, err error) error {
	if parent.Err() != nil && errors.Is(err, context.Canceled) {
		return &fxerrors.CatalogError{Op: "load", Table: table, Err: fxerrors.Mark(err, fxerrors.ErrCanceled)}
	}
	if fxerrors.IsUnavailable(err) {
		return &fxerrors.CatalogError{Op: "load", Table: table, Err: err}
	}
	return &fxerrors.CatalogError{Op: "load", Table: table, Err: fxerrors.Mark(err, fxerrors.ErrUnavailable)}
}

func decode[T any, P tables.Row[T]](logger *zap.Logger, table string, records []tables.Record) []T {
	rows, rejected := tables.Decode[T, P](records)
	for _, r := range rejected {
		logger.Warn("skipping malformed row",
			zap.String("table", table),
			zap.Int("index", r.Index),
			zap.Error(r.Err),
		)
	}
	return rows
}
