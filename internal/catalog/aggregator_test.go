package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/tables"
	"github.com/chazuruo/flowdex/internal/tables/memstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seededStore() *memstore.Store {
	s := memstore.New()
	s.Seed(tables.TableCategories,
		tables.Record{"id": "ai-ml", "name": "AI_ML", "workflow_count": 42},
	)
	s.Seed(tables.TableWorkflows,
		tables.Record{"id": 1, "name": "Foo", "category_id": "ai-ml", "is_active": true},
		tables.Record{"id": 2, "name": "Bar", "category_id": "unknown", "is_active": true},
		tables.Record{"id": 3, "name": "Retired", "category_id": "ai-ml", "is_active": false},
	)
	s.Seed(tables.TableTags,
		tables.Record{"id": "t1", "name": "openai", "usage_count": 4},
	)
	s.Seed(tables.TableWorkflowTags,
		tables.Record{"workflow_id": 1, "tag_id": "t1"},
	)
	return s
}

func TestLoad_Scenario(t *testing.T) {
	agg := NewAggregator(seededStore())

	snap, err := agg.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Categories, 2)
	assert.Equal(t, "ai-ml", snap.Categories[0].ID)
	assert.Equal(t, 1, snap.Categories[0].WorkflowCount)
	assert.Equal(t, "Foo", snap.Categories[0].Workflows[0].Name)
	assert.Equal(t, []string{"openai"}, snap.Categories[0].Workflows[0].Tags)
	assert.Equal(t, "Other", snap.Categories[1].Name)
	assert.Equal(t, "Bar", snap.Categories[1].Workflows[0].Name)

	state := agg.State()
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
	assert.Same(t, snap, state.Snapshot)
	assert.Equal(t, uint64(1), state.Generation)
}

func TestLoad_InactiveWorkflows(t *testing.T) {
	agg := NewAggregator(seededStore(), WithActiveOnly(false))

	snap, err := agg.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Total())
}

func TestLoad_Idempotent(t *testing.T) {
	agg := NewAggregator(seededStore())

	first, err := agg.Load(context.Background())
	require.NoError(t, err)
	second, err := agg.Load(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("reload changed the catalog (-first +second):\n%s", diff)
	}
	assert.Equal(t, uint64(2), agg.State().Generation)
}

func TestLoad_MandatoryFailure(t *testing.T) {
	for _, table := range []string{tables.TableCategories, tables.TableWorkflows} {
		t.Run(table, func(t *testing.T) {
			store := seededStore()
			agg := NewAggregator(store)

			_, err := agg.Load(context.Background())
			require.NoError(t, err)

			boom := errors.New("connection reset")
			store.SetHook(func(_ context.Context, op, tbl string) error {
				if tbl == table {
					return boom
				}
				return nil
			})

			snap, err := agg.Load(context.Background())
			require.Error(t, err)
			assert.Nil(t, snap)
			assert.True(t, fxerrors.IsUnavailable(err))
			assert.ErrorIs(t, err, boom)

			ce, ok := fxerrors.AsCatalogError(err)
			require.True(t, ok)
			assert.Equal(t, "load", ce.Op)
			assert.Equal(t, table, ce.Table)

			state := agg.State()
			assert.Nil(t, state.Snapshot, "a failed load discards the previous catalog")
			assert.Equal(t, err, state.Err)
			assert.False(t, state.Loading)
		})
	}
}

func TestLoad_AuxFailureDegrades(t *testing.T) {
	store := seededStore()
	store.SetHook(func(_ context.Context, op, table string) error {
		switch table {
		case tables.TableTags, tables.TableRawFiles, tables.TableWorkflowTags:
			return fxerrors.Mark(errors.New("timeout"), fxerrors.ErrUnavailable)
		}
		return nil
	})

	core, logs := observer.New(zap.WarnLevel)
	agg := NewAggregator(store, WithLogger(zap.New(core)))

	snap, err := agg.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Total())
	assert.Empty(t, snap.Tags)
	assert.Empty(t, snap.Workflows[0].Tags)

	assert.Equal(t, 3, logs.FilterMessage("auxiliary table unavailable, continuing without it").Len())
}

func TestLoad_SkipsMalformedRows(t *testing.T) {
	store := seededStore()
	store.Seed(tables.TableWorkflows, tables.Record{"name": "No ID", "is_active": true})

	core, logs := observer.New(zap.WarnLevel)
	agg := NewAggregator(store, WithLogger(zap.New(core)))

	snap, err := agg.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Total())
	assert.Equal(t, 1, logs.FilterMessage("skipping malformed row").Len())
}

func TestLoad_FetchTimeout(t *testing.T) {
	store := seededStore()
	store.SetHook(func(ctx context.Context, op, table string) error {
		if table == tables.TableWorkflows {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	agg := NewAggregator(store, WithFetchTimeout(20*time.Millisecond))
	_, err := agg.Load(context.Background())
	require.Error(t, err)
	assert.True(t, fxerrors.IsUnavailable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoad_CallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := NewAggregator(seededStore())
	_, err := agg.Load(ctx)
	require.Error(t, err)
	assert.True(t, fxerrors.IsCanceled(err))
}

func TestLoad_SupersededLoadIsDiscarded(t *testing.T) {
	store := seededStore()

	var calls atomic.Int32
	blocked := make(chan struct{})
	release := make(chan struct{})
	store.SetHook(func(ctx context.Context, op, table string) error {
		if table != tables.TableCategories {
			return nil
		}
		if calls.Add(1) == 1 {
			close(blocked)
			// Ignore cancellation so the stale load completes late.
			<-release
		}
		return nil
	})

	agg := NewAggregator(store)

	var (
		wg       sync.WaitGroup
		staleErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, staleErr = agg.Load(context.Background())
	}()
	<-blocked

	assert.True(t, agg.State().Loading)

	fresh, err := agg.Load(context.Background())
	require.NoError(t, err)

	close(release)
	wg.Wait()

	require.Error(t, staleErr)
	assert.True(t, fxerrors.IsSuperseded(staleErr))

	state := agg.State()
	assert.Same(t, fresh, state.Snapshot, "stale completion must not overwrite newer state")
	assert.Equal(t, uint64(2), state.Generation)
	assert.NoError(t, state.Err)
	assert.False(t, state.Loading)
}

func TestNewAggregator_Options(t *testing.T) {
	store := memstore.New()
	store.Seed(tables.TableWorkflows,
		tables.Record{"id": 1, "name": "Big", "complexity_score": 8, "is_active": true},
	)

	agg := NewAggregator(store, WithFallbackCategory("Misc"), WithThresholds(2, 5))
	snap, err := agg.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Categories, 1)
	assert.Equal(t, "Misc", snap.Categories[0].Name)
	assert.Equal(t, "misc", snap.Categories[0].ID)
	assert.Equal(t, ComplexityComplex, snap.Workflows[0].Complexity)
}
