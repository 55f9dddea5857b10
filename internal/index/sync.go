package index

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
	"github.com/chazuruo/flowdex/internal/tables"
)

// Sync log values.
const (
	OperationIndex = "index"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
)

// Report describes a finished sync.
type Report struct {
	Dir      string        `json:"dir" yaml:"dir"`
	Scanned  Summary       `json:"scanned" yaml:"scanned"`
	Inserted int           `json:"inserted" yaml:"inserted"`
	Skipped  int           `json:"skipped" yaml:"skipped"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// changeSet splits scanned rows against the paths already recorded.
type changeSet struct {
	new       []tables.RawFileRow
	unchanged []tables.RawFileRow
}

// Sync scans dir, inserts the rows into n8n_files in batches and records
// the outcome in sync_logs. A failed sync is logged as failed and its error
// returned; rows from batches that completed stay inserted.
func (b *Builder) Sync(ctx context.Context, dir string) (*Report, error) {
	start := b.now()
	report := &Report{Dir: dir}

	rows, err := b.Scan(dir)
	if err != nil {
		b.writeLog(ctx, dir, start, 0, err)
		return nil, fxerrors.Wrap(err, "index scan")
	}
	report.Scanned = Summarize(rows)

	pending := rows
	if b.incremental {
		changes, err := b.detectChanges(ctx, rows)
		if err != nil {
			b.writeLog(ctx, dir, start, 0, err)
			return nil, fxerrors.Wrap(err, "index detect changes")
		}
		pending = changes.new
		report.Skipped = len(changes.unchanged)
	}

	for i := 0; i < len(pending); i += b.batchSize {
		end := min(i+b.batchSize, len(pending))

		records, err := tables.ToRecords(pending[i:end])
		if err != nil {
			b.writeLog(ctx, dir, start, report.Inserted, err)
			return nil, fxerrors.Wrap(err, "index encode")
		}

		inserted, err := b.client.Insert(ctx, tables.TableRawFiles, records)
		if err != nil {
			b.writeLog(ctx, dir, start, report.Inserted, err)
			return nil, fxerrors.Wrap(err, "index insert")
		}
		report.Inserted += len(inserted)

		b.logger.Debug("inserted batch",
			zap.Int("offset", i),
			zap.Int("rows", len(inserted)),
		)
	}

	report.Duration = b.now().Sub(start)
	b.writeLog(ctx, dir, start, report.Inserted, nil)

	b.logger.Info("index sync complete",
		zap.String("dir", dir),
		zap.Int("scanned", report.Scanned.Total),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", report.Duration),
	)
	return report, nil
}

// detectChanges compares scanned rows with the paths already in n8n_files.
func (b *Builder) detectChanges(ctx context.Context, rows []tables.RawFileRow) (*changeSet, error) {
	records, err := b.client.Select(ctx, tables.Query{Table: tables.TableRawFiles})
	if err != nil {
		return nil, err
	}

	existing, rejected := tables.Decode[tables.RawFileRow](records)
	if len(rejected) > 0 {
		b.logger.Warn("ignoring malformed n8n_files rows", zap.Int("count", len(rejected)))
	}

	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r.FilePath] = true
	}

	changes := &changeSet{}
	for _, r := range rows {
		if known[r.FilePath] {
			changes.unchanged = append(changes.unchanged, r)
		} else {
			changes.new = append(changes.new, r)
		}
	}
	return changes, nil
}

// writeLog records a sync_logs row. Failures are logged and otherwise
// ignored so they never mask the sync result.
func (b *Builder) writeLog(ctx context.Context, dir string, start time.Time, processed int, syncErr error) {
	row := tables.SyncLogRow{
		OperationType:  OperationIndex,
		FilePath:       dir,
		Status:         StatusSuccess,
		FilesProcessed: tables.Number(processed),
		DurationMS:     tables.Number(b.now().Sub(start).Milliseconds()),
	}
	if syncErr != nil {
		row.Status = StatusFailed
		row.ErrorMessage = syncErr.Error()
	}

	rec, err := tables.ToRecord(row)
	if err == nil {
		_, err = b.client.Insert(ctx, tables.TableSyncLogs, []tables.Record{rec})
	}
	if err != nil {
		b.logger.Warn("failed to write sync log",
			zap.String("status", row.Status),
			zap.Error(fmt.Errorf("sync_logs: %w", err)),
		)
	}
}
