package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
)

const eventsTable = "events"

// ParquetWriter writes journal events to a parquet file with real-time persistence.
type ParquetWriter struct {
	db         *sql.DB
	sq         squirrel.StatementBuilderType
	outputPath string
	mu         sync.Mutex
}

// NewParquetWriter creates a new ParquetWriter.
// outputPath is the full path to the parquet file.
func NewParquetWriter(outputPath string) *ParquetWriter {
	return &ParquetWriter{
		db:         nil,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		outputPath: outputPath,
		mu:         sync.Mutex{},
	}
}

// Initialize sets up the writer with DuckDB, loading events already exported to outputPath.
func (w *ParquetWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to create journal directory", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to open DuckDB connection", err)
	}

	w.db = db

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			ts_utc TIMESTAMP,
			event TEXT,
			instrument_id TEXT,
			ticker TEXT,
			side TEXT,
			lots BIGINT,
			price DOUBLE,
			order_id TEXT,
			client_uid TEXT,
			status TEXT,
			reason TEXT,
			meta TEXT
		)
	`)
	if err != nil {
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to create events table", err)
	}

	if _, err := os.Stat(w.outputPath); err == nil {
		// an unreadable file is overwritten on the next export
		_, _ = w.db.Exec(fmt.Sprintf(`INSERT INTO events SELECT * FROM read_parquet('%s')`, w.outputPath))
	}

	return nil
}

// Write persists an event and exports to parquet.
func (w *ParquetWriter) Write(event types.JournalEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeJournalWriteFailed, "journal writer not initialized")
	}

	var lots any
	if event.Lots.IsSome() {
		lots = event.Lots.Unwrap()
	}

	var price any
	if event.Price.IsSome() {
		price = event.Price.Unwrap().InexactFloat64()
	}

	meta := ""

	if len(event.Meta) > 0 {
		raw, err := json.Marshal(event.Meta)
		if err != nil {
			return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to encode event meta", err)
		}

		meta = string(raw)
	}

	_, err := w.sq.
		Insert(eventsTable).
		Columns(
			"ts_utc", "event", "instrument_id", "ticker", "side", "lots", "price",
			"order_id", "client_uid", "status", "reason", "meta",
		).
		Values(
			event.Timestamp.UTC(), string(event.Event), event.InstrumentID, event.Ticker, string(event.Side), lots, price,
			event.OrderID, event.ClientUID, event.Status, event.Reason, meta,
		).
		RunWith(w.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to insert event", err)
	}

	return w.exportToParquet()
}

// Count returns the number of events stored.
func (w *ParquetWriter) Count() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return 0, errors.New(errors.ErrCodeJournalReadFailed, "journal writer not initialized")
	}

	var count int

	err := w.sq.Select("COUNT(*)").From(eventsTable).RunWith(w.db).QueryRow().Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to count events", err)
	}

	return count, nil
}

// OutputPath returns the parquet file path.
func (w *ParquetWriter) OutputPath() string {
	return w.outputPath
}

// Close releases database resources.
func (w *ParquetWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to close database", err)
		}

		w.db = nil
	}

	return nil
}

// exportToParquet exports the current data to the parquet file. Caller holds mu.
func (w *ParquetWriter) exportToParquet() error {
	_, err := w.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM events ORDER BY ts_utc ASC)
		TO '%s' (FORMAT PARQUET)
	`, w.outputPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to export to parquet", err)
	}

	return nil
}

var _ Journal = (*ParquetWriter)(nil)
