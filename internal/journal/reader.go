package journal

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-trader/internal/types"
	"github.com/rxtech-lab/argo-trader/pkg/errors"
)

// Count is a labelled event count.
type Count struct {
	Label string
	N     int64
}

// Row is a journaled event as read back for reporting.
type Row struct {
	Timestamp    time.Time
	Event        types.EventType
	InstrumentID string
	Ticker       string
	Side         string
	Lots         optional.Option[int64]
	Price        optional.Option[float64]
	Status       string
	Reason       string
}

// DisplayName returns the ticker, or the instrument id when the ticker is unknown.
func (r Row) DisplayName() string {
	if r.Ticker != "" {
		return r.Ticker
	}

	return r.InstrumentID
}

// Reader queries every run journal of one UTC date.
type Reader struct {
	db    *sql.DB
	sq    squirrel.StatementBuilderType
	files []string
}

// OpenDay opens the journals under {dir}/{date}/run_*/. A date without
// journals yields an empty Reader.
func OpenDay(dir, date string) (*Reader, error) {
	files, err := filepath.Glob(filepath.Join(dir, date, "run_*", EventsFileName))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "invalid journal path", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to open DuckDB connection", err)
	}

	r := &Reader{
		db:    db,
		sq:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		files: files,
	}

	if err := r.createView(date); err != nil {
		db.Close()

		return nil, err
	}

	return r, nil
}

// Files returns the parquet files the reader covers.
func (r *Reader) Files() []string {
	return r.files
}

// createView exposes the day's events as the events view.
func (r *Reader) createView(date string) error {
	var query string

	if len(r.files) == 0 {
		query = `CREATE VIEW events AS SELECT
			CAST(NULL AS TIMESTAMP) AS ts_utc, '' AS event, '' AS instrument_id, '' AS ticker, '' AS side,
			CAST(NULL AS BIGINT) AS lots, CAST(NULL AS DOUBLE) AS price, '' AS order_id, '' AS client_uid,
			'' AS status, '' AS reason, '' AS meta
			WHERE false`
	} else {
		quoted := make([]string, 0, len(r.files))
		for _, f := range r.files {
			quoted = append(quoted, "'"+strings.ReplaceAll(f, "'", "''")+"'")
		}

		query = fmt.Sprintf(`CREATE VIEW events AS
			SELECT * FROM read_parquet([%s], union_by_name = true)
			WHERE strftime(ts_utc, '%%Y-%%m-%%d') = '%s'`, strings.Join(quoted, ", "), strings.ReplaceAll(date, "'", ""))
	}

	if _, err := r.db.Exec(query); err != nil {
		return errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to read journal files", err)
	}

	return nil
}

// EventCounts counts events by type, most frequent first.
func (r *Reader) EventCounts() ([]Count, error) {
	return r.counts(r.sq.
		Select("event", "COUNT(*) AS n").
		From(eventsTable).
		GroupBy("event").
		OrderBy("n DESC", "event ASC"))
}

// FillsBySide counts fill and partial fill events per side.
func (r *Reader) FillsBySide() ([]Count, error) {
	return r.counts(r.sq.
		Select("side", "COUNT(*) AS n").
		From(eventsTable).
		Where(squirrel.Eq{"event": fillEvents()}).
		GroupBy("side").
		OrderBy("n DESC", "side ASC"))
}

// FillsByTicker counts fill and partial fill events per ticker.
func (r *Reader) FillsByTicker() ([]Count, error) {
	return r.counts(r.sq.
		Select("COALESCE(NULLIF(ticker, ''), instrument_id) AS name", "COUNT(*) AS n").
		From(eventsTable).
		Where(squirrel.Eq{"event": fillEvents()}).
		GroupBy("name").
		OrderBy("n DESC", "name ASC"))
}

// Turnover approximates traded value as the sum of lots times price over fills.
func (r *Reader) Turnover() (float64, error) {
	var turnover float64

	err := r.sq.
		Select("CAST(COALESCE(SUM(COALESCE(lots, 0) * COALESCE(price, 0)), 0) AS DOUBLE)").
		From(eventsTable).
		Where(squirrel.Eq{"event": fillEvents()}).
		RunWith(r.db).
		QueryRow().
		Scan(&turnover)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to compute turnover", err)
	}

	return turnover, nil
}

// LastEvents returns the newest limit events in chronological order,
// restricted to kinds when given.
func (r *Reader) LastEvents(limit int, kinds ...types.EventType) ([]Row, error) {
	query := r.sq.
		Select("ts_utc", "event", "instrument_id", "ticker", "side", "lots", "price", "status", "reason").
		From(eventsTable).
		OrderBy("ts_utc DESC").
		Limit(uint64(limit))

	if len(kinds) > 0 {
		names := make([]string, 0, len(kinds))
		for _, k := range kinds {
			names = append(names, string(k))
		}

		query = query.Where(squirrel.Eq{"event": names})
	}

	rows, err := query.RunWith(r.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to query events", err)
	}
	defer rows.Close()

	var out []Row

	for rows.Next() {
		var (
			row   Row
			event string
			lots  sql.NullInt64
			price sql.NullFloat64
		)

		if err := rows.Scan(&row.Timestamp, &event, &row.InstrumentID, &row.Ticker, &row.Side,
			&lots, &price, &row.Status, &row.Reason); err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to scan event", err)
		}

		row.Event = types.EventType(event)
		row.Lots = optional.None[int64]()
		row.Price = optional.None[float64]()

		if lots.Valid {
			row.Lots = optional.Some(lots.Int64)
		}

		if price.Valid {
			row.Price = optional.Some(price.Float64)
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to read events", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}

// Close releases database resources.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to close database", err)
	}

	return nil
}

func (r *Reader) counts(query squirrel.SelectBuilder) ([]Count, error) {
	rows, err := query.RunWith(r.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to count events", err)
	}
	defer rows.Close()

	var out []Count

	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Label, &c.N); err != nil {
			return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to scan count", err)
		}

		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalReadFailed, "failed to read counts", err)
	}

	return out, nil
}

func fillEvents() []string {
	return []string{string(types.EventFill), string(types.EventPartialFill)}
}
