package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/folkertvanheusden/GHBot-BTC/internal/model"
)

// SQLiteLedger keeps samples in the price table of a SQLite database.
type SQLiteLedger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteLedger opens (or creates) the database and creates the price table.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets command handlers read while the tick source writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Infof("sqlite ledger opened: %s", dbPath)
	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS price (
		ts    INTEGER PRIMARY KEY,
		price REAL NOT NULL
	)`)
	return err
}

func (l *SQLiteLedger) Append(ctx context.Context, s model.PriceSample) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO price (ts, price) VALUES (?, ?) ON CONFLICT(ts) DO NOTHING`,
		s.Time.Unix(), s.Price)
	if err != nil {
		return fmt.Errorf("insert price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert price: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (l *SQLiteLedger) Range(ctx context.Context, from, to time.Time) ([]model.PriceSample, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT ts, price FROM price WHERE ts >= ? AND ts < ? ORDER BY ts ASC`,
		boundUnix(from), boundUnix(to))
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	return scanSamples(rows)
}

func (l *SQLiteLedger) Latest(ctx context.Context) (model.PriceSample, error) {
	row := l.db.QueryRowContext(ctx, `SELECT ts, price FROM price ORDER BY ts DESC LIMIT 1`)
	return scanOne(row)
}

func (l *SQLiteLedger) LatestBefore(ctx context.Context, t time.Time) (model.PriceSample, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT ts, price FROM price WHERE ts < ? ORDER BY ts DESC LIMIT 1`, boundUnix(t))
	return scanOne(row)
}

func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]model.PriceSample, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT ts, price FROM (SELECT ts, price FROM price ORDER BY ts DESC LIMIT ?) ORDER BY ts ASC`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	return scanSamples(rows)
}

func (l *SQLiteLedger) Summary(ctx context.Context, from, to time.Time) (model.WindowSummary, error) {
	var sum model.WindowSummary

	// Both queries run in one transaction so they see the same WAL snapshot.
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return sum, fmt.Errorf("begin summary: %w", err)
	}
	defer tx.Rollback()

	var (
		low, high, avg sql.NullFloat64
		first          sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT MIN(price), MAX(price), AVG(price), COUNT(*), MIN(ts) FROM price WHERE ts >= ? AND ts < ?`,
		boundUnix(from), boundUnix(to)).Scan(&low, &high, &avg, &sum.Count, &first)
	if err != nil {
		return sum, fmt.Errorf("query aggregates: %w", err)
	}
	if sum.Count == 0 {
		return sum, ErrNoData
	}
	sum.Min, sum.Max, sum.Avg = low.Float64, high.Float64, avg.Float64
	sum.FirstTime = time.Unix(first.Int64, 0).UTC()

	rows, err := tx.QueryContext(ctx,
		`SELECT price FROM price WHERE ts >= ? AND ts < ? ORDER BY ts ASC`,
		boundUnix(from), boundUnix(to))
	if err != nil {
		return sum, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()
	sum.Prices = make([]float64, 0, sum.Count)
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return sum, fmt.Errorf("scan price: %w", err)
		}
		sum.Prices = append(sum.Prices, p)
	}
	if err := rows.Err(); err != nil {
		return sum, fmt.Errorf("read prices: %w", err)
	}
	return sum, tx.Commit()
}

func (l *SQLiteLedger) Close() error {
	log.Info("closing sqlite ledger")
	return l.db.Close()
}

func scanSamples(rows *sql.Rows) ([]model.PriceSample, error) {
	defer rows.Close()
	var out []model.PriceSample
	for rows.Next() {
		var (
			ts    int64
			price float64
		)
		if err := rows.Scan(&ts, &price); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, model.PriceSample{Time: time.Unix(ts, 0).UTC(), Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return out, nil
}

func scanOne(row *sql.Row) (model.PriceSample, error) {
	var (
		ts    int64
		price float64
	)
	if err := row.Scan(&ts, &price); err != nil {
		if err == sql.ErrNoRows {
			return model.PriceSample{}, ErrNoData
		}
		return model.PriceSample{}, fmt.Errorf("scan sample: %w", err)
	}
	return model.PriceSample{Time: time.Unix(ts, 0).UTC(), Price: price}, nil
}
