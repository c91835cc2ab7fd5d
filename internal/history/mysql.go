package history

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// DefaultTable is the MySQL table runs are written to.
const DefaultTable = "clickflow_runs"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// MySQLJournal stores entries in a MySQL table.
type MySQLJournal struct {
	db    *sql.DB
	table string
}

// NormalizeDSN validates dsn and turns on time parsing, which List relies
// on to scan DATETIME columns.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("%w: history dsn: %w", cferrors.ErrInvalid, err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

// OpenMySQL connects to dsn and creates the table if needed.
func OpenMySQL(ctx context.Context, dsn, table string) (*MySQLJournal, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, cferrors.Invalidf("invalid history table name %q", table)
	}
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	j := NewMySQLJournal(db, table)
	if err := j.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// NewMySQLJournal wraps an open database handle.
func NewMySQLJournal(db *sql.DB, table string) *MySQLJournal {
	if table == "" {
		table = DefaultTable
	}
	return &MySQLJournal{db: db, table: table}
}

// Init creates the runs table if it does not exist.
func (j *MySQLJournal) Init(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+j.table+` (
		id CHAR(36) PRIMARY KEY,
		workflow VARCHAR(255) NOT NULL,
		started DATETIME(6) NOT NULL,
		duration_ms BIGINT NOT NULL,
		clicked INT NOT NULL DEFAULT 0,
		failed INT NOT NULL DEFAULT 0,
		skipped INT NOT NULL DEFAULT 0,
		canceled BOOLEAN NOT NULL DEFAULT FALSE,
		INDEX idx_started (started)
	) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`)
	if err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

// Append implements Journal.
func (j *MySQLJournal) Append(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO `+j.table+` (id, workflow, started, duration_ms, clicked, failed, skipped, canceled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Workflow, e.Started.UTC(), e.Duration.Milliseconds(), e.Clicked, e.Failed, e.Skipped, e.Canceled)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// List implements Journal.
func (j *MySQLJournal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, workflow, started, duration_ms, clicked, failed, skipped, canceled
		FROM `+j.table+` ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.Workflow, &e.Started, &ms, &e.Clicked, &e.Failed, &e.Skipped, &e.Canceled); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return entries, nil
}

// Close closes the database handle.
func (j *MySQLJournal) Close() error {
	return j.db.Close()
}
