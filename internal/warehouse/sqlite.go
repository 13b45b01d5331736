// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const partitionDateFmt = "2006-01-02"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLite is a single-file local warehouse. Each table gets two hidden
// columns: _insert_id (unique, so repeated insert IDs are ignored) and
// _partition_date (ingestion day, used for partition expiry).
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the warehouse file at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating warehouse directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening warehouse: %w", err)
	}
	s := &SQLite{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating warehouse schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS table_policies (
		name TEXT PRIMARY KEY,
		day_partitioned INTEGER NOT NULL,
		expiry_seconds INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// tableName flattens a reference into a SQLite identifier.
func tableName(ref TableRef) (string, error) {
	name := ref.Table
	if ref.Dataset != "" {
		name = ref.Dataset + "__" + ref.Table
	}
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// TableExists checks sqlite_master for the table.
func (s *SQLite) TableExists(ctx context.Context, ref TableRef) (bool, error) {
	name, err := tableName(ref)
	if err != nil {
		return false, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, name,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("checking table %s: %w", ref, err)
	}
	return n > 0, nil
}

// CreateTable creates the table and records its partition policy.
func (s *SQLite) CreateTable(ctx context.Context, ref TableRef, schema Schema, p Partitioning) error {
	name, err := tableName(ref)
	if err != nil {
		return err
	}

	cols := []string{
		`_rowid INTEGER PRIMARY KEY AUTOINCREMENT`,
		`_insert_id TEXT UNIQUE`,
		`_partition_date TEXT NOT NULL`,
	}
	for _, f := range schema {
		if !identRe.MatchString(f.Name) {
			return fmt.Errorf("invalid column name %q", f.Name)
		}
		col := quote(f.Name) + " " + sqliteType(f.Type)
		if strings.EqualFold(f.Mode, "REQUIRED") {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s (%s)`, quote(name), strings.Join(cols, ", ")),
		fmt.Sprintf(`CREATE INDEX %s ON %s(_partition_date)`, quote("idx_"+name+"_partition"), quote(name)),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", ref, err)
		}
	}

	dayPartitioned := 0
	if p.DayPartitioned {
		dayPartitioned = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO table_policies (name, day_partitioned, expiry_seconds, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET day_partitioned=excluded.day_partitioned, expiry_seconds=excluded.expiry_seconds`,
		name, dayPartitioned, int64(p.Expiry/time.Second), s.now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording table policy: %w", err)
	}
	return tx.Commit()
}

// InsertRows inserts all rows in one transaction after purging expired
// partitions. Rows naming unknown columns are rejected; any rejection rolls
// back the whole call.
func (s *SQLite) InsertRows(ctx context.Context, ref TableRef, rows []Row) ([]RowError, error) {
	name, err := tableName(ref)
	if err != nil {
		return nil, err
	}
	columns, err := s.columns(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", ref)
	}

	var rowErrs []RowError
	for i, r := range rows {
		for k := range r.Values {
			if _, ok := columns[k]; !ok {
				rowErrs = append(rowErrs, RowError{Index: i, Message: fmt.Sprintf("no such field: %s", k)})
				break
			}
		}
	}
	if len(rowErrs) > 0 {
		return rowErrs, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	today := s.now().UTC()
	if err := s.purgeExpired(ctx, tx, name, today); err != nil {
		return nil, err
	}

	partition := today.Format(partitionDateFmt)
	for i, r := range rows {
		names := []string{"_insert_id", "_partition_date"}
		args := []any{nullIfEmpty(r.InsertID), partition}
		for k, v := range r.Values {
			names = append(names, quote(k))
			arg, err := sqliteValue(v)
			if err != nil {
				return []RowError{{Index: i, Message: err.Error()}}, nil
			}
			args = append(args, arg)
		}
		stmt := fmt.Sprintf(`INSERT OR IGNORE INTO %s (%s) VALUES (%s)`,
			quote(name), strings.Join(names, ", "), placeholders(len(names)))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return []RowError{{Index: i, Message: err.Error()}}, nil
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing insert into %s: %w", ref, err)
	}
	return nil, nil
}

// CountRows returns the number of rows in the table.
func (s *SQLite) CountRows(ctx context.Context, ref TableRef) (int, error) {
	name, err := tableName(ref)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, quote(name))).Scan(&n)
	return n, err
}

func (s *SQLite) columns(ctx context.Context, name string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quote(name)))
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", name, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		if strings.HasPrefix(colName, "_") {
			continue
		}
		cols[colName] = struct{}{}
	}
	return cols, rows.Err()
}

func (s *SQLite) purgeExpired(ctx context.Context, tx *sql.Tx, name string, today time.Time) error {
	var dayPartitioned int
	var expirySeconds int64
	err := tx.QueryRowContext(ctx,
		`SELECT day_partitioned, expiry_seconds FROM table_policies WHERE name = ?`, name,
	).Scan(&dayPartitioned, &expirySeconds)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading table policy: %w", err)
	}
	if dayPartitioned == 0 || expirySeconds <= 0 {
		return nil
	}
	cutoff := today.Add(-time.Duration(expirySeconds) * time.Second).Format(partitionDateFmt)
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE _partition_date < ?`, quote(name)), cutoff,
	); err != nil {
		return fmt.Errorf("purging expired partitions: %w", err)
	}
	return nil
}

func sqliteType(t string) string {
	switch strings.ToUpper(t) {
	case "INTEGER", "INT64":
		return "INTEGER"
	case "FLOAT", "FLOAT64", "NUMERIC":
		return "REAL"
	case "BOOLEAN", "BOOL":
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// sqliteValue stores scalars as-is and nested maps or slices as JSON text.
func sqliteValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, int, int64, float64, bool:
		return x, nil
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("encoding nested value: %w", err)
		}
		return string(data), nil
	default:
		return fmt.Sprint(x), nil
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
