// Package mixdb stores the ethanol/sugar measurement table in SQLite and
// loads it into the rows the solver grid is built from.
package mixdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/mixcalc/internal/monitoring"
	"github.com/banshee-data/mixcalc/internal/table"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the embedded migration files rooted at the directory
// that holds them.
func MigrationsFS() (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations")
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

type DB struct {
	*sql.DB
	path string
}

// OpenDB opens the database at path and applies connection pragmas. It does
// not touch the schema; use NewDB or MigrateUp for that.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	migFS, err := MigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migFS); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string { return db.path }

// columns lists the mix_data columns in table.Properties order, after the
// three key columns.
func columns() []string {
	cols := []string{"T_C", "ABM", "SBM"}
	for _, p := range table.Properties {
		cols = append(cols, string(p))
	}
	return cols
}

// LoadRows reads the whole measurement table. NULL and sentinel values come
// back as missing cells.
func (db *DB) LoadRows(ctx context.Context) ([]table.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM mix_data ORDER BY T_C, ABM, SBM",
		strings.Join(columns(), ", "))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query mix_data: %w", err)
	}
	defer rows.Close()

	var out []table.Row
	for rows.Next() {
		var r table.Row
		var vals [table.NumProperties]sql.NullFloat64
		dest := []any{&r.TempC, &r.ABM, &r.SBM}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan mix_data: %w", err)
		}
		for i, v := range vals {
			if v.Valid {
				r.Values[i] = table.CellOf(v.Float64)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	monitoring.Logf("mixdb: loaded %d rows from %s", len(out), db.path)
	return out, nil
}

// UpsertRows writes rows in one transaction, replacing the property values of
// any row with the same (T_C, ABM, SBM) key.
func (db *DB) UpsertRows(ctx context.Context, rows []table.Row) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL())
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, rowArgs(r)...); err != nil {
			return fmt.Errorf("upsert T_C=%g ABM=%g SBM=%g: %w", r.TempC, r.ABM, r.SBM, err)
		}
	}
	return tx.Commit()
}

func upsertSQL() string {
	cols := columns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	sets := make([]string, 0, table.NumProperties)
	for _, p := range table.Properties {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", p, p))
	}
	return fmt.Sprintf(
		"INSERT INTO mix_data (%s) VALUES (%s) ON CONFLICT (T_C, ABM, SBM) DO UPDATE SET %s",
		strings.Join(cols, ", "), marks, strings.Join(sets, ", "))
}

func rowArgs(r table.Row) []any {
	args := []any{r.TempC, r.ABM, r.SBM}
	for _, c := range r.Values {
		if c.Valid {
			args = append(args, c.Value)
		} else {
			args = append(args, nil)
		}
	}
	return args
}

// TableStats summarises the stored table.
type TableStats struct {
	Rows    int            `json:"rows"`
	Present map[string]int `json:"present"`
	Imports int            `json:"imports"`
}

// Stats counts rows and non-missing values per property.
func (db *DB) Stats(ctx context.Context) (TableStats, error) {
	st := TableStats{Present: make(map[string]int, table.NumProperties)}
	parts := []string{"COUNT(*)"}
	for _, p := range table.Properties {
		parts = append(parts, fmt.Sprintf("COUNT(CASE WHEN %s IS NOT NULL AND %s < %g THEN 1 END)", p, p, table.Sentinel))
	}
	counts := make([]int, len(parts))
	dest := make([]any, len(parts))
	for i := range counts {
		dest[i] = &counts[i]
	}
	query := "SELECT " + strings.Join(parts, ", ") + " FROM mix_data"
	if err := db.QueryRowContext(ctx, query).Scan(dest...); err != nil {
		return st, fmt.Errorf("table stats: %w", err)
	}
	st.Rows = counts[0]
	for i, p := range table.Properties {
		st.Present[string(p)] = counts[i+1]
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM import_log").Scan(&st.Imports); err != nil {
		return st, fmt.Errorf("import log count: %w", err)
	}
	return st, nil
}
