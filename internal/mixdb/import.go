package mixdb

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/mixcalc/internal/monitoring"
	"github.com/banshee-data/mixcalc/internal/table"
)

const maxErrorSamples = 10

// ImportStats reports what an import did, or would do in a dry run.
type ImportStats struct {
	DryRun       bool     `json:"dry_run"`
	Inserted     int      `json:"inserted"`
	Updated      int      `json:"updated"`
	Skipped      int      `json:"skipped"`
	Errors       int      `json:"errors"`
	ErrorSamples []string `json:"error_samples,omitempty"`
}

func (s ImportStats) String() string {
	head := "Import complete."
	if s.DryRun {
		head = "Dry-run complete."
	}
	return fmt.Sprintf("%s Inserted %d, updated %d, skipped %d, errors %d.",
		head, s.Inserted, s.Updated, s.Skipped, s.Errors)
}

func (s *ImportStats) fail(line int, err error) {
	s.Errors++
	if len(s.ErrorSamples) < maxErrorSamples {
		s.ErrorSamples = append(s.ErrorSamples, fmt.Sprintf("Line %d error: %v", line, err))
	}
}

// parseNumber accepts comma decimals. Blank, NULL and non-numeric text are
// absent.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NULL") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// headerIndex maps lower-cased column names to their position. Unknown
// columns, such as a leading id, are ignored.
func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, c := range columns() {
		if _, ok := idx[strings.ToLower(c)]; !ok {
			missing = append(missing, strings.ToLower(c))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ImportCSV upserts measurement rows from CSV. Rows without a full
// (T_C, ABM, SBM) key are skipped. With dryRun the transaction is rolled
// back, so the table is left untouched and the stats report what a real
// import would have inserted or updated.
func (db *DB) ImportCSV(ctx context.Context, r io.Reader, dryRun bool) (ImportStats, error) {
	stats := ImportStats{DryRun: dryRun}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return stats, errors.New("empty CSV")
	}
	if err != nil {
		return stats, fmt.Errorf("read header: %w", err)
	}
	idx, err := headerIndex(header)
	if err != nil {
		return stats, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, upsertSQL())
	if err != nil {
		return stats, fmt.Errorf("prepare upsert: %w", err)
	}
	defer upsert.Close()
	probe, err := tx.PrepareContext(ctx, "SELECT 1 FROM mix_data WHERE T_C = ? AND ABM = ? AND SBM = ?")
	if err != nil {
		return stats, fmt.Errorf("prepare probe: %w", err)
	}
	defer probe.Close()

	field := func(rec []string, col string) string {
		i := idx[strings.ToLower(col)]
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			stats.fail(perr.Line, perr.Err)
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("read CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if blankRecord(rec) {
			stats.Skipped++
			continue
		}
		var row table.Row
		var ok [3]bool
		row.TempC, ok[0] = parseNumber(field(rec, "T_C"))
		row.ABM, ok[1] = parseNumber(field(rec, "ABM"))
		row.SBM, ok[2] = parseNumber(field(rec, "SBM"))
		if !ok[0] || !ok[1] || !ok[2] {
			stats.Skipped++
			continue
		}
		for _, p := range table.Properties {
			if v, present := parseNumber(field(rec, string(p))); present {
				row.Set(p, v)
			}
		}

		var one int
		err = probe.QueryRowContext(ctx, row.TempC, row.ABM, row.SBM).Scan(&one)
		exists := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			stats.fail(line, err)
			continue
		}
		// Dry runs upsert too; the rollback discards it, and repeated keys
		// in one file count as updates either way.
		if _, err := upsert.ExecContext(ctx, rowArgs(row)...); err != nil {
			stats.fail(line, err)
			continue
		}
		if exists {
			stats.Updated++
		} else {
			stats.Inserted++
		}
	}

	if dryRun {
		monitoring.Logf("mixdb: %s", stats)
		return stats, nil
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO import_log (source, inserted, updated, skipped, errors) VALUES (?, ?, ?, ?, ?)",
		"csv", stats.Inserted, stats.Updated, stats.Skipped, stats.Errors); err != nil {
		return stats, fmt.Errorf("record import: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit import: %w", err)
	}
	monitoring.ImportedRows.WithLabelValues("inserted").Add(float64(stats.Inserted))
	monitoring.ImportedRows.WithLabelValues("updated").Add(float64(stats.Updated))
	monitoring.ImportedRows.WithLabelValues("skipped").Add(float64(stats.Skipped))
	monitoring.ImportedRows.WithLabelValues("error").Add(float64(stats.Errors))
	monitoring.Logf("mixdb: %s", stats)
	return stats, nil
}
