package mixdb

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mixcalc/internal/table"
)

const header = "T_C,ABM,SBM,ABV,Sugar_WV,nD,Density,BrixATC\n"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{" 12,5 ", 12.5, true},
		{"-3", -3, true},
		{"", 0, false},
		{"NULL", 0, false},
		{"null", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestHeaderIndex(t *testing.T) {
	idx, err := headerIndex([]string{"\ufeffid", "t_c", " ABM ", "sbm", "abv", "SUGAR_WV", "nd", "density", "BrixATC"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx["t_c"])
	assert.Equal(t, 2, idx["abm"])
	assert.Equal(t, 0, idx["id"])

	_, err = headerIndex([]string{"T_C", "ABM", "SBM", "ABV"})
	require.Error(t, err)
	assert.Equal(t, "missing required columns: sugar_wv, nd, density, brixatc", err.Error())
}

func TestImportCSV(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	csv := header +
		"20,0,0,0,0,1.333,0.998,0\n" +
		"20,10,0,12,0,1.339,0.983,3.5\n" +
		"20,10,10,12,100,9999,1.02,NULL\n" +
		"20,\"10,5\",0,12.6,0,1.34,0.98,3.7\n" +
		",,,,,,,\n" +
		"20,,0,1,1,1,1,1\n"

	stats, err := db.ImportCSV(ctx, strings.NewReader(csv), false)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Inserted: 4, Skipped: 2}, stats)
	assert.Equal(t, "Import complete. Inserted 4, updated 0, skipped 2, errors 0.", stats.String())

	rows, err := db.LoadRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	var found bool
	for _, r := range rows {
		if r.ABM == 10 && r.SBM == 10 {
			found = true
			assert.False(t, r.Get(table.ND).Valid)
			assert.False(t, r.Get(table.BrixATC).Valid)
			assert.Equal(t, table.Some(100), r.Get(table.SugarWV))
		}
		if r.ABM == 10.5 {
			assert.Equal(t, table.Some(12.6), r.Get(table.ABV))
		}
	}
	assert.True(t, found)

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Imports)
}

func TestImportCSVUpdatesExisting(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.ImportCSV(ctx, strings.NewReader(header+"20,0,0,0,0,1.333,0.998,0\n"), false)
	require.NoError(t, err)

	stats, err := db.ImportCSV(ctx, strings.NewReader(header+
		"20,0,0,0,0,1.333,0.9982,0\n"+
		"25,0,0,0,0,1.332,0.997,0\n"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Inserted)

	rows, err := db.LoadRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, table.Some(0.9982), rows[0].Get(table.Density))
}

func TestImportCSVDryRun(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.ImportCSV(ctx, strings.NewReader(header+"20,0,0,0,0,1.333,0.998,0\n"), false)
	require.NoError(t, err)

	stats, err := db.ImportCSV(ctx, strings.NewReader(header+
		"20,0,0,0,0,1.333,0.5,0\n"+
		"30,0,0,0,0,1.331,0.995,0\n"), true)
	require.NoError(t, err)
	assert.True(t, stats.DryRun)
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.Updated)
	assert.Contains(t, stats.String(), "Dry-run complete.")

	rows, err := db.LoadRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1, "dry run must not write")
	assert.Equal(t, table.Some(0.998), rows[0].Get(table.Density))

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Imports, "dry run is not logged")
}

func TestImportCSVRepeatedKeysCountTheSame(t *testing.T) {
	csv := header +
		"20,0,0,0,0,1.333,0.998,0\n" +
		"20,2,0,2.5,0,1.334,0.995,0.7\n" +
		"20,0,0,0,0,1.333,0.997,0\n"

	for _, dryRun := range []bool{true, false} {
		db := newTestDB(t)
		stats, err := db.ImportCSV(context.Background(), strings.NewReader(csv), dryRun)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Inserted, "dry run %v", dryRun)
		assert.Equal(t, 1, stats.Updated, "dry run %v", dryRun)

		rows, err := db.LoadRows(context.Background())
		require.NoError(t, err)
		if dryRun {
			assert.Empty(t, rows)
		} else {
			assert.Len(t, rows, 2)
		}
	}
}

func TestImportCSVExtraColumnsAndOrder(t *testing.T) {
	db := newTestDB(t)
	stats, err := db.ImportCSV(context.Background(), strings.NewReader(
		"id,BrixATC,Density,nD,Sugar_WV,ABV,SBM,ABM,T_C,comment\n"+
			"7,3.5,0.983,1.339,0,12,0,10,20,ok\n"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	rows, err := db.LoadRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10.0, rows[0].ABM)
	assert.Equal(t, table.Some(3.5), rows[0].Get(table.BrixATC))
}

func TestImportCSVShortRowsTreatMissingAsAbsent(t *testing.T) {
	db := newTestDB(t)
	stats, err := db.ImportCSV(context.Background(), strings.NewReader(header+"20,0,0,0.1\n"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	rows, err := db.LoadRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, table.Some(0.1), rows[0].Get(table.ABV))
	assert.False(t, rows[0].Get(table.Density).Valid)
}

func TestImportCSVHeaderErrors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.ImportCSV(ctx, strings.NewReader(""), false)
	assert.EqualError(t, err, "empty CSV")

	_, err = db.ImportCSV(ctx, strings.NewReader("T_C,ABM\n1,2\n"), false)
	assert.ErrorContains(t, err, "missing required columns")
}

func TestImportStatsErrorSamplesCapped(t *testing.T) {
	var s ImportStats
	for i := 0; i < 15; i++ {
		s.fail(i+2, assert.AnError)
	}
	assert.Equal(t, 15, s.Errors)
	assert.Len(t, s.ErrorSamples, maxErrorSamples)
	assert.True(t, strings.HasPrefix(s.ErrorSamples[0], "Line 2 error: "))
}
