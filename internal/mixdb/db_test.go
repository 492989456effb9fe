package mixdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mixcalc/internal/table"
	"github.com/banshee-data/mixcalc/internal/testutil"
)

func TestOpenDBAppliesPragmas(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "p.db"))
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestOpenDBLeavesSchemaAlone(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='mix_data'").Scan(&n))
	assert.Zero(t, n)
}

func TestNewDBCreatesSchema(t *testing.T) {
	db := newTestDB(t)
	for _, name := range []string{"mix_data", "import_log", "schema_migrations"} {
		var n int
		require.NoError(t, db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n))
		assert.Equal(t, 1, n, name)
	}
}

func TestLoadRowsEmpty(t *testing.T) {
	db := newTestDB(t)
	rows, err := db.LoadRows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpsertAndLoadRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	want := testutil.SyntheticRows()
	testutil.Blank(want, table.BrixATC, 20, 10, 10)
	require.NoError(t, db.UpsertRows(ctx, want))

	got, err := db.LoadRows(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	byKey := make(map[[3]float64]table.Row, len(got))
	for _, r := range got {
		byKey[[3]float64{r.TempC, r.ABM, r.SBM}] = r
	}
	for _, w := range want {
		g, ok := byKey[[3]float64{w.TempC, w.ABM, w.SBM}]
		require.True(t, ok, "row T=%g A=%g S=%g", w.TempC, w.ABM, w.SBM)
		assert.Equal(t, w.Values, g.Values)
	}
	assert.False(t, byKey[[3]float64{20, 10, 10}].Get(table.BrixATC).Valid)
}

func TestUpsertReplacesValues(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	r := table.Row{TempC: 20, ABM: 5, SBM: 0}
	r.Set(table.ABV, 6.3)
	require.NoError(t, db.UpsertRows(ctx, []table.Row{r}))

	r.Set(table.ABV, 6.4)
	r.Set(table.Density, 0.99)
	require.NoError(t, db.UpsertRows(ctx, []table.Row{r}))

	rows, err := db.LoadRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, table.Some(6.4), rows[0].Get(table.ABV))
	assert.Equal(t, table.Some(0.99), rows[0].Get(table.Density))
	assert.False(t, rows[0].Get(table.ND).Valid)
}

func TestLoadRowsMapsSentinelToMissing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO mix_data (T_C, ABM, SBM, ABV, Sugar_WV, nD, Density, BrixATC)
		VALUES (20, 0, 0, 0, 0, 9999, 0.998, NULL)`)
	require.NoError(t, err)

	rows, err := db.LoadRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Get(table.ND).Valid, "9999 is missing")
	assert.False(t, rows[0].Get(table.BrixATC).Valid, "NULL is missing")
	assert.Equal(t, table.Some(0), rows[0].Get(table.ABV))
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rows := testutil.SyntheticRows()[:4]
	rows[0].Values[table.ND.Index()] = table.Cell{}
	require.NoError(t, db.UpsertRows(ctx, rows))

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Rows)
	assert.Equal(t, 3, st.Present["nD"])
	assert.Equal(t, 4, st.Present["ABV"])
	assert.Zero(t, st.Imports)
}

func TestUpsertRowsCancelledContext(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, db.UpsertRows(ctx, testutil.SyntheticRows()[:1]))
}
