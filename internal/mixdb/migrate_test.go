package mixdb

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const latestVersion = 2

func openBare(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "m.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, path
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n))
	return n > 0
}

func TestMigrateUpDown(t *testing.T) {
	db, _ := openBare(t)
	migFS, err := MigrationsFS()
	require.NoError(t, err)

	v, dirty, err := db.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(migFS))
	v, _, err = db.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.EqualValues(t, latestVersion, v)

	// Already at latest is not an error.
	require.NoError(t, db.MigrateUp(migFS))

	require.NoError(t, db.MigrateDown(migFS))
	v, _, err = db.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	assert.False(t, tableExists(t, db, "import_log"))
	assert.True(t, tableExists(t, db, "mix_data"))
}

func TestMigrateTo(t *testing.T) {
	db, _ := openBare(t)
	migFS, err := MigrationsFS()
	require.NoError(t, err)

	require.NoError(t, db.MigrateTo(migFS, 1))
	assert.True(t, tableExists(t, db, "mix_data"))
	assert.False(t, tableExists(t, db, "import_log"))

	require.NoError(t, db.MigrateTo(migFS, latestVersion))
	assert.True(t, tableExists(t, db, "import_log"))
}

func TestMigrateForce(t *testing.T) {
	db, _ := openBare(t)
	migFS, err := MigrationsFS()
	require.NoError(t, err)

	require.NoError(t, db.MigrateForce(migFS, 1))
	v, dirty, err := db.MigrateVersion(migFS)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	assert.False(t, dirty)
	assert.False(t, tableExists(t, db, "mix_data"), "force must not run migrations")
}

func TestMigrateNilFS(t *testing.T) {
	db, _ := openBare(t)
	assert.Error(t, db.MigrateUp(nil))
}

func TestRunMigrateCommand(t *testing.T) {
	_, path := openBare(t)

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{"no action", nil, true, "Usage: mixcalc migrate"},
		{"help", []string{"help"}, false, "Actions:"},
		{"status before", []string{"status"}, false, "Current version: 0 (dirty: false)"},
		{"up", []string{"up"}, false, "Current version: 2"},
		{"down", []string{"down"}, false, "Current version: 1"},
		{"version", []string{"version", "2"}, false, "Migrated to version 2"},
		{"version missing arg", []string{"version"}, true, ""},
		{"version bad arg", []string{"version", "two"}, true, ""},
		{"force", []string{"force", "2"}, false, "Forcing migration version to 2"},
		{"unknown", []string{"sideways"}, true, "Unknown migrate action: sideways"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := RunMigrateCommand(tt.args, path, &out)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
