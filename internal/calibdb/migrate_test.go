package calibdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigratesToLatestVersion(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version, "open applies every embedded migration")
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	require.NoError(t, s.MigrateUp(), "re-running on a current schema is a no-op")

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestMigratedSchemaHoldsPasses(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	for _, table := range []string{"passes", "calibration_bins"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist after migration", table)
	}

	var index string
	err := s.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_passes_created_at'").Scan(&index)
	require.NoError(t, err, "second migration adds the pass creation index")

	p, err := s.CreatePass("calibration")
	require.NoError(t, err)
	assert.NotEmpty(t, p.PassID)
}
