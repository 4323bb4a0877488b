package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions_SortedAndEmbedded(t *testing.T) {
	files, err := Versions()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_app_users.sql", files[0])

	for i := 1; i < len(files); i++ {
		assert.Less(t, files[i-1], files[i])
	}
}

func TestMigrations_DefineDirectoryTable(t *testing.T) {
	b, err := migrationsFS.ReadFile("migrations/0001_app_users.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "CREATE TABLE IF NOT EXISTS app_users")
	assert.Contains(t, string(b), "app_users_status_check")
}
