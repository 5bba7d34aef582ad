package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMigrationFiles_Paired verifies every up migration has a matching down.
func TestMigrationFiles_Paired(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, n := range names {
		switch {
		case strings.HasSuffix(n, ".up.sql"):
			ups[strings.TrimSuffix(n, ".up.sql")] = true
		case strings.HasSuffix(n, ".down.sql"):
			downs[strings.TrimSuffix(n, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file in migrations: %s", n)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrations_RegistrationConstraints(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/000002_create_center_registrations.up.sql")
	require.NoError(t, err)

	sql := string(body)
	assert.Contains(t, sql, "UNIQUE (user_id)")
	assert.Contains(t, sql, "UNIQUE (center_id, position)")
}
