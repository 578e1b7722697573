package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbeddedInOrder(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"00001_create_accounts.sql", "00002_add_profile_details.sql"}, names)

	for _, name := range names {
		body, err := fs.ReadFile(Migrations, name)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(body), "-- +goose Up"), name)
		assert.True(t, strings.Contains(string(body), "-- +goose Down"), name)
	}
}

func TestSchemaDeclaresCascadesAndUniqueness(t *testing.T) {
	body, err := fs.ReadFile(Migrations, "00001_create_accounts.sql")
	require.NoError(t, err)
	schema := string(body)

	assert.Contains(t, schema, "CREATE UNIQUE INDEX idx_accounts_email ON accounts (email)")
	assert.Contains(t, schema, "CREATE UNIQUE INDEX idx_profiles_account_id ON profiles (account_id)")
	assert.Contains(t, schema, "REFERENCES accounts (id) ON DELETE CASCADE")
	assert.Contains(t, schema, "'student', 'admin', 'superadmin'")
}
