package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(migrationsFS, migrationsDir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		data, err := fs.ReadFile(migrationsFS, f)
		require.NoError(t, err)
		content := string(data)
		assert.Contains(t, content, "-- +goose Up", f)
		assert.Contains(t, content, "-- +goose Down", f)
	}
}

func TestInitSchemaContainsConstraints(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, migrationsDir+"/00001_init_schema.sql")
	require.NoError(t, err)
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS households",
		"invite_code VARCHAR(16)  NOT NULL UNIQUE",
		"CHECK (role IN ('owner', 'member'))",
		"CHECK (unit_type IN ('unit', 'weight'))",
		"ON products(household_id, LOWER(name))",
		"FOREIGN KEY (scan_id) REFERENCES ticket_scans(id) ON DELETE SET NULL",
		"PRIMARY KEY (household_id, product_id)",
		"CHECK (quantity >= 0)",
		"DROP TABLE IF EXISTS inventory_items",
		"DROP TABLE IF EXISTS households",
	}

	for _, sub := range checks {
		assert.True(t, strings.Contains(content, sub), "missing expected statement %q", sub)
	}
}
