package introspect

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/depmigrate/database"
)

func TestInspectSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "app.db"), database.SQLite)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE "job" ("id" INTEGER PRIMARY KEY, "status" TEXT NOT NULL DEFAULT 'pending')`,
		`CREATE TABLE "analyzerreport" ("id" INTEGER PRIMARY KEY, "name" VARCHAR(128) NOT NULL, "job" INTEGER REFERENCES "job" ("id") ON DELETE CASCADE)`,
		`CREATE UNIQUE INDEX "uniq_analyzerreport_analyzer_name_job" ON "analyzerreport" ("name", "job")`,
		`CREATE TABLE "schema_migrations" ("id" INTEGER PRIMARY KEY)`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	tables, err := Inspect(ctx, db, "schema_migrations")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "analyzerreport", tables[0].Name)
	assert.Equal(t, "job", tables[1].Name)

	report := tables[0]
	require.Len(t, report.Columns, 3)
	id, ok := report.Column("id")
	require.True(t, ok)
	assert.True(t, id.Primary)
	name, ok := report.Column("name")
	require.True(t, ok)
	assert.False(t, name.Nullable)
	assert.Equal(t, "VARCHAR(128)", name.DataType)

	assert.Equal(t, []ForeignKey{{ColumnName: "job", ReferencesTable: "job", ReferencesColumn: "id", OnDelete: "CASCADE"}}, report.ForeignKeys)
	assert.Equal(t, []Index{{Name: "uniq_analyzerreport_analyzer_name_job", Columns: []string{"name", "job"}, Unique: true}}, report.UniqueIndexes())

	status, ok := tables[1].Column("status")
	require.True(t, ok)
	require.NotNil(t, status.Default)
	assert.Equal(t, "'pending'", *status.Default)

	_, ok = tables[1].Column("missing")
	assert.False(t, ok)
}

func TestSplitColumns(t *testing.T) {
	assert.Nil(t, splitColumns(""))
	assert.Equal(t, []string{"name", "job"}, splitColumns("name, job"))
}
