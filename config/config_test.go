package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/depmigrate/database"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DEPMIGRATE_DATABASE_URL", "")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Empty(t, cfg.DatabaseURL)

	_, err = cfg.ResolveDialect()
	assert.Error(t, err)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(
		"migrations_dir: db/migrations\nlog_level: debug\ndatabase_url: sqlite://from-file.db\n"), 0644))

	t.Setenv("DEPMIGRATE_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/app")
	t.Setenv("DEPMIGRATE_LOG_FORMAT", "json")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "db/migrations", cfg.MigrationsDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "postgres://localhost:5432/app", cfg.DatabaseURL)

	dialect, err := cfg.ResolveDialect()
	require.NoError(t, err)
	assert.Equal(t, database.Postgres, dialect)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	assert.False(t, LoadEnv())

	t.Setenv("DEPMIGRATE_TEST_ENV_VALUE", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DEPMIGRATE_TEST_ENV_VALUE=loaded\n"), 0644))
	require.NoError(t, os.Unsetenv("DEPMIGRATE_TEST_ENV_VALUE"))
	assert.True(t, LoadEnv())
	assert.Equal(t, "loaded", os.Getenv("DEPMIGRATE_TEST_ENV_VALUE"))
}

func TestResolveDialectExplicit(t *testing.T) {
	cfg := &Config{Dialect: "sqlite3", DatabaseURL: "postgres://ignored"}
	dialect, err := cfg.ResolveDialect()
	require.NoError(t, err)
	assert.Equal(t, database.SQLite, dialect)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"console", "json", ""} {
		log, err := NewLogger("info", format)
		require.NoError(t, err)
		require.NotNil(t, log)
	}
	_, err := NewLogger("loud", "console")
	assert.Error(t, err)
	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}
