package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestDialect(t *testing.T) {
	require.Equal(t, "sqlite3", Dialect("sqlite"))
	require.Equal(t, "sqlite3", Dialect(" SQLite3 "))
	require.Equal(t, "postgres", Dialect("postgres"))
	require.Equal(t, "postgres", Dialect(""))
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestQuotationDocumentsMigrationContents(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_quotation_documents.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS quotation_documents",
		"storage_key VARCHAR(255) PRIMARY KEY",
		"schema_version INTEGER NOT NULL",
		"DROP TABLE IF EXISTS quotation_documents",
	} {
		require.Truef(t, strings.Contains(content, sub), "missing expected statement %q", sub)
	}
}

func TestRunUpOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_up?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Run(context.Background(), sqlDB, "sqlite", "migrations", "up"))
	require.True(t, conn.Migrator().HasTable("quotation_documents"))
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Share Links")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_share_links.sql"))
	require.NoError(t, ValidateDir(dir))
}
