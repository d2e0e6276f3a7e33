package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	got := normalizeMySQLDSN("jdbc:mysql://root:pw@127.0.0.1:3306/invoices?useSSL=false&serverTimezone=UTC&characterEncoding=utf8", "", "")
	assert.True(t, strings.HasPrefix(got, "root:pw@tcp(127.0.0.1:3306)/invoices?"), got)
	assert.Contains(t, got, "tls=false")
	assert.Contains(t, got, "loc=UTC")
	assert.Contains(t, got, "charset=utf8")
	assert.Contains(t, got, "parseTime=true")
	assert.NotContains(t, got, "useSSL")

	got = normalizeMySQLDSN("mysql://u@db:3306/x", "admin", "secret")
	assert.True(t, strings.HasPrefix(got, "admin:secret@tcp(db:3306)/x?"), got)

	// 原生 DSN 保持不变
	raw := "u:p@tcp(localhost:3306)/x?parseTime=true"
	assert.Equal(t, raw, normalizeMySQLDSN(raw, "", ""))
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(h)/db", maskDSN("root:pw@tcp(h)/db"))
	assert.Equal(t, "nopass", maskDSN("nopass"))
}

func TestSqliteDSN_AddsForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "x.db")
	dsn, err := sqliteDSN(path)
	require.NoError(t, err)
	assert.Equal(t, path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dsn)
	assert.DirExists(t, filepath.Dir(path))

	dsn, err = sqliteDSN("file:y.db?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	assert.Equal(t, "file:y.db?_pragma=foreign_keys(1)", dsn)
}

func TestNewGorm_UnsupportedDriver(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestNewGorm_SQLite(t *testing.T) {
	db, err := NewGorm(Opts{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "t.db"), LogLevel: "silent"})
	require.NoError(t, err)
	var fk int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)
}
