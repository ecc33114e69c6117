package database

import (
	"context"
	"testing"
)

// newTestDB opens a private in-memory sqlite database with the schema applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestRebind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{"postgres", DialectPostgres, "SELECT a FROM t WHERE b = ? AND c = ?", "SELECT a FROM t WHERE b = $1 AND c = $2"},
		{"postgres no args", DialectPostgres, "SELECT 1", "SELECT 1"},
		{"mysql untouched", DialectMySQL, "SELECT a FROM t WHERE b = ?", "SELECT a FROM t WHERE b = ?"},
		{"sqlite untouched", DialectSQLite, "DELETE FROM t WHERE x < ?", "DELETE FROM t WHERE x < ?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := rebind(tt.dialect, tt.query); got != tt.want {
				t.Errorf("rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpsertSQL(t *testing.T) {
	t.Parallel()
	cols := []string{"config_key", "rate"}
	upd := []string{"rate"}

	pg := (&DB{dialect: DialectPostgres}).upsertSQL("ratelimit_config", "config_key", cols, upd)
	if want := "INSERT INTO ratelimit_config (config_key, rate) VALUES (?, ?) ON CONFLICT (config_key) DO UPDATE SET rate = excluded.rate"; pg != want {
		t.Errorf("postgres upsertSQL() = %q, want %q", pg, want)
	}

	my := (&DB{dialect: DialectMySQL}).upsertSQL("ratelimit_config", "config_key", cols, upd)
	if want := "INSERT INTO ratelimit_config (config_key, rate) VALUES (?, ?) ON DUPLICATE KEY UPDATE rate = VALUES(rate)"; my != want {
		t.Errorf("mysql upsertSQL() = %q, want %q", my, want)
	}
}

func TestInsertIgnoreSQL(t *testing.T) {
	t.Parallel()
	cols := []string{"client_key", "request_count"}

	if got, want := (&DB{dialect: DialectSQLite}).insertIgnoreSQL("rate_limits", "client_key", cols),
		"INSERT INTO rate_limits (client_key, request_count) VALUES (?, ?) ON CONFLICT (client_key) DO NOTHING"; got != want {
		t.Errorf("sqlite insertIgnoreSQL() = %q, want %q", got, want)
	}
	if got, want := (&DB{dialect: DialectMySQL}).insertIgnoreSQL("rate_limits", "client_key", cols),
		"INSERT IGNORE INTO rate_limits (client_key, request_count) VALUES (?, ?)"; got != want {
		t.Errorf("mysql insertIgnoreSQL() = %q, want %q", got, want)
	}
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"chat.db", "chat.db?_busy_timeout=5000&_foreign_keys=on"},
		{"file:chat.db?mode=rwc", "file:chat.db?mode=rwc&_busy_timeout=5000&_foreign_keys=on"},
		{"chat.db?_busy_timeout=100&_foreign_keys=off", "chat.db?_busy_timeout=100&_foreign_keys=off"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.in); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	t.Parallel()
	if _, err := New("oracle", "x"); err == nil {
		t.Error("New() with unsupported driver should fail")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
	if db.Dialect() != DialectSQLite {
		t.Errorf("Dialect() = %q, want sqlite", db.Dialect())
	}
}
