package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/classtrack/lms/internal/config"
	"github.com/classtrack/lms/internal/db"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "lms",
		Password: "lms_pass",
		DBName:   "lms_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	tables := []string{"tests", "lessons", "subjects", "course_modules", "import_progress", "drive_import_jobs", "courses", "users"}
	for _, table := range tables {
		if _, err := conn.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("clean table %s: %v", table, err)
		}
	}
	return conn, func() {
		_ = conn.Close()
	}
}
