package database

import (
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestStatementsCoversEveryTable(t *testing.T) {
	stmts := Statements()
	if len(stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(stmts))
	}
	for i, table := range []string{"users", "trips", "bookings"} {
		if !strings.Contains(stmts[i], "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("statement %d does not create %s: %q", i, table, stmts[i][:40])
		}
	}
}

func TestDSNReportsMatchedRows(t *testing.T) {
	dsn := DSN("app", "s3cret", "db.internal", "3306", "trips")
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if !cfg.ClientFoundRows {
		t.Errorf("clientFoundRows not set in %q", dsn)
	}
	if !cfg.ParseTime || cfg.Loc != time.UTC {
		t.Errorf("parseTime = %v loc = %v", cfg.ParseTime, cfg.Loc)
	}
	if cfg.User != "app" || cfg.Passwd != "s3cret" || cfg.Addr != "db.internal:3306" || cfg.DBName != "trips" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !strings.Contains(dsn, "charset=utf8mb4") {
		t.Errorf("charset missing from %q", dsn)
	}
}
