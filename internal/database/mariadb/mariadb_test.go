package mariadb

import (
	"strings"
	"testing"
)

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("matcher:secret@tcp(db.local:3306)/enrollment")
	if err != nil {
		t.Fatalf("normalizeDSN failed: %v", err)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("expected parseTime=true in %q", dsn)
	}
	if !strings.HasPrefix(dsn, "matcher:secret@tcp(db.local:3306)/enrollment") {
		t.Errorf("expected credentials and address to be preserved, got %q", dsn)
	}
}

func TestNormalizeDSN_Invalid(t *testing.T) {
	if _, err := normalizeDSN("not a dsn"); err == nil {
		t.Error("expected error for invalid DSN")
	}
}
