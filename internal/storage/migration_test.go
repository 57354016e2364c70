package storage

import (
	"testing"
	"testing/fstest"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/010_trade_notes.sql":    {Data: []byte("ALTER TABLE trades ADD COLUMN note TEXT;")},
		"pg/001_signals_trades.sql": {Data: []byte("CREATE TABLE signals (signal_id TEXT);")},
		"pg/002_empty.sql":          {Data: []byte("  \n")},
		"pg/README.md":              {Data: []byte("not sql")},
	}

	got, err := LoadMigrations(fsys, "pg")
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d: %+v", len(got), got)
	}
	if got[0].Version != 1 || got[1].Version != 10 {
		t.Errorf("not ordered by numeric version: %d, %d", got[0].Version, got[1].Version)
	}
	if got[1].Name != "010_trade_notes.sql" {
		t.Errorf("unexpected name %q", got[1].Name)
	}
}

func TestLoadMigrations_BadNames(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"no version", fstest.MapFS{"pg/signals.sql": {Data: []byte("SELECT 1;")}}},
		{"zero version", fstest.MapFS{"pg/000_init.sql": {Data: []byte("SELECT 1;")}}},
		{"duplicate version", fstest.MapFS{
			"pg/001_a.sql":  {Data: []byte("SELECT 1;")},
			"pg/0001_b.sql": {Data: []byte("SELECT 2;")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadMigrations(tt.fsys, "pg"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
