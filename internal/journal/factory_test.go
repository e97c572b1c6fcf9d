package journal

import (
	"path/filepath"
	"testing"

	"github.com/mazongYY/FileMover/internal/config"
	"github.com/mazongYY/FileMover/internal/database"
)

func TestNewJournalFromConfig(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.JournalConfig
		wantErr bool
		check   func(t *testing.T, got any)
	}{
		{
			name: "json",
			cfg:  config.JournalConfig{Type: "json", Path: filepath.Join(dir, "undo_history.json")},
			check: func(t *testing.T, got any) {
				if _, ok := got.(*JSONJournal); !ok {
					t.Errorf("got %T, want *JSONJournal", got)
				}
			},
		},
		{
			name:    "json without path",
			cfg:     config.JournalConfig{Type: "json"},
			wantErr: true,
		},
		{
			name: "sqlite",
			cfg:  config.JournalConfig{Type: "sqlite", DataDir: filepath.Join(dir, "db")},
			check: func(t *testing.T, got any) {
				if _, ok := got.(*database.SQLiteJournal); !ok {
					t.Errorf("got %T, want *database.SQLiteJournal", got)
				}
			},
		},
		{
			name:    "sqlite without data_dir",
			cfg:     config.JournalConfig{Type: "sqlite"},
			wantErr: true,
		},
		{
			name: "memory",
			cfg:  config.JournalConfig{Type: "memory"},
			check: func(t *testing.T, got any) {
				if _, ok := got.(*MemoryJournal); !ok {
					t.Errorf("got %T, want *MemoryJournal", got)
				}
			},
		},
		{
			name:    "unknown",
			cfg:     config.JournalConfig{Type: "yaml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewJournalFromConfig(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewJournalFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer got.Close()
			tt.check(t, got)
		})
	}
}
