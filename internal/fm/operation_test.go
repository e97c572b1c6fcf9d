package fm

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseOperationMode(t *testing.T) {
	tests := []struct {
		in      string
		want    OperationMode
		wantErr bool
	}{
		{in: "move", want: Move},
		{in: "COPY", want: Copy},
		{in: " link ", want: Link},
		{in: "hardlink", want: Link},
		{in: "rename", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperationMode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("ParseOperationMode(%q) error = %v, want ErrInvalidInput", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOperationMode(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseOperationMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOperationMode_MarshalTextRejectsUnknown(t *testing.T) {
	if _, err := OperationMode(7).MarshalText(); err == nil {
		t.Error("MarshalText() on an unknown mode should fail")
	}
	if got := OperationMode(7).String(); got != "OperationMode(7)" {
		t.Errorf("String() = %q", got)
	}
}

func TestFileOperation_JSONFieldNames(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	op := FileOperation{
		ID:         "op_20240115_103000_000000",
		Type:       Move,
		SourcePath: "/scratch/a.txt",
		TargetPath: "/out/matched/a.txt",
		Timestamp:  ts,
		FileSize:   3,
		FileHash:   "abc",
		BackupPath: "backup/op_20240115_103000_000000_a.txt",
	}

	data, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(data)
	for _, key := range []string{
		`"operation_id":"op_20240115_103000_000000"`,
		`"operation_type":"move"`,
		`"source_path":`,
		`"target_path":`,
		`"timestamp":"2024-01-15T10:30:00Z"`,
		`"file_size":3`,
		`"backup_path":`,
		`"undone":false`,
	} {
		if !strings.Contains(s, key) {
			t.Errorf("journal record %s missing %s", s, key)
		}
	}
	if strings.Contains(s, "undone_at") {
		t.Errorf("undone_at should be omitted until the operation is undone: %s", s)
	}

	var back FileOperation
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.Type != Move || !back.HasBackup() {
		t.Errorf("round trip = %+v", back)
	}
}

func TestFileOperation_UnmarshalRejectsUnknownType(t *testing.T) {
	var op FileOperation
	err := json.Unmarshal([]byte(`{"operation_id":"x","operation_type":"shred"}`), &op)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Unmarshal() error = %v, want ErrInvalidInput", err)
	}
}

func TestOperationIDGenerator(t *testing.T) {
	clock := fixedClock(time.Date(2024, 3, 5, 7, 8, 9, 123456789, time.UTC))
	got := OperationIDGenerator{Clock: clock}.New()
	if got != "op_20240305_070809_123456" {
		t.Errorf("New() = %q, want op_20240305_070809_123456", got)
	}
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }
