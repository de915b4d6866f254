package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRead(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{"read all (0)", 0, expectedAll},
		{"read all (negative)", -1, expectedAll},
		{"read partial (5)", 5, expectedAll[5:]},
		{"read exactly all (10)", 10, expectedAll},
		{"read more than exists (20)", 20, expectedAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "nope.log"), 5)
	if err != nil || got != nil {
		t.Fatalf("Read(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	line := `{"level":"warn","room":"ABC123","station":2,"time":"2026-03-01T10:04:05Z","message":"rejoin failed"}`
	e := Parse(line)

	want := time.Date(2026, 3, 1, 10, 4, 5, 0, time.UTC)
	if !e.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", e.Time, want)
	}
	if e.Level != "warn" || e.Message != "rejoin failed" {
		t.Fatalf("Level/Message = %q/%q, want warn/rejoin failed", e.Level, e.Message)
	}
	if got := e.String(); got != "10:04:05 WRN rejoin failed room=ABC123 station=2" {
		t.Fatalf("String() = %q", got)
	}
}

func TestParse_NotJSON(t *testing.T) {
	e := Parse("panic: something broke")
	if e.Raw != "panic: something broke" || e.String() != e.Raw {
		t.Fatalf("Parse(non-json) = %+v, want raw passthrough", e)
	}
}

func TestParseLines_SkipsBlank(t *testing.T) {
	got := ParseLines([]string{`{"level":"info","message":"a"}`, "  ", `{"level":"debug","message":"b"}`})
	if len(got) != 2 {
		t.Fatalf("ParseLines returned %d entries, want 2", len(got))
	}
	if got[0].String() != "INF a" || got[1].String() != "DBG b" {
		t.Fatalf("entries = %q, %q", got[0].String(), got[1].String())
	}
}
