package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		" DEBUG ":  zerolog.DebugLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"":         zerolog.InfoLevel,
		"verbose!": zerolog.InfoLevel,
	}

	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_filtersAndTags(t *testing.T) {
	var buf bytes.Buffer

	log := New("warn", &buf)
	log.Info().Msg("hidden")
	log.Warn().Str("address", "aa:bb:cc:dd:ee:ff").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected a single entry, got %q", buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["service"] != Service || entry["message"] != "visible" || entry["address"] != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("expected a timestamp, got %v", entry)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer

	t.Setenv("NO_COLOR", "1")
	log := NewConsole("info", &buf)
	log.Info().Msg("scan mode changed")

	if got := buf.String(); !strings.Contains(got, "INF") || !strings.Contains(got, "scan mode changed") {
		t.Fatalf("unexpected console output %q", got)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bondmgr.log")

	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	log := New("info", f)
	log.Info().Msg("started")
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"message":"started"`) {
		t.Fatalf("unexpected file contents %q", data)
	}
}
