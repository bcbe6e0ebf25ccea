package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestCLILoggerWritesConsoleFormat(t *testing.T) {
	l := NewDefaultCLILogger()
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.Infof("uploading %s", "report.pdf")

	out := buf.String()
	if !strings.Contains(out, "uploading report.pdf") {
		t.Errorf("output %q missing message", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("CLI output should not be JSON: %q", out)
	}
}

func TestTUILoggerWritesJSON(t *testing.T) {
	l := &Logger{mode: ModeTUI}
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.Warn().Str("folder", "abc").Msg("tree load failed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["message"] != "tree load failed" || entry["folder"] != "abc" {
		t.Errorf("unexpected entry %v", entry)
	}
	if l.Output() != &buf {
		t.Error("Output() should return the writer passed to SetOutput")
	}
}

func TestNopLoggerAndClose(t *testing.T) {
	l := NewNopLogger()
	l.Errorf("ignored %d", 1)
	if err := l.Close(); err != nil {
		t.Errorf("Close() on logger without file = %v", err)
	}
	if l.Mode() != ModeCLI {
		t.Errorf("Mode() = %q", l.Mode())
	}
}
