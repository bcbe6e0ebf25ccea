package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		path string
		n    int
		want string
	}{
		{"/a/b/c/d/file.txt", 3, "…/c/d/file.txt"},
		{"file.txt", 2, "file.txt"},
		{"dir/file.txt", 2, "file.txt"},
	}

	for _, tt := range tests {
		if got := truncatePath(tt.path, tt.n); got != tt.want {
			t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.path, tt.n, got, tt.want)
		}
	}
}

func TestUploadUI_NonTerminalOutput(t *testing.T) {
	var buf bytes.Buffer
	ui := &UploadUI{out: &buf}

	bar := ui.AddArchiveBar("/data/reports.zip", "Accessions", 1024)
	bar.SetPercent(50)
	bar.SetPercent(100)
	bar.Complete(nil)
	bar.Complete(errors.New("ignored second completion"))
	ui.Wait()

	out := buf.String()
	for _, want := range []string{"Uploading: …/data/reports.zip", "50%", "100%", "✓ …/data/reports.zip → Accessions"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ignored second completion") {
		t.Error("Complete should only report once")
	}
	if ui.IsTerminal() {
		t.Error("IsTerminal() should be false")
	}
}

func TestUploadUI_FailureSummary(t *testing.T) {
	var buf bytes.Buffer
	ui := &UploadUI{out: &buf}

	bar := ui.AddArchiveBar("reports.zip", "Accessions", 10)
	bar.Complete(errors.New("gateway refused"))

	if !strings.Contains(buf.String(), "✗ reports.zip → Accessions: gateway refused") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestNopTracker(t *testing.T) {
	var tr Tracker = NopTracker{}
	tr.Start(10, "zipping")
	tr.Update(5)
	tr.SetDescription("still zipping")
	tr.Error(errors.New("x"))
	tr.Finish()
}
