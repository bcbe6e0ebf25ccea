package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preservica-tools/preservica-upload/internal/events"
	"github.com/preservica-tools/preservica-upload/internal/packaging"
	"github.com/preservica-tools/preservica-upload/internal/preservica"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
	"github.com/preservica-tools/preservica-upload/internal/selection"
	"github.com/preservica-tools/preservica-upload/internal/transport"
)

const mib = 1024 * 1024

// sizedPackager writes a sparse package of a fixed size.
type sizedPackager struct {
	dir  string
	size int64
}

func (p *sizedPackager) PackageSingleFile(ctx context.Context, path string, folder remotetree.Folder) (string, error) {
	dest := filepath.Join(p.dir, "asset-"+filepath.Base(path)+".zip")
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := f.Truncate(p.size); err != nil {
		return "", err
	}
	return dest, nil
}

type uploadCall struct {
	bulk        bool
	archive     string
	bucket      string
	folder      remotetree.Folder
	deleteAfter bool
}

// fakeClient reports progress in ten chunks and records each call.
type fakeClient struct {
	mu      sync.Mutex
	calls   []uploadCall
	err     error
	release chan struct{}
	started chan struct{}
}

func (c *fakeClient) upload(call uploadCall, progress preservica.ProgressFunc) error {
	if c.started != nil {
		close(c.started)
	}
	if c.release != nil {
		<-c.release
	}

	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()

	if c.err != nil {
		progress(1)
		return c.err
	}

	info, err := os.Stat(call.archive)
	if err != nil {
		return err
	}
	chunk := info.Size() / 10
	for i := 0; i < 10; i++ {
		progress(chunk)
	}
	progress(info.Size() - chunk*10)
	return nil
}

func (c *fakeClient) UploadDirect(ctx context.Context, archivePath string, folder remotetree.Folder, progress preservica.ProgressFunc, deleteAfter bool) error {
	return c.upload(uploadCall{archive: archivePath, folder: folder, deleteAfter: deleteAfter}, progress)
}

func (c *fakeClient) UploadBulk(ctx context.Context, archivePath, bucket string, folder remotetree.Folder, progress preservica.ProgressFunc, deleteAfter bool) error {
	return c.upload(uploadCall{bulk: true, archive: archivePath, bucket: bucket, folder: folder, deleteAfter: deleteAfter}, progress)
}

func (c *fakeClient) Calls() []uploadCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uploadCall(nil), c.calls...)
}

type harness struct {
	orch     *Orchestrator
	client   *fakeClient
	recorder *events.Recorder
	errorLog string
	tempDir  string
}

func newHarness(t *testing.T, packageSize int64) *harness {
	t.Helper()
	tempDir := t.TempDir()
	recorder := &events.Recorder{}
	client := &fakeClient{}
	errorLog := filepath.Join(t.TempDir(), "upload_error.log")

	pipeline := packaging.NewPipeline(&sizedPackager{dir: tempDir, size: packageSize}, recorder, packaging.WithTempDir(tempDir))
	orch := NewOrchestrator(Options{
		Packager:     pipeline,
		Selector:     transport.NewSelector(100),
		Client:       client,
		Sink:         recorder,
		Bucket:       "customer-bucket",
		ErrorLogPath: errorLog,
	})
	return &harness{orch: orch, client: client, recorder: recorder, errorLog: errorLog, tempDir: tempDir}
}

func localFile(t *testing.T, name string, size int) *selection.LocalSelection {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	sel := selection.NewLocalSelection(path)
	return &sel
}

var accessions = &remotetree.Folder{Ref: "so-1", Title: "Accessions"}

func assertStrictlyIncreasingTo100(t *testing.T, percents []int) {
	t.Helper()
	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.Greater(t, percents[i], percents[i-1], "percents %v", percents)
	}
	assert.Equal(t, 100, percents[len(percents)-1])
}

func indexOf(statuses []string, prefix string) int {
	for i, s := range statuses {
		if strings.HasPrefix(s, prefix) {
			return i
		}
	}
	return -1
}

func TestScenarioDirectUpload(t *testing.T) {
	h := newHarness(t, 50*mib)

	require.True(t, h.orch.Trigger(context.Background(), localFile(t, "report.pdf", 1024), accessions))
	h.orch.Wait()

	calls := h.client.Calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].bulk)
	assert.True(t, calls[0].deleteAfter)
	assert.Equal(t, *accessions, calls[0].folder)

	statuses := h.recorder.Statuses()
	assert.Equal(t, []string{
		"📁 File size: 0.00 MB",
		"📤 Uploading to folder: Accessions",
		"📦 Creating asset package...",
		"📦 Package created: asset-report.pdf.zip",
		"📦 Package size: 50.00 MB",
		"⬆️  Starting upload...",
		"✅ Upload complete! Check Preservica web UI for ingest progress.",
	}, statuses)
	assert.Equal(t, -1, indexOf(statuses, "📦 Large file detected"))

	assertStrictlyIncreasingTo100(t, h.recorder.Percents())

	job := h.orch.LastJob()
	require.NotNil(t, job)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, transport.Direct, job.Transport)
	assert.Equal(t, 100, job.LastReportedPercent)
	assert.Equal(t, StatusIdle, h.orch.State())
	assert.False(t, h.orch.Busy())
	assert.NoFileExists(t, h.errorLog)
}

func TestScenarioBulkUpload(t *testing.T) {
	h := newHarness(t, 150*mib)

	require.True(t, h.orch.Trigger(context.Background(), localFile(t, "film.mov", 10), accessions))
	h.orch.Wait()

	calls := h.client.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].bulk)
	assert.Equal(t, "customer-bucket", calls[0].bucket)
	assert.True(t, calls[0].deleteAfter)

	// The large-file notice comes before the job enters Uploading.
	large, uploading := -1, -1
	for i, ev := range h.recorder.Events() {
		switch e := ev.(type) {
		case *events.StatusEvent:
			if strings.HasPrefix(e.Message, "📦 Large file detected") {
				large = i
			}
		case *events.StateChangeEvent:
			if e.NewStatus == StatusUploading.String() {
				uploading = i
			}
		}
	}
	require.NotEqual(t, -1, large)
	require.NotEqual(t, -1, uploading)
	assert.Less(t, large, uploading)

	assertStrictlyIncreasingTo100(t, h.recorder.Percents())
	assert.Equal(t, transport.BulkObjectStorage, h.orch.LastJob().Transport)
	assert.Equal(t, StatusCompleted, h.orch.LastJob().Status)
}

func TestScenarioDirectory(t *testing.T) {
	h := newHarness(t, 0)

	dir := filepath.Join(t.TempDir(), "Reports")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2023"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2023", "q1.csv"), []byte("a,b\n1,2\n"), 0644))
	sel := selection.NewLocalSelection(dir)

	require.True(t, h.orch.Trigger(context.Background(), &sel, accessions))
	h.orch.Wait()

	calls := h.client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, filepath.Join(h.tempDir, "Reports.zip"), calls[0].archive)
	assert.False(t, calls[0].bulk)

	statuses := h.recorder.Statuses()
	assert.NotEqual(t, -1, indexOf(statuses, "📦 Zipping folder Reports..."))
	assert.NotEqual(t, -1, indexOf(statuses, "📦 Package created: Reports.zip"))
	assert.Equal(t, StatusCompleted, h.orch.LastJob().Status)
}

func TestTriggerWhileBusyIsIgnored(t *testing.T) {
	h := newHarness(t, mib)
	h.client.started = make(chan struct{})
	h.client.release = make(chan struct{})

	require.True(t, h.orch.Trigger(context.Background(), localFile(t, "a.txt", 1), accessions))
	<-h.client.started

	assert.True(t, h.orch.Busy())
	assert.Equal(t, StatusUploading, h.orch.State())
	firstID := h.orch.LastJob().ID

	assert.False(t, h.orch.Trigger(context.Background(), localFile(t, "b.txt", 1), accessions))
	assert.Equal(t, firstID, h.orch.LastJob().ID)

	close(h.client.release)
	h.orch.Wait()

	assert.Len(t, h.client.Calls(), 1)
	assert.False(t, h.orch.Busy())

	h.client.started = nil
	h.client.release = nil
	assert.True(t, h.orch.Trigger(context.Background(), localFile(t, "c.txt", 1), accessions))
	h.orch.Wait()
	assert.Len(t, h.client.Calls(), 2)
}

func TestUploadFailureWritesErrorLog(t *testing.T) {
	h := newHarness(t, mib)
	h.client.err = errors.New("gateway exploded")

	require.True(t, h.orch.Trigger(context.Background(), localFile(t, "a.txt", 1), accessions))
	h.orch.Wait()

	assert.Equal(t, "❌ Upload failed: gateway exploded", h.recorder.LastStatus())

	var lastVisibility *events.ProgressVisibilityEvent
	for _, ev := range h.recorder.Events() {
		if v, ok := ev.(*events.ProgressVisibilityEvent); ok {
			lastVisibility = v
		}
	}
	require.NotNil(t, lastVisibility)
	assert.False(t, lastVisibility.Visible)

	data, err := os.ReadFile(h.errorLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gateway exploded")
	assert.Contains(t, string(data), "stage: Uploading")
	assert.Contains(t, string(data), "folder: Accessions (so-1)")

	job := h.orch.LastJob()
	assert.Equal(t, StatusFailed, job.Status)
	var failed *UploadFailedError
	require.True(t, errors.As(job.Err, &failed))
	assert.Equal(t, StatusUploading, failed.Stage)
	assert.Equal(t, StatusIdle, h.orch.State())
}

func TestErrorLogIsOverwritten(t *testing.T) {
	h := newHarness(t, mib)
	h.client.err = errors.New("first failure")
	require.True(t, h.orch.Trigger(context.Background(), localFile(t, "a.txt", 1), accessions))
	h.orch.Wait()

	h.client.err = errors.New("second failure")
	require.True(t, h.orch.Trigger(context.Background(), localFile(t, "b.txt", 1), accessions))
	h.orch.Wait()

	data, err := os.ReadFile(h.errorLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "second failure")
	assert.NotContains(t, string(data), "first failure")
}

func TestErrorLogWriteFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, mib)
	h.orch.errorLogPath = filepath.Join(t.TempDir(), "missing", "dir", "upload_error.log")
	h.client.err = errors.New("boom")

	require.True(t, h.orch.Trigger(context.Background(), localFile(t, "a.txt", 1), accessions))
	h.orch.Wait()

	assert.Equal(t, "❌ Upload failed: boom", h.recorder.LastStatus())
	assert.Equal(t, StatusIdle, h.orch.State())
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		local  *selection.LocalSelection
		folder *remotetree.Folder
		want   string
	}{
		{"no local selection", nil, accessions, "❌ Please select a local file or folder first"},
		{"no folder", &selection.LocalSelection{Path: "/tmp/x", Kind: selection.KindFile}, nil, "❌ Please select a Preservica folder first"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, mib)

			assert.False(t, h.orch.Trigger(context.Background(), tt.local, tt.folder))
			h.orch.Wait()

			assert.Equal(t, tt.want, h.recorder.LastStatus())
			assert.Empty(t, h.client.Calls())
			assert.False(t, h.orch.Busy())
			assert.Equal(t, StatusIdle, h.orch.State())
			assert.NoFileExists(t, h.errorLog)
		})
	}
}

func TestPathNeitherFileNorFolder(t *testing.T) {
	h := newHarness(t, mib)
	sel := &selection.LocalSelection{Path: filepath.Join(t.TempDir(), "gone.txt"), Kind: selection.KindFile}

	require.True(t, h.orch.Trigger(context.Background(), sel, accessions))
	h.orch.Wait()

	assert.Equal(t, "❌ Upload failed: Selected path is neither a file nor a folder", h.recorder.LastStatus())
	assert.Empty(t, h.client.Calls())
	assert.Equal(t, StatusFailed, h.orch.LastJob().Status)
}

func TestStateChangesEndInIdle(t *testing.T) {
	h := newHarness(t, mib)
	require.True(t, h.orch.Trigger(context.Background(), localFile(t, "a.txt", 1), accessions))
	h.orch.Wait()

	var got []string
	for _, ev := range h.recorder.Events() {
		if sc, ok := ev.(*events.StateChangeEvent); ok {
			got = append(got, sc.NewStatus)
		}
	}
	assert.Equal(t, []string{"Validating", "Packaging", "SelectingTransport", "Uploading", "Completed", "Idle"}, got)
}
