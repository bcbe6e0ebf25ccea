package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/preservica-tools/preservica-upload/internal/events"
	"github.com/preservica-tools/preservica-upload/internal/progress"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
	"github.com/preservica-tools/preservica-upload/internal/selection"
	"github.com/preservica-tools/preservica-upload/internal/upload"
)

// errUploadFailed is returned after the failure was already printed.
var errUploadFailed = fmt.Errorf("%w: upload failed", errReported)

func newUploadCmd() *cobra.Command {
	var (
		localPath   string
		folderRef   string
		folderTitle string
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a file or folder without the interactive screen",
		Long: `Package a local file or folder and upload it into a Preservica folder.

Single files are wrapped into an asset package; folders are zipped.
Packages of at least PRESERVICA_S3_THRESHOLD MB go to the bulk bucket.

Example:
  preservica-upload upload --local ./scans --folder 2f8a7c1e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if localPath == "" {
				return fmt.Errorf("--local is required")
			}
			if folderRef == "" {
				return fmt.Errorf("--folder is required")
			}
			if folderTitle == "" {
				folderTitle = folderRef
			}
			return runUpload(cmd, localPath, remotetree.Folder{Ref: folderRef, Title: folderTitle})
		},
	}

	cmd.Flags().StringVarP(&localPath, "local", "l", "", "Local file or folder to upload (required)")
	cmd.Flags().StringVarP(&folderRef, "folder", "f", "", "Reference of the target Preservica folder (required)")
	cmd.Flags().StringVar(&folderTitle, "folder-title", "", "Folder title shown in messages (default: the reference)")

	return cmd
}

func runUpload(cmd *cobra.Command, localPath string, folder remotetree.Folder) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(localPath)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", localPath, err)
	}

	log := GetLogger()
	ui := progress.NewUploadUI()

	app, err := newApplication(cfg, log, progress.NewCLIProgress())
	if err != nil {
		return err
	}
	defer app.Close()

	// Subscribe before triggering so no event is missed.
	eventCh := app.bus.SubscribeAll()
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumeUploadEvents(eventCh, ui, ui.Writer(), app.orchestrator.LastJob)
	}()

	local := selection.NewLocalSelection(abs)
	started := app.orchestrator.Trigger(GetContext(), &local, &folder)
	app.orchestrator.Wait()
	<-done
	ui.Wait()

	if !started {
		return errUploadFailed
	}
	job := app.orchestrator.LastJob()
	if job == nil || job.Status != upload.StatusCompleted {
		if ctxErr := GetContext().Err(); ctxErr != nil {
			return fmt.Errorf("upload cancelled: %w", ctxErr)
		}
		return errUploadFailed
	}
	return nil
}

// consumeUploadEvents prints status messages and drives one progress bar
// until the orchestrator returns to Idle.
func consumeUploadEvents(ch <-chan events.Event, display progress.UploadDisplay, out io.Writer, lastJob func() *upload.Job) {
	var bar progress.BarHandle

	for event := range ch {
		switch e := event.(type) {
		case *events.StatusEvent:
			fmt.Fprintln(out, e.Message)

		case *events.ProgressVisibilityEvent:
			if e.Visible && bar == nil {
				job := lastJob()
				if job == nil || job.Archive == nil {
					continue
				}
				bar = display.AddArchiveBar(job.Selection.Path, job.Target.Title, job.Archive.SizeBytes)
			}

		case *events.ProgressEvent:
			if bar != nil {
				bar.SetPercent(e.Percent)
			}

		case *events.StateChangeEvent:
			switch e.NewStatus {
			case upload.StatusCompleted.String():
				if bar != nil {
					bar.Complete(nil)
					bar = nil
				}
			case upload.StatusFailed.String():
				if bar != nil {
					bar.Complete(errors.New(e.ErrorMessage))
					bar = nil
				}
			case upload.StatusIdle.String():
				return
			}
		}
	}
}
