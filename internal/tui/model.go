// Package tui is the interactive two-pane terminal interface: a local file
// browser on the left, the lazily loaded Preservica folder tree on the
// right, and a status line with upload progress underneath.
package tui

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/preservica-tools/preservica-upload/internal/events"
	"github.com/preservica-tools/preservica-upload/internal/localfs"
	"github.com/preservica-tools/preservica-upload/internal/logging"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
	"github.com/preservica-tools/preservica-upload/internal/selection"
	"github.com/preservica-tools/preservica-upload/internal/version"
)

const (
	msgReady      = "Ready. Select a local file and Preservica folder, then press u to upload."
	msgNotAFolder = "Please select a Preservica folder (not an asset)"
	msgRefreshed  = "Refreshed Preservica folders"
)

type pane int

const (
	paneLocal pane = iota
	paneRemote
)

// Uploader starts upload jobs. *upload.Orchestrator implements it.
type Uploader interface {
	Trigger(ctx context.Context, local *selection.LocalSelection, folder *remotetree.Folder) bool
	Busy() bool
}

// Options wires a Model.
type Options struct {
	Cache    *remotetree.Cache
	Uploader Uploader
	StartDir string
	Logger   *logging.Logger
}

// Model is the Bubble Tea model for the upload screen.
type Model struct {
	ctx       context.Context
	cache     *remotetree.Cache
	uploader  Uploader
	selection *selection.State
	logger    *logging.Logger

	keys     KeyMap
	help     help.Model
	progress progress.Model

	focus  pane
	width  int
	height int

	localDir     string
	localEntries []localfs.FileEntry
	localCursor  int
	localErr     error

	rows         []treeRow
	expanded     map[remotetree.NodeID]bool
	remoteCursor int
	loadingRoots bool

	status       string
	statusLevel  events.Level
	showProgress bool
	percent      float64
}

// New creates the model. ctx bounds every background load and upload.
func New(ctx context.Context, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Model{
		ctx:          ctx,
		cache:        opts.Cache,
		uploader:     opts.Uploader,
		selection:    &selection.State{},
		logger:       logger,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		progress:     progress.New(progress.WithDefaultGradient()),
		width:        100,
		height:       30,
		localDir:     opts.StartDir,
		expanded:     make(map[remotetree.NodeID]bool),
		loadingRoots: true,
		status:       msgReady,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listLocal(m.localDir), m.loadRoots())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case localListedMsg:
		if msg.err != nil {
			m.localErr = msg.err
			m.logger.Warn().Err(msg.err).Str("dir", msg.dir).Msg("failed to list local directory")
			return m, nil
		}
		m.localErr = nil
		m.localDir = msg.dir
		m.localEntries = msg.entries
		m.localCursor = 0
		return m, nil

	case rootsLoadedMsg:
		m.loadingRoots = false
		m.rebuildRows()
		if msg.refreshed {
			m.setStatus(msgRefreshed)
		}
		return m, nil

	case nodeExpandedMsg:
		m.rebuildRows()
		return m, nil

	case eventMsg:
		m.handleEvent(msg.event)
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case keyMatches(msg, m.keys.Quit):
		return tea.Quit
	case keyMatches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	case keyMatches(msg, m.keys.Switch):
		if m.focus == paneLocal {
			m.focus = paneRemote
			m.highlight()
		} else {
			m.focus = paneLocal
		}
		return nil
	case keyMatches(msg, m.keys.Upload):
		m.startUpload()
		return nil
	case keyMatches(msg, m.keys.Refresh):
		m.selection.ClearFolder()
		m.expanded = make(map[remotetree.NodeID]bool)
		m.rows = nil
		m.remoteCursor = 0
		m.loadingRoots = true
		return m.refreshRoots()
	}

	if m.focus == paneLocal {
		return m.handleLocalKey(msg)
	}
	return m.handleRemoteKey(msg)
}

// startUpload hands the current selection to the uploader. Validation
// messages come back as status events.
func (m *Model) startUpload() {
	local, folder := m.selection.Snapshot()
	if !m.uploader.Trigger(m.ctx, local, folder) && m.uploader.Busy() {
		m.logger.Debug().Msg("upload key ignored while an upload is running")
	}
}

func (m *Model) handleEvent(ev events.Event) {
	switch e := ev.(type) {
	case *events.StatusEvent:
		m.status = e.Message
		m.statusLevel = e.Level
	case *events.ProgressEvent:
		m.percent = float64(e.Percent) / 100
	case *events.ProgressVisibilityEvent:
		m.showProgress = e.Visible
		if e.Reset {
			m.percent = 0
		}
	case *events.StateChangeEvent:
		m.logger.Debug().Str("job_id", e.JobID).Str("from", e.OldStatus).Str("to", e.NewStatus).Msg("upload state change")
	}
}

func (m *Model) setStatus(msg string) {
	m.status = msg
	m.statusLevel = events.InfoLevel
}

// View implements tea.Model.
func (m *Model) View() string {
	header := titleStyle.Render("Preservica Upload " + version.Version)

	footerHeight := 4
	if m.showProgress {
		footerHeight++
	}
	paneHeight := max(5, m.height-footerHeight-3)
	paneWidth := max(20, m.width/2-4)

	left := paneStyle
	right := paneStyle
	if m.focus == paneLocal {
		left = focusedPaneStyle
	} else {
		right = focusedPaneStyle
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		left.Width(paneWidth).Height(paneHeight).Render(m.renderLocal(paneWidth, paneHeight)),
		right.Width(paneWidth).Height(paneHeight).Render(m.renderRemote(paneWidth, paneHeight)),
	)

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(panes)
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	if m.showProgress {
		m.progress.Width = max(10, m.width-4)
		b.WriteString(m.progress.ViewAs(m.percent))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderStatus() string {
	style := statusStyle
	switch m.statusLevel {
	case events.ErrorLevel:
		style = style.Foreground(errorStyle.GetForeground()).Bold(true)
	case events.SuccessLevel:
		style = style.Foreground(successStyle.GetForeground()).Bold(true)
	case events.WarnLevel:
		style = style.Foreground(warnStyle.GetForeground())
	}
	return style.Width(max(20, m.width)).Render(m.status)
}

func keyMatches(msg tea.KeyMsg, b key.Binding) bool {
	return key.Matches(msg, b)
}

// window returns the slice bounds of a scrolling list of n rows that keeps
// cursor visible in height rows.
func window(cursor, n, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := 0
	if cursor >= height {
		start = cursor - height + 1
	}
	return start, min(n, start+height)
}

func truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}
