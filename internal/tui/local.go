package tui

import (
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/preservica-tools/preservica-upload/internal/localfs"
)

// listLocal reads dir on a command goroutine.
func (m *Model) listLocal(dir string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		entries, err := localfs.ListDirectory(ctx, dir, localfs.ListOptions{DirsFirst: true})
		return localListedMsg{dir: dir, entries: entries, err: err}
	}
}

// localRows returns the entries shown in the local pane. The first row
// leads to the parent directory unless dir is a filesystem root.
func (m *Model) localRows() []localfs.FileEntry {
	rows := make([]localfs.FileEntry, 0, len(m.localEntries)+1)
	if parent := filepath.Dir(m.localDir); parent != m.localDir {
		rows = append(rows, localfs.FileEntry{Path: parent, Name: "..", IsDir: true})
	}
	return append(rows, m.localEntries...)
}

func (m *Model) handleLocalKey(msg tea.KeyMsg) tea.Cmd {
	rows := m.localRows()
	switch {
	case keyMatches(msg, m.keys.Up):
		if m.localCursor > 0 {
			m.localCursor--
		}
	case keyMatches(msg, m.keys.Down):
		if m.localCursor < len(rows)-1 {
			m.localCursor++
		}
	case keyMatches(msg, m.keys.Parent), keyMatches(msg, m.keys.Collapse):
		return m.listLocal(filepath.Dir(m.localDir))
	case keyMatches(msg, m.keys.Open):
		if m.localCursor >= len(rows) {
			return nil
		}
		entry := rows[m.localCursor]
		if entry.IsDir {
			return m.listLocal(entry.Path)
		}
		m.selectLocal(entry.Path)
	case keyMatches(msg, m.keys.Select):
		if m.localCursor >= len(rows) || rows[m.localCursor].Name == ".." {
			return nil
		}
		m.selectLocal(rows[m.localCursor].Path)
	}
	return nil
}

func (m *Model) selectLocal(path string) {
	sel := m.selection.SelectLocal(path)
	m.setStatus(sel.Describe())
}

func (m *Model) renderLocal(width, height int) string {
	var b strings.Builder
	b.WriteString(paneTitleStyle.Width(width).Render("Local File System"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(truncate(m.localDir, width)))
	b.WriteString("\n")

	if m.localErr != nil {
		b.WriteString(errorStyle.Render(truncate("❌ "+m.localErr.Error(), width)))
		return b.String()
	}

	local, _ := m.selection.Snapshot()
	rows := m.localRows()
	start, end := window(m.localCursor, len(rows), height-2)
	for i := start; i < end; i++ {
		entry := rows[i]
		label := entry.Name
		style := fileStyle
		if entry.IsDir {
			label += "/"
			style = directoryStyle
		}
		mark := "  "
		if local != nil && local.Path == entry.Path && entry.Name != ".." {
			mark = selectedMarkStyle.Render("✓ ")
		}
		line := truncate(label, width-2)
		if m.focus == paneLocal && i == m.localCursor {
			b.WriteString(mark + cursorStyle.Render(line))
		} else {
			b.WriteString(mark + style.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
