package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/preservica-tools/preservica-upload/internal/remotetree"
)

// treeRow is one visible line of the remote tree.
type treeRow struct {
	node    remotetree.Node
	depth   int
	loading bool // synthetic row under a folder whose children are loading
}

func (m *Model) loadRoots() tea.Cmd {
	ctx, cache := m.ctx, m.cache
	return func() tea.Msg {
		return rootsLoadedMsg{nodes: cache.LoadRoots(ctx)}
	}
}

func (m *Model) refreshRoots() tea.Cmd {
	ctx, cache := m.ctx, m.cache
	return func() tea.Msg {
		return rootsLoadedMsg{nodes: cache.Refresh(ctx), refreshed: true}
	}
}

func (m *Model) expand(id remotetree.NodeID) tea.Cmd {
	ctx, cache := m.ctx, m.cache
	return func() tea.Msg {
		cache.Expand(ctx, id)
		return nodeExpandedMsg{id: id}
	}
}

// rebuildRows flattens the expanded part of the tree.
func (m *Model) rebuildRows() {
	m.rows = m.rows[:0]
	m.appendRows(remotetree.RootID, 0)
	if m.remoteCursor >= len(m.rows) {
		m.remoteCursor = max(0, len(m.rows)-1)
	}
}

func (m *Model) appendRows(parent remotetree.NodeID, depth int) {
	for _, n := range m.cache.Children(parent) {
		m.rows = append(m.rows, treeRow{node: n, depth: depth})
		if n.Kind != remotetree.NodeFolder || !m.expanded[n.ID] {
			continue
		}
		if n.State == remotetree.Placeholder || n.State == remotetree.Loading {
			m.rows = append(m.rows, treeRow{node: remotetree.Node{ID: -1, Label: "Loading..."}, depth: depth + 1, loading: true})
			continue
		}
		m.appendRows(n.ID, depth+1)
	}
}

func (m *Model) handleRemoteKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case keyMatches(msg, m.keys.Up):
		if m.remoteCursor > 0 {
			m.remoteCursor--
			m.highlight()
		}
	case keyMatches(msg, m.keys.Down):
		if m.remoteCursor < len(m.rows)-1 {
			m.remoteCursor++
			m.highlight()
		}
	case keyMatches(msg, m.keys.Open):
		row, ok := m.currentRow()
		if !ok || row.loading || row.node.Kind != remotetree.NodeFolder {
			return nil
		}
		if m.expanded[row.node.ID] {
			m.expanded[row.node.ID] = false
			m.rebuildRows()
			return nil
		}
		m.expanded[row.node.ID] = true
		m.rebuildRows()
		if row.node.Expandable() {
			return m.expand(row.node.ID)
		}
	case keyMatches(msg, m.keys.Collapse):
		row, ok := m.currentRow()
		if !ok {
			return nil
		}
		if !row.loading && m.expanded[row.node.ID] {
			m.expanded[row.node.ID] = false
			m.rebuildRows()
			return nil
		}
		m.moveToParent(row)
	}
	return nil
}

func (m *Model) moveToParent(row treeRow) {
	for i := m.remoteCursor - 1; i >= 0; i-- {
		if m.rows[i].depth < row.depth {
			m.remoteCursor = i
			m.highlight()
			return
		}
	}
}

func (m *Model) currentRow() (treeRow, bool) {
	if m.remoteCursor < 0 || m.remoteCursor >= len(m.rows) {
		return treeRow{}, false
	}
	return m.rows[m.remoteCursor], true
}

// highlight records the row under the cursor as the target folder. Assets,
// error leaves and loading rows clear the choice.
func (m *Model) highlight() {
	row, ok := m.currentRow()
	if !ok {
		return
	}
	if row.loading {
		m.selection.ClearFolder()
		m.setStatus(msgNotAFolder)
		return
	}
	if _, ok := m.selection.Highlight(m.cache, row.node.ID); ok {
		m.setStatus("Selected Preservica folder: " + row.node.Label)
		return
	}
	m.setStatus(msgNotAFolder)
}

func (m *Model) renderRemote(width, height int) string {
	var b strings.Builder
	b.WriteString(paneTitleStyle.Width(width).Render("Preservica Folders"))
	b.WriteString("\n")

	if m.loadingRoots {
		b.WriteString(mutedStyle.Render("⏳ Loading folders..."))
		return b.String()
	}

	_, folder := m.selection.Snapshot()
	start, end := window(m.remoteCursor, len(m.rows), height-1)
	for i := start; i < end; i++ {
		row := m.rows[i]
		indent := strings.Repeat("  ", row.depth)

		var icon string
		style := fileStyle
		switch {
		case row.loading:
			style = mutedStyle
		case row.node.Kind == remotetree.NodeFolder:
			style = directoryStyle
			icon = "▸ "
			if m.expanded[row.node.ID] {
				icon = "▾ "
			}
		case row.node.Kind == remotetree.NodeError:
			style = errorStyle
		}

		mark := "  "
		if folder != nil && !row.loading {
			if f, ok := m.cache.FolderFor(row.node.ID); ok && f.Ref == folder.Ref {
				mark = selectedMarkStyle.Render("✓ ")
			}
		}

		line := truncate(indent+icon+row.node.Label, width-2)
		if m.focus == paneRemote && i == m.remoteCursor {
			b.WriteString(mark + cursorStyle.Render(line))
		} else {
			b.WriteString(mark + style.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
