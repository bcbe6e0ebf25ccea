package tui

import (
	"github.com/preservica-tools/preservica-upload/internal/events"
	"github.com/preservica-tools/preservica-upload/internal/localfs"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
)

// Message types for tea.Cmd communication

// eventMsg carries an event posted by a background worker.
type eventMsg struct {
	event events.Event
}

type localListedMsg struct {
	dir     string
	entries []localfs.FileEntry
	err     error
}

type rootsLoadedMsg struct {
	nodes     []remotetree.Node
	refreshed bool
}

type nodeExpandedMsg struct {
	id remotetree.NodeID
}
