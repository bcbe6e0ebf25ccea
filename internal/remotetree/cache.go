// Package remotetree lazily materializes the Preservica folder hierarchy one
// level at a time and maps tree nodes back to the folders they stand for.
package remotetree

import (
	"context"
	"fmt"
	"sync"

	"github.com/preservica-tools/preservica-upload/internal/logging"
)

// EntityType distinguishes containers from content.
type EntityType int

const (
	EntityFolder EntityType = iota
	EntityAsset
)

// Entity is one child returned by the entity service.
type Entity struct {
	Ref   string
	Title string
	Type  EntityType
}

// EntityService lists the direct children of a folder. An empty folderRef
// lists the top level of the repository.
type EntityService interface {
	Descendants(ctx context.Context, folderRef string) ([]Entity, error)
}

// Folder is a selectable upload target.
type Folder struct {
	Ref   string
	Title string
}

// NodeID identifies a node for the lifetime of one tree generation.
type NodeID int

// RootID is the virtual node holding the top-level entities.
const RootID NodeID = 0

// NodeKind says what a node represents.
type NodeKind int

const (
	NodeFolder NodeKind = iota
	NodeAsset
	NodeError
)

// NodeState is the lazy-loading lifecycle of a folder node.
type NodeState int

const (
	// Placeholder nodes are expandable but their children have not been fetched.
	Placeholder NodeState = iota
	Loading
	Loaded
	Errored
)

func (s NodeState) String() string {
	switch s {
	case Placeholder:
		return "Placeholder"
	case Loading:
		return "Loading"
	case Loaded:
		return "Loaded"
	case Errored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// Node is a snapshot of one tree node.
type Node struct {
	ID       NodeID
	Parent   NodeID
	Label    string
	Kind     NodeKind
	State    NodeState
	Children []NodeID
}

// Expandable reports whether expanding the node would trigger a load.
func (n Node) Expandable() bool {
	return n.Kind == NodeFolder && n.State == Placeholder
}

// Cache owns the tree. All methods are safe for concurrent use; the lock is
// never held while the entity service is being queried.
type Cache struct {
	svc    EntityService
	logger *logging.Logger

	mu         sync.Mutex
	nodes      map[NodeID]*Node
	folders    map[NodeID]Folder // only folder nodes are ever keys
	nextID     NodeID
	generation uint64
}

// NewCache creates an empty cache. Call LoadRoots to populate it.
func NewCache(svc EntityService, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Cache{svc: svc, logger: logger}
	c.resetLocked()
	return c
}

func (c *Cache) resetLocked() {
	c.nodes = map[NodeID]*Node{
		RootID: {ID: RootID, Parent: RootID, Label: "Preservica", Kind: NodeFolder, State: Placeholder},
	}
	c.folders = make(map[NodeID]Folder)
	c.nextID = RootID + 1
	c.generation++
}

// LoadRoots fetches the top-level entities and returns the root's children.
// A failure is recorded as a single error leaf under the root; the cache
// stays usable and Refresh will retry.
func (c *Cache) LoadRoots(ctx context.Context) []Node {
	c.mu.Lock()
	root := c.nodes[RootID]
	if root.State != Placeholder {
		c.mu.Unlock()
		return c.Children(RootID)
	}
	root.State = Loading
	gen := c.generation
	c.mu.Unlock()

	entities, err := c.svc.Descendants(ctx, "")

	c.mu.Lock()
	if gen == c.generation {
		c.populateLocked(RootID, entities, err)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to load top-level folders")
	}
	return c.Children(RootID)
}

// Expand loads the children of a folder node. It does nothing unless the
// node is a mapped folder still in Placeholder state, so repeated or
// concurrent expansion never duplicates children.
func (c *Cache) Expand(ctx context.Context, id NodeID) {
	c.mu.Lock()
	node, ok := c.nodes[id]
	folder, mapped := c.folders[id]
	if !ok || !mapped || node.State != Placeholder {
		c.mu.Unlock()
		return
	}
	node.State = Loading
	gen := c.generation
	c.mu.Unlock()

	entities, err := c.svc.Descendants(ctx, folder.Ref)

	c.mu.Lock()
	if gen == c.generation {
		c.populateLocked(id, entities, err)
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Str("folder", folder.Ref).Msg("failed to load folder children")
	}
}

// Refresh discards every node and mapping and reloads the top level.
// Loads still in flight from before the refresh are dropped when they return.
func (c *Cache) Refresh(ctx context.Context) []Node {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	return c.LoadRoots(ctx)
}

func (c *Cache) populateLocked(parentID NodeID, entities []Entity, err error) {
	parent := c.nodes[parentID]

	if err != nil {
		leaf := c.addLocked(parentID, fmt.Sprintf("Error: %v", err), NodeError, Loaded)
		parent.Children = []NodeID{leaf}
		parent.State = Errored
		return
	}

	children := make([]NodeID, 0, len(entities))
	for _, e := range entities {
		switch e.Type {
		case EntityFolder:
			id := c.addLocked(parentID, e.Title, NodeFolder, Placeholder)
			c.folders[id] = Folder{Ref: e.Ref, Title: e.Title}
			children = append(children, id)
		case EntityAsset:
			children = append(children, c.addLocked(parentID, "📄 "+e.Title, NodeAsset, Loaded))
		}
	}
	parent.Children = children
	parent.State = Loaded
}

func (c *Cache) addLocked(parent NodeID, label string, kind NodeKind, state NodeState) NodeID {
	id := c.nextID
	c.nextID++
	c.nodes[id] = &Node{ID: id, Parent: parent, Label: label, Kind: kind, State: state}
	return id
}

// Node returns a snapshot of a node.
func (c *Cache) Node(id NodeID) (Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return Node{}, false
	}
	return snapshot(n), true
}

// Children returns snapshots of a node's children in service order.
func (c *Cache) Children(id NodeID) []Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(n.Children))
	for _, child := range n.Children {
		out = append(out, snapshot(c.nodes[child]))
	}
	return out
}

// FolderFor returns the folder a node stands for. Assets, error leaves and
// the virtual root are never folders.
func (c *Cache) FolderFor(id NodeID) (Folder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.folders[id]
	return f, ok
}

func snapshot(n *Node) Node {
	out := *n
	out.Children = append([]NodeID(nil), n.Children...)
	return out
}
