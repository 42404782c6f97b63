package models

import (
	"time"
)

const (
	// MaxTextBytes is the largest serialized byte length the store accepts
	// for a file node's text.
	MaxTextBytes = 10 * 1024

	// MaxClientIDLen is the longest client identifier the store accepts on
	// a lock record.
	MaxClientIDLen = 25

	// LockTimeout is how long a lock is honored after acquisition. A lock
	// older than this is treated as expired by every acquirer.
	LockTimeout = 30 * time.Minute

	// MaxPathDepth bounds ancestry resolution. A chain longer than this is
	// treated as store corruption rather than walked forever.
	MaxPathDepth = 256
)

type NodeType string

const (
	NodeTypeFile      NodeType = "file"
	NodeTypeDirectory NodeType = "directory"
	NodeTypeSymlink   NodeType = "symlink"
)

func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeFile, NodeTypeDirectory, NodeTypeSymlink:
		return true
	}
	return false
}

// Node is the sole persisted entity of the drive. The store is flat: nodes
// carry no parent pointer. A directory's Contents lists the ids of its
// children; a symlink's Contents holds exactly the target id; a file's
// Contents is unused.
type Node struct {
	ID         string   `json:"node_id"`
	Type       NodeType `json:"type"`
	Name       string   `json:"name"`
	Contents   []string `json:"contents,omitempty"`
	Text       string   `json:"text,omitempty"`
	Size       int64    `json:"size,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Lock       *Lock    `json:"lock,omitempty"`
	CreatedAt  int64    `json:"createdAt,omitempty"`
	ModifiedAt int64    `json:"modifiedAt,omitempty"`
}

func (n *Node) IsFile() bool      { return n.Type == NodeTypeFile }
func (n *Node) IsDirectory() bool { return n.Type == NodeTypeDirectory }
func (n *Node) IsSymlink() bool   { return n.Type == NodeTypeSymlink }

// SymlinkTarget returns the target node id of a symlink, or "" when the
// node is not a symlink or the link record is malformed.
func (n *Node) SymlinkTarget() string {
	if n.Type != NodeTypeSymlink || len(n.Contents) != 1 {
		return ""
	}
	return n.Contents[0]
}

// NodeDraft is the payload for creating a node. The store assigns the id
// and the timestamps.
type NodeDraft struct {
	Type     NodeType `json:"type"`
	Name     string   `json:"name"`
	Contents []string `json:"contents,omitempty"`
	Text     string   `json:"text,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Lock     *Lock    `json:"lock,omitempty"`
}

// NodePatch is a partial update of a node. Nil fields are left untouched by
// the store. ClearLock releases the lock field explicitly; the store treats
// a literal null as "remove the lock", which omitempty would swallow, so
// the wire form is built by hand in Fields.
type NodePatch struct {
	Name      *string
	Text      *string
	Tags      *[]string
	Contents  *[]string
	Lock      *Lock
	ClearLock bool
}

// Fields returns the wire representation of the patch. Only set fields are
// present so the store leaves the rest alone.
func (p *NodePatch) Fields() map[string]any {
	fields := make(map[string]any)
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Text != nil {
		fields["text"] = *p.Text
	}
	if p.Tags != nil {
		fields["tags"] = *p.Tags
	}
	if p.Contents != nil {
		fields["contents"] = *p.Contents
	}
	if p.Lock != nil {
		fields["lock"] = p.Lock
	} else if p.ClearLock {
		fields["lock"] = nil
	}
	return fields
}

// Empty reports whether the patch would write nothing.
func (p *NodePatch) Empty() bool {
	return p.Name == nil && p.Text == nil && p.Tags == nil &&
		p.Contents == nil && p.Lock == nil && !p.ClearLock
}

// TextByteLen is the serialized byte length of a file text, the quantity
// the store's 10 KiB cap is measured against.
func TextByteLen(text string) int {
	return len(text)
}
