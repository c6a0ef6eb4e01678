package models

import "time"

// Node is a single labeled record in the hierarchy. Parent relationships are
// stored as id references; a nil ParentID marks a root.
type Node struct {
	ID        string    `json:"id" yaml:"id"`
	Label     string    `json:"label" yaml:"label"`
	ParentID  *string   `json:"parentId" yaml:"parentId"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// IsRoot reports whether the node has no parent
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

// ParentOrEmpty returns the parent id, or "" for roots
func (n *Node) ParentOrEmpty() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// Copy returns a deep copy of the node
func (n *Node) Copy() *Node {
	cp := *n
	if n.ParentID != nil {
		cp.ParentID = StringPtr(*n.ParentID)
	}
	return &cp
}

// NodePatch carries a partial update. A nil Label leaves the label unchanged.
// ParentID is only applied when SetParent is true; a nil ParentID with
// SetParent makes the node a root.
type NodePatch struct {
	Label     *string
	ParentID  *string
	SetParent bool
}

// IsEmpty reports whether the patch changes nothing
func (p NodePatch) IsEmpty() bool {
	return p.Label == nil && !p.SetParent
}

// Apply writes the patch onto n and stamps UpdatedAt
func (p NodePatch) Apply(n *Node, now time.Time) {
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.SetParent {
		if p.ParentID == nil {
			n.ParentID = nil
		} else {
			n.ParentID = StringPtr(*p.ParentID)
		}
	}
	n.UpdatedAt = now
}

// TreeNode is the nested read-side view of a node
type TreeNode struct {
	ID       string      `json:"id" yaml:"id"`
	Label    string      `json:"label" yaml:"label"`
	ParentID *string     `json:"parentId" yaml:"parentId"`
	Children []*TreeNode `json:"children" yaml:"children"`
}

// StringPtr returns a pointer to a copy of s
func StringPtr(s string) *string {
	return &s
}
