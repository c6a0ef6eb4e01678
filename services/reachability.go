package services

import (
	"context"

	"github.com/staple-duck/snh/database"
	"github.com/staple-duck/snh/models"
)

// Reachability answers ancestry questions over a repository's parent links.
// It never mutates. Traversals are iterative and keep a visited set, so a
// corrupted (cyclic) hierarchy still terminates.
type Reachability struct {
	repo database.NodeRepository
}

// NewReachability binds the engine to a repository or transaction view
func NewReachability(repo database.NodeRepository) *Reachability {
	return &Reachability{repo: repo}
}

// IsAncestorOf reports whether walking up from nodeID's parent reaches
// candidateID. A node is not its own ancestor.
func (r *Reachability) IsAncestorOf(ctx context.Context, candidateID, nodeID string) (bool, error) {
	node, err := r.repo.Get(ctx, nodeID)
	if err != nil {
		return false, err
	}

	visited := map[string]bool{nodeID: true}
	for current := node.ParentID; current != nil; {
		id := *current
		if id == candidateID {
			return true, nil
		}
		if visited[id] {
			return false, nil
		}
		visited[id] = true

		parent, err := r.repo.Get(ctx, id)
		if err != nil {
			return false, err
		}
		current = parent.ParentID
	}
	return false, nil
}

// DescendantsOf returns every node below rootID, excluding rootID itself,
// in breadth-first order.
func (r *Reachability) DescendantsOf(ctx context.Context, rootID string) ([]string, error) {
	nodes, err := r.Subtree(ctx, rootID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(nodes)-1)
	for _, n := range nodes[1:] {
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// Subtree returns rootID followed by all of its descendants, breadth first.
// Every node appears after its parent.
func (r *Reachability) Subtree(ctx context.Context, rootID string) ([]*models.Node, error) {
	root, err := r.repo.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}

	children, err := r.childFunc(ctx)
	if err != nil {
		return nil, err
	}

	out := []*models.Node{root}
	visited := map[string]bool{root.ID: true}
	frontier := []string{root.ID}
	for len(frontier) > 0 {
		level, err := children(ctx, frontier)
		if err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, child := range level {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			out = append(out, child)
			frontier = append(frontier, child.ID)
		}
	}
	return out, nil
}

type childrenFunc func(ctx context.Context, parentIDs []string) ([]*models.Node, error)

// childFunc picks the edge source: the repository's parent index when it
// has one, otherwise an adjacency map built from a single full scan.
func (r *Reachability) childFunc(ctx context.Context) (childrenFunc, error) {
	if lister, ok := r.repo.(database.ChildLister); ok {
		return lister.ListChildren, nil
	}

	all, err := r.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	adjacency := make(map[string][]*models.Node)
	for _, n := range all {
		if n.ParentID != nil {
			adjacency[*n.ParentID] = append(adjacency[*n.ParentID], n)
		}
	}

	return func(_ context.Context, parentIDs []string) ([]*models.Node, error) {
		var out []*models.Node
		for _, id := range parentIDs {
			out = append(out, adjacency[id]...)
		}
		return out, nil
	}, nil
}
