package services

import "github.com/staple-duck/snh/models"

// BuildForest nests a flat node list into trees. A node whose parent is nil
// or absent from nodes becomes a root. Roots and every children slice keep
// the input order. Children is never nil, so it encodes as [].
func BuildForest(nodes []*models.Node) []*models.TreeNode {
	views := make(map[string]*models.TreeNode, len(nodes))
	ordered := make([]*models.TreeNode, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := views[n.ID]; dup {
			continue
		}
		view := &models.TreeNode{
			ID:       n.ID,
			Label:    n.Label,
			ParentID: n.ParentID,
			Children: []*models.TreeNode{},
		}
		views[n.ID] = view
		ordered = append(ordered, view)
	}

	roots := []*models.TreeNode{}
	for _, view := range ordered {
		if view.ParentID != nil {
			if parent, ok := views[*view.ParentID]; ok && parent != view {
				parent.Children = append(parent.Children, view)
				continue
			}
		}
		roots = append(roots, view)
	}
	return roots
}

// CountNodes returns the number of nodes in a forest
func CountNodes(forest []*models.TreeNode) int {
	count := 0
	stack := append([]*models.TreeNode(nil), forest...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, n.Children...)
	}
	return count
}
