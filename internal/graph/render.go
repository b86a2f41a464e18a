package graph

import (
	"fmt"
	"strings"

	"github.com/eluent/eluent/internal/types"
)

// TreeNode is one row of a rendered dependency tree.
type TreeNode struct {
	ID       string
	ParentID string
	Title    string
	Status   types.Status
	Priority int
	Depth    int
}

// RenderTree walks the parent/child tree rooted at rootID (via the
// indexer's ChildrenOf, not bonds) and returns a flat, depth-annotated
// node list suitable for box-drawing or Mermaid rendering.
func (g *Graph) RenderTree(rootID string, maxDepth int) []*TreeNode {
	root, ok := g.src.FindByID(rootID)
	if !ok {
		return nil
	}
	var out []*TreeNode
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		a, ok := g.src.FindByID(id)
		if !ok {
			return
		}
		parentID := ""
		if depth > 0 {
			parentID = a.ParentID
		}
		out = append(out, &TreeNode{
			ID: a.ID, ParentID: parentID, Title: a.Title,
			Status: a.Status, Priority: a.Priority, Depth: depth,
		})
		if maxDepth > 0 && depth >= maxDepth {
			return
		}
		for _, childID := range g.src.ChildrenOf(id) {
			walk(childID, depth+1)
		}
	}
	_ = root
	walk(rootID, 0)
	return out
}

// statusEmoji renders a presentation glyph per status, matching the
// symbol set a terminal tree view uses.
func statusEmoji(status types.Status) string {
	switch status {
	case types.StatusOpen:
		return "☐"
	case types.StatusInProgress:
		return "◧"
	case types.StatusBlocked:
		return "⚠"
	case types.StatusDeferred:
		return "❄"
	case types.StatusClosed:
		return "☑"
	case types.StatusDiscard:
		return "✖"
	default:
		return "?"
	}
}

// RenderMermaid renders tree as a Mermaid.js flowchart definition.
func RenderMermaid(tree []*TreeNode) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	if len(tree) == 0 {
		b.WriteString("  empty[\"No dependencies\"]\n")
		return b.String()
	}

	seen := make(map[string]bool)
	for _, node := range tree {
		if seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		label := fmt.Sprintf("%s %s: %s", statusEmoji(node.Status), node.ID, node.Title)
		label = strings.ReplaceAll(label, "\\", "\\\\")
		label = strings.ReplaceAll(label, "\"", "\\\"")
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", sanitizeNodeID(node.ID), label)
	}
	b.WriteString("\n")
	for _, node := range tree {
		if node.ParentID != "" && node.ParentID != node.ID {
			fmt.Fprintf(&b, "  %s --> %s\n", sanitizeNodeID(node.ParentID), sanitizeNodeID(node.ID))
		}
	}
	return b.String()
}

// sanitizeNodeID replaces characters Mermaid treats specially in a bare
// node ID (atom IDs contain dots for child/grandchild segments).
func sanitizeNodeID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(id)
}

// RenderText renders tree as an indented, box-drawn listing.
func RenderText(tree []*TreeNode) string {
	var b strings.Builder
	active := make([]bool, 0)
	childCounts := make(map[string]int)
	childIndex := make(map[string]int)
	for _, n := range tree {
		childCounts[n.ParentID]++
	}
	for _, n := range tree {
		for len(active) <= n.Depth {
			active = append(active, false)
		}
		if n.Depth > 0 {
			for i := 0; i < n.Depth-1; i++ {
				if active[i] {
					b.WriteString("│   ")
				} else {
					b.WriteString("    ")
				}
			}
			idx := childIndex[n.ParentID]
			childIndex[n.ParentID]++
			isLast := idx == childCounts[n.ParentID]-1
			active[n.Depth-1] = !isLast
			if isLast {
				b.WriteString("└── ")
			} else {
				b.WriteString("├── ")
			}
		}
		fmt.Fprintf(&b, "%s %s: %s [P%d] (%s)\n", statusEmoji(n.Status), n.ID, n.Title, n.Priority, n.Status)
	}
	return b.String()
}
