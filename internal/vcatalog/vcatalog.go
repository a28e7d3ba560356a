// Package vcatalog maintains the in-memory category view: the tree
// shape, per-asset category membership, and the filter pipeline the
// browser applies to its model list.
package vcatalog

import (
	"sort"

	"github.com/Faultbox/meshdeck/internal/catalog"
)

// Node is one category with its resolved children, ordered by name.
type Node struct {
	ID       uint
	Name     string
	ParentID *uint
	Children []*Node
}

// Tree is a snapshot of the category structure plus asset membership.
type Tree struct {
	Roots  []*Node
	byID   map[uint]*Node
	assets map[string][]uint
}

// Build constructs a tree from catalog rows and the asset→category map.
// Orphaned nodes (parent deleted concurrently) surface as roots.
func Build(categories []catalog.Category, assetCategories map[string][]uint) *Tree {
	t := &Tree{
		byID:   make(map[uint]*Node, len(categories)),
		assets: assetCategories,
	}
	for _, c := range categories {
		t.byID[c.ID] = &Node{ID: c.ID, Name: c.Name, ParentID: c.ParentID}
	}
	for _, n := range t.byID {
		if n.ParentID != nil {
			if parent, ok := t.byID[*n.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		t.Roots = append(t.Roots, n)
	}
	sortNodes(t.Roots)
	for _, n := range t.byID {
		sortNodes(n.Children)
	}
	return t
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id uint) *Node { return t.byID[id] }

// Descendants returns the reflexive-transitive closure of id's subtree.
// Unknown ids yield just themselves.
func (t *Tree) Descendants(id uint) map[uint]struct{} {
	out := map[uint]struct{}{id: {}}
	queue := []uint{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		node, ok := t.byID[cur]
		if !ok {
			continue
		}
		for _, child := range node.Children {
			if _, seen := out[child.ID]; !seen {
				out[child.ID] = struct{}{}
				queue = append(queue, child.ID)
			}
		}
	}
	return out
}

// AssetCategories returns the category ids assigned to an asset path.
// The path is catalog-normalized before lookup, so relative and absolute
// spellings of the same file agree.
func (t *Tree) AssetCategories(path string) []uint {
	return t.assets[catalog.NormPath(path)]
}

// Filters selects which assets survive ApplyFilters. SelectedID filters
// to a subtree when non-nil; UncategorizedOnly retains only assets with
// no categories at all.
type Filters struct {
	SelectedID        *uint
	UncategorizedOnly bool
}

// ApplyFilters retains the paths that pass the active filters, keeping
// input order. Paths are normalized per membership lookup; the returned
// slice keeps the caller's spelling.
func (t *Tree) ApplyFilters(paths []string, f Filters) []string {
	out := paths
	if f.UncategorizedOnly {
		kept := make([]string, 0, len(out))
		for _, p := range out {
			if len(t.AssetCategories(p)) == 0 {
				kept = append(kept, p)
			}
		}
		out = kept
	}
	if f.SelectedID != nil {
		allowed := t.Descendants(*f.SelectedID)
		kept := make([]string, 0, len(out))
		for _, p := range out {
			for _, id := range t.AssetCategories(p) {
				if _, ok := allowed[id]; ok {
					kept = append(kept, p)
					break
				}
			}
		}
		out = kept
	}
	return out
}
