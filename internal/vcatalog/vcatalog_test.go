package vcatalog

import (
	"reflect"
	"testing"

	"github.com/Faultbox/meshdeck/internal/catalog"
)

func uintPtr(v uint) *uint { return &v }

func testTree() *Tree {
	cats := []catalog.Category{
		{ID: 1, Name: "Props"},
		{ID: 2, Name: "Crates", ParentID: uintPtr(1)},
		{ID: 3, Name: "Barrels", ParentID: uintPtr(1)},
		{ID: 4, Name: "Weapons"},
		{ID: 5, Name: "Old", ParentID: uintPtr(2)},
	}
	assets := map[string][]uint{
		"/a/crate.obj":  {2},
		"/a/barrel.obj": {3},
		"/a/sword.obj":  {4},
		"/a/old.obj":    {5},
		"/a/loose.obj":  nil,
	}
	return Build(cats, assets)
}

func TestBuildTreeShape(t *testing.T) {
	tree := testTree()
	if len(tree.Roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(tree.Roots))
	}
	// Name-sorted roots.
	if tree.Roots[0].Name != "Props" || tree.Roots[1].Name != "Weapons" {
		t.Fatalf("root order = %s, %s", tree.Roots[0].Name, tree.Roots[1].Name)
	}
	props := tree.Node(1)
	if len(props.Children) != 2 || props.Children[0].Name != "Barrels" {
		t.Fatalf("props children = %+v", props.Children)
	}
}

func TestBuildOrphansBecomeRoots(t *testing.T) {
	tree := Build([]catalog.Category{
		{ID: 7, Name: "Ghost", ParentID: uintPtr(99)},
	}, nil)
	if len(tree.Roots) != 1 || tree.Roots[0].ID != 7 {
		t.Fatalf("roots = %+v", tree.Roots)
	}
}

func TestDescendantsClosure(t *testing.T) {
	tree := testTree()
	got := tree.Descendants(1)
	want := map[uint]struct{}{1: {}, 2: {}, 3: {}, 5: {}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Descendants(1) = %v, want %v", got, want)
	}
	if got := tree.Descendants(4); len(got) != 1 {
		t.Fatalf("leaf closure = %v", got)
	}
	if got := tree.Descendants(42); len(got) != 1 {
		t.Fatalf("unknown id closure = %v", got)
	}
}

func TestApplyFiltersNormalizesSpellings(t *testing.T) {
	tree := testTree()
	// Unclean spellings of the same files; membership keys are clean.
	all := []string{"/a/./crate.obj", "/a/x/../barrel.obj", "/a/loose.obj"}

	got := tree.ApplyFilters(all, Filters{SelectedID: uintPtr(1)})
	want := []string{"/a/./crate.obj", "/a/x/../barrel.obj"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("subtree filter = %v, want %v", got, want)
	}

	got = tree.ApplyFilters(all, Filters{UncategorizedOnly: true})
	if !reflect.DeepEqual(got, []string{"/a/loose.obj"}) {
		t.Fatalf("uncategorized filter = %v", got)
	}

	if ids := tree.AssetCategories("/a/./crate.obj"); !reflect.DeepEqual(ids, []uint{2}) {
		t.Fatalf("AssetCategories = %v, want [2]", ids)
	}
}

func TestApplyFilters(t *testing.T) {
	tree := testTree()
	all := []string{"/a/crate.obj", "/a/barrel.obj", "/a/sword.obj", "/a/old.obj", "/a/loose.obj"}

	// Subtree selection includes transitively nested assets.
	got := tree.ApplyFilters(all, Filters{SelectedID: uintPtr(1)})
	want := []string{"/a/crate.obj", "/a/barrel.obj", "/a/old.obj"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("subtree filter = %v", got)
	}

	got = tree.ApplyFilters(all, Filters{UncategorizedOnly: true})
	if !reflect.DeepEqual(got, []string{"/a/loose.obj"}) {
		t.Fatalf("uncategorized filter = %v", got)
	}

	// Both filters compose to the empty set here.
	got = tree.ApplyFilters(all, Filters{SelectedID: uintPtr(1), UncategorizedOnly: true})
	if len(got) != 0 {
		t.Fatalf("composed filter = %v", got)
	}

	if got := tree.ApplyFilters(all, Filters{}); !reflect.DeepEqual(got, all) {
		t.Fatalf("no-op filter = %v", got)
	}
}
