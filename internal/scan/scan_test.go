package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func buildScanTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		"crate.obj",
		"rock.stl",
		"notes.txt",
		"props/barrel.ply",
		"props/Barrel.PNG",
		"props/deep/chair.glb",
	}
	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func waitResult(t *testing.T, c *Controller) Result {
	t.Helper()
	select {
	case res := <-c.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scan result")
	}
	return Result{}
}

func TestScanFindsGeometrySorted(t *testing.T) {
	root := buildScanTree(t)
	c := NewController([]string{".obj", ".stl", ".ply", ".glb"})

	id := c.StartScan(root)
	res := waitResult(t, c)

	if res.RequestID != id || res.ErrorText != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	want := []string{
		filepath.Join(root, "crate.obj"),
		filepath.Join(root, "props", "barrel.ply"),
		filepath.Join(root, "props", "deep", "chair.glb"),
		filepath.Join(root, "rock.stl"),
	}
	if len(res.Paths) != len(want) {
		t.Fatalf("got %d paths, want %d: %v", len(res.Paths), len(want), res.Paths)
	}
	for i, p := range want {
		if res.Paths[i] != p {
			t.Errorf("path %d = %s, want %s", i, res.Paths[i], p)
		}
	}
}

func TestScanStaleRequestRejected(t *testing.T) {
	root := buildScanTree(t)
	c := NewController([]string{".obj"})

	first := c.StartScan(root)
	second := c.StartScan(root)

	if c.Accept(first) {
		t.Error("superseded scan id accepted")
	}
	if !c.Accept(second) {
		t.Error("current scan id rejected")
	}

	for i := 0; i < 2; i++ {
		waitResult(t, c)
	}
}

func TestScanMissingRootReportsError(t *testing.T) {
	c := NewController([]string{".obj"})
	c.StartScan(filepath.Join(t.TempDir(), "gone"))

	res := waitResult(t, c)
	if res.ErrorText == "" {
		t.Error("missing root must surface an error")
	}
	if len(res.Paths) != 0 {
		t.Errorf("failed scan must carry no paths, got %v", res.Paths)
	}
}
