package preview

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeModelFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "crate.obj")
	if err := os.WriteFile(path, []byte("v 0 0 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func solidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestFileNameDeterministic(t *testing.T) {
	dir := t.TempDir()
	model := writeModelFile(t, dir)
	cache, err := NewCache(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	a, err := cache.FileName(model, 128)
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.FileName(model, 128)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("filename not deterministic: %s vs %s", a, b)
	}
	if !strings.HasSuffix(a, ".png") {
		t.Errorf("expected .png suffix: %s", a)
	}

	other, err := cache.FileName(model, 256)
	if err != nil {
		t.Fatal(err)
	}
	if other == a {
		t.Error("different sizes must produce different filenames")
	}
}

func TestFileNameChangesWithMtime(t *testing.T) {
	dir := t.TempDir()
	model := writeModelFile(t, dir)
	cache, err := NewCache(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	before, err := cache.FileName(model, 128)
	if err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(model, future, future); err != nil {
		t.Fatal(err)
	}

	after, err := cache.FileName(model, 128)
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Error("mtime change must invalidate the preview filename")
	}
}

func TestSaveViewportPreviewLetterboxes(t *testing.T) {
	dir := t.TempDir()
	model := writeModelFile(t, dir)
	cache, err := NewCache(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Wide grab: white 80x40 onto a 64x64 canvas leaves dark bands
	// above and below.
	grab := solidImage(80, 40, color.RGBA{255, 255, 255, 255})
	outPath, err := cache.SaveViewportPreview(model, grab, 64)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	out, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}

	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 64 {
		t.Fatalf("canvas %v, want 64x64", out.Bounds())
	}

	center := color.RGBAModel.Convert(out.At(32, 32)).(color.RGBA)
	if center.R < 200 {
		t.Errorf("center should be the scaled image, got %v", center)
	}
	top := color.RGBAModel.Convert(out.At(32, 2)).(color.RGBA)
	if top.R > 80 {
		t.Errorf("top band should stay background, got %v", top)
	}

	if !cache.Exists(model, 64) {
		t.Error("Exists must see the written preview")
	}
	cache.Remove(model, 64)
	if cache.Exists(model, 64) {
		t.Error("Remove must delete the preview")
	}
}
