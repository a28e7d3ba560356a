package batch

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/meshdeck/internal/config"
	"github.com/Faultbox/meshdeck/internal/preview"
)

type batchEnv struct {
	root     string
	settings *config.Settings
	path     string
	cache    *preview.Cache
	requests []string
}

func newBatchEnv(t *testing.T) *batchEnv {
	t.Helper()
	root := t.TempDir()
	cache, err := preview.NewCache(filepath.Join(root, ".cache"), nil)
	if err != nil {
		t.Fatal(err)
	}
	return &batchEnv{
		root:     root,
		settings: config.DefaultSettings(),
		path:     filepath.Join(root, "settings.yaml"),
		cache:    cache,
	}
}

func (e *batchEnv) controller() *Controller {
	return NewController(e.settings, e.path, e.cache, func(_ int, path string) {
		e.requests = append(e.requests, path)
	})
}

func (e *batchEnv) writeModels(t *testing.T, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(e.root, name)
		if err := os.WriteFile(paths[i], []byte("v 0 0 0\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func (e *batchEnv) savePreview(t *testing.T, modelPath string, size int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	if _, err := e.cache.SaveViewportPreview(modelPath, img, size); err != nil {
		t.Fatal(err)
	}
}

func TestStartMissingAllSkipsExisting(t *testing.T) {
	env := newBatchEnv(t)
	models := env.writeModels(t, "a.obj", "b.obj", "c.obj")
	env.savePreview(t, models[1], 128)

	c := env.controller()
	if err := c.Start(ModeMissingAll, models, nil, env.root, 128); err != nil {
		t.Fatal(err)
	}

	if _, total := c.Progress(); total != 2 {
		t.Errorf("expected 2 targets, got %d", total)
	}
	if len(env.requests) != 1 || env.requests[0] != models[0] {
		t.Errorf("first request = %v, want %s", env.requests, models[0])
	}
}

func TestRegenAllDeletesPreviews(t *testing.T) {
	env := newBatchEnv(t)
	models := env.writeModels(t, "a.obj", "b.obj")
	env.savePreview(t, models[0], 128)

	c := env.controller()
	if err := c.Start(ModeRegenAll, models, nil, env.root, 128); err != nil {
		t.Fatal(err)
	}

	if env.cache.Exists(models[0], 128) {
		t.Error("regen_all must delete the existing preview")
	}
	if _, total := c.Progress(); total != 2 {
		t.Errorf("expected full list, got %d", total)
	}
}

func TestLifecycleRunsToIdle(t *testing.T) {
	env := newBatchEnv(t)
	models := env.writeModels(t, "a.obj", "b.obj")

	c := env.controller()
	if err := c.Start(ModeMissingAll, models, nil, env.root, 128); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateRunning {
		t.Fatalf("state %s, want running", c.State())
	}

	c.OnItemProcessed()
	if idx, _ := c.Progress(); idx != 1 {
		t.Errorf("index %d after first item", idx)
	}
	c.OnItemProcessed()
	if c.State() != StateIdle {
		t.Errorf("state %s after last item, want idle", c.State())
	}
	if len(env.requests) != 2 {
		t.Errorf("expected 2 load requests, got %d", len(env.requests))
	}
}

func TestStopAndResume(t *testing.T) {
	env := newBatchEnv(t)
	models := env.writeModels(t, "a.obj", "b.obj", "c.obj")

	c := env.controller()
	if err := c.Start(ModeMissingAll, models, nil, env.root, 128); err != nil {
		t.Fatal(err)
	}
	c.OnItemProcessed()
	c.Stop()
	if c.State() != StatePaused {
		t.Fatalf("state %s, want paused", c.State())
	}

	// Environment mismatches leave the job untouched.
	if err := c.Resume(env.root, 256, ModeMissingAll); err == nil {
		t.Error("thumb size mismatch must refuse resume")
	}
	if err := c.Resume(filepath.Join(env.root, "elsewhere"), 128, ModeMissingAll); err == nil {
		t.Error("root mismatch must refuse resume")
	}
	if err := c.Resume(env.root, 128, ModeRegenAll); err == nil {
		t.Error("mode mismatch must refuse resume")
	}
	if c.State() != StatePaused {
		t.Error("refused resume must not change state")
	}
	if idx, _ := c.Progress(); idx != 1 {
		t.Errorf("refused resume moved the cursor to %d", idx)
	}

	if err := c.Resume(env.root, 128, ModeMissingAll); err != nil {
		t.Fatalf("matching resume refused: %v", err)
	}
	if c.State() != StateRunning {
		t.Error("resume must return to running")
	}
	if last := env.requests[len(env.requests)-1]; last != models[1] {
		t.Errorf("resume requested %s, want %s", last, models[1])
	}
}

func TestRestoreStateDropsDeadPaths(t *testing.T) {
	env := newBatchEnv(t)
	models := env.writeModels(t, "a.obj", "b.obj", "c.obj")

	c := env.controller()
	if err := c.Start(ModeMissingAll, models, nil, env.root, 128); err != nil {
		t.Fatal(err)
	}
	c.OnItemProcessed()
	c.Stop()

	// Simulate a restart where the first (processed) model vanished.
	if err := os.Remove(models[0]); err != nil {
		t.Fatal(err)
	}
	restored, err := config.LoadSettings(env.path)
	if err != nil {
		t.Fatal(err)
	}
	env.settings = restored
	fresh := env.controller()
	fresh.RestoreState()

	if fresh.State() != StatePaused {
		t.Fatalf("state %s, want paused", fresh.State())
	}
	idx, total := fresh.Progress()
	if total != 2 {
		t.Errorf("expected 2 surviving paths, got %d", total)
	}
	if idx != 0 {
		t.Errorf("index %d, want 0 after dropping the processed path", idx)
	}
	if path, ok := fresh.CurrentItem(); !ok || path != models[1] {
		t.Errorf("current item %q, want %s", path, models[1])
	}
}

func TestRestoreStateFinishedJobGoesIdle(t *testing.T) {
	env := newBatchEnv(t)
	models := env.writeModels(t, "a.obj")

	c := env.controller()
	if err := c.Start(ModeMissingAll, models, nil, env.root, 128); err != nil {
		t.Fatal(err)
	}
	c.Stop()
	if err := os.Remove(models[0]); err != nil {
		t.Fatal(err)
	}

	restored, err := config.LoadSettings(env.path)
	if err != nil {
		t.Fatal(err)
	}
	env.settings = restored
	fresh := env.controller()
	fresh.RestoreState()

	if fresh.State() != StateIdle {
		t.Errorf("state %s, want idle with no surviving work", fresh.State())
	}
}

func TestStartWithNoWorkStaysIdle(t *testing.T) {
	env := newBatchEnv(t)
	models := env.writeModels(t, "a.obj")
	env.savePreview(t, models[0], 128)

	c := env.controller()
	if err := c.Start(ModeMissingAll, models, nil, env.root, 128); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateIdle {
		t.Errorf("state %s, want idle", c.State())
	}
	if len(env.requests) != 0 {
		t.Errorf("no-work start issued %d requests", len(env.requests))
	}
}
