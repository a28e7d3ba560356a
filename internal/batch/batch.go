// Package batch runs the resumable preview-generation job: walk a list
// of model paths, load each one, snapshot the viewport, persist the
// thumbnail, advance. State survives restarts through settings.
package batch

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/meshdeck/internal/config"
	"github.com/Faultbox/meshdeck/internal/logger"
	"github.com/Faultbox/meshdeck/internal/preview"
)

// Mode selects the target list and pre-deletion behavior.
type Mode string

const (
	// ModeMissingAll targets models in the full list without a preview.
	ModeMissingAll Mode = "missing_all"
	// ModeRegenAll targets the full list and deletes existing previews.
	ModeRegenAll Mode = "regen_all"
	// ModeMissingFiltered targets the filtered list and deletes
	// existing previews.
	ModeMissingFiltered Mode = "missing_filtered"
)

// State is the controller's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Controller owns the job list, the cursor, and persistence. The shell
// drives it from the main loop: Start or Resume kicks off the first
// load request, OnItemProcessed advances after each snapshot.
type Controller struct {
	settings     *config.Settings
	settingsPath string
	cache        *preview.Cache

	paths     []string
	index     int
	state     State
	mode      Mode
	root      string
	thumbSize int

	// requestLoad asks the shell to load paths[index]; the shell calls
	// OnItemProcessed once the snapshot is saved or the item failed.
	requestLoad func(index int, path string)

	log *zap.Logger
}

// NewController wires the controller to persisted settings and the
// preview cache.
func NewController(settings *config.Settings, settingsPath string, cache *preview.Cache, requestLoad func(int, string)) *Controller {
	return &Controller{
		settings:     settings,
		settingsPath: settingsPath,
		cache:        cache,
		requestLoad:  requestLoad,
		log:          logger.Named("batch"),
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State { return c.state }

// Progress returns the cursor and the job length.
func (c *Controller) Progress() (index, total int) { return c.index, len(c.paths) }

// Status returns the single-line text for the status bar.
func (c *Controller) Status() string {
	switch c.state {
	case StateRunning:
		return fmt.Sprintf("Batch: %d/%d", c.index, len(c.paths))
	case StatePaused:
		return fmt.Sprintf("Batch paused: %d/%d", c.index, len(c.paths))
	default:
		return ""
	}
}

// Start computes the target list for mode and begins processing.
// allPaths is the full model list, filteredPaths the view's filtered
// list. Starting with no work leaves the controller idle.
func (c *Controller) Start(mode Mode, allPaths, filteredPaths []string, root string, thumbSize int) error {
	if c.state == StateRunning {
		return errors.New("batch already running")
	}

	var targets []string
	switch mode {
	case ModeMissingAll:
		for _, p := range allPaths {
			if !c.cache.Exists(p, thumbSize) {
				targets = append(targets, p)
			}
		}
	case ModeRegenAll:
		for _, p := range allPaths {
			c.cache.Remove(p, thumbSize)
		}
		targets = append(targets, allPaths...)
	case ModeMissingFiltered:
		for _, p := range filteredPaths {
			c.cache.Remove(p, thumbSize)
		}
		targets = append(targets, filteredPaths...)
	default:
		return errors.Errorf("unknown batch mode %q", mode)
	}

	if len(targets) == 0 {
		c.log.Info("batch has no work", zap.String("mode", string(mode)))
		return nil
	}

	c.paths = targets
	c.index = 0
	c.mode = mode
	c.root = root
	c.thumbSize = thumbSize
	c.state = StateRunning
	c.persist()

	c.log.Info("batch started",
		zap.String("mode", string(mode)),
		zap.Int("items", len(targets)),
		zap.String("root", root))
	c.requestCurrent()
	return nil
}

// Stop pauses the job, preserving the list and the cursor.
func (c *Controller) Stop() {
	if c.state != StateRunning {
		return
	}
	c.state = StatePaused
	c.persist()
	c.log.Info("batch paused", zap.Int("index", c.index), zap.Int("total", len(c.paths)))
}

// Resume continues a paused job. The environment must still match the
// persisted job: same root, thumbnail size, and mode. On mismatch the
// state is left untouched and an error describes the refusal.
func (c *Controller) Resume(currentDir string, thumbSize int, mode Mode) error {
	if c.state != StatePaused {
		return errors.New("no paused batch to resume")
	}
	if c.root != currentDir || c.thumbSize != thumbSize || c.mode != mode {
		return errors.Errorf(
			"batch environment changed: job is %s %dpx in %s",
			c.mode, c.thumbSize, c.root)
	}

	c.state = StateRunning
	c.persist()
	c.log.Info("batch resumed", zap.Int("index", c.index), zap.Int("total", len(c.paths)))
	c.requestCurrent()
	return nil
}

// OnItemProcessed advances past the current item and requests the next
// one. Per-item failures advance like successes. The job returns to
// idle when the list is exhausted.
func (c *Controller) OnItemProcessed() {
	if c.state != StateRunning {
		return
	}
	c.index++
	if c.index >= len(c.paths) {
		c.log.Info("batch finished", zap.Int("items", len(c.paths)))
		c.paths = nil
		c.index = 0
		c.state = StateIdle
		c.persist()
		return
	}
	c.persist()
	c.requestCurrent()
}

// CurrentItem returns the path under the cursor; ok is false when the
// job has no remaining work.
func (c *Controller) CurrentItem() (string, bool) {
	if c.index < 0 || c.index >= len(c.paths) {
		return "", false
	}
	return c.paths[c.index], true
}

// ThumbSize returns the job's thumbnail size.
func (c *Controller) ThumbSize() int { return c.thumbSize }

func (c *Controller) requestCurrent() {
	if path, ok := c.CurrentItem(); ok && c.requestLoad != nil {
		c.requestLoad(c.index, path)
	}
}

// persist writes the job state through settings. Failures are logged
// and surfaced in the log file; they do not interrupt the job.
func (c *Controller) persist() {
	pathsJSON := ""
	if len(c.paths) > 0 {
		data, err := json.Marshal(c.paths)
		if err != nil {
			c.log.Error("batch state marshal failed", zap.Error(err))
			return
		}
		pathsJSON = string(data)
	}
	c.settings.Batch = config.BatchSettings{
		PathsJSON: pathsJSON,
		Index:     c.index,
		Paused:    c.state == StatePaused,
		Mode:      string(c.mode),
		Root:      c.root,
		ThumbSize: c.thumbSize,
	}
	if err := c.settings.Save(c.settingsPath); err != nil {
		c.log.Warn("batch state save failed", zap.Error(err))
	}
}

// RestoreState reloads a persisted job after a restart. Paths whose
// files no longer exist are dropped. The job never restores as
// running: paused only when work remains, idle otherwise.
func (c *Controller) RestoreState() {
	b := c.settings.Batch
	if b.PathsJSON == "" {
		return
	}

	var persisted []string
	if err := json.Unmarshal([]byte(b.PathsJSON), &persisted); err != nil {
		c.log.Warn("batch state unreadable, discarding", zap.Error(err))
		c.settings.Batch = config.BatchSettings{}
		return
	}

	var alive []string
	index := b.Index
	for i, p := range persisted {
		if _, err := os.Stat(p); err != nil {
			if i < b.Index && index > 0 {
				index--
			}
			continue
		}
		alive = append(alive, p)
	}
	if index > len(alive) {
		index = len(alive)
	}

	c.paths = alive
	c.index = index
	c.mode = Mode(b.Mode)
	c.root = b.Root
	c.thumbSize = b.ThumbSize
	if index < len(alive) {
		c.state = StatePaused
	} else {
		c.paths = nil
		c.index = 0
		c.state = StateIdle
	}
	c.persist()

	c.log.Info("batch state restored",
		zap.Int("alive", len(alive)),
		zap.Int("dropped", len(persisted)-len(alive)),
		zap.String("state", c.state.String()))
}
