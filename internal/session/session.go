// Package session serializes model loads. One load is observable as
// current at any time; results that arrive for a superseded request id
// are dropped on delivery.
package session

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/meshdeck/internal/geometry"
	"github.com/Faultbox/meshdeck/internal/loader"
	"github.com/Faultbox/meshdeck/internal/logger"
)

// Loaded is delivered on the results channel when a load succeeds.
type Loaded struct {
	RequestID uint64
	Row       int
	Path      string
	Payload   *loader.MeshPayload
}

// Failed is delivered on the results channel when a load fails.
type Failed struct {
	RequestID uint64
	Row       int
	Path      string
	ErrorText string
}

// LoadOptions mirror the viewer settings a worker needs.
type LoadOptions struct {
	FastMode      bool
	NormalsPolicy geometry.NormalsPolicy
	HardAngleDeg  float64
	// HeavyFileSizeMB gates oversized loads behind confirmation;
	// zero disables the gate.
	HeavyFileSizeMB int64
}

// Controller owns the request-id counter and the result channels the
// main loop drains each frame.
type Controller struct {
	current uint64

	loaded chan Loaded
	failed chan Failed

	opts LoadOptions
	log  *zap.Logger
}

// NewController allocates a controller with buffered result channels
// sized so a stale worker can always deliver without blocking.
func NewController(opts LoadOptions) *Controller {
	return &Controller{
		loaded: make(chan Loaded, 4),
		failed: make(chan Failed, 4),
		opts:   opts,
		log:    logger.Named("session"),
	}
}

// Loaded returns the channel carrying successful completions.
func (c *Controller) Loaded() <-chan Loaded { return c.loaded }

// Failed returns the channel carrying failed completions.
func (c *Controller) Failed() <-chan Failed { return c.failed }

// CurrentRequestID returns the id of the most recent StartLoad.
func (c *Controller) CurrentRequestID() uint64 {
	return atomic.LoadUint64(&c.current)
}

// NeedsConfirmation reports whether path exceeds the heavy-file limit
// and therefore needs an explicit confirmed StartLoad.
func (c *Controller) NeedsConfirmation(path string) bool {
	if c.opts.HeavyFileSizeMB <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Size() > c.opts.HeavyFileSizeMB*1024*1024
}

// StartLoad supersedes any in-flight load and spawns a worker for path.
// confirmed must be true for files over the heavy-file limit; otherwise
// the load is refused with ok=false and no request id is consumed.
func (c *Controller) StartLoad(row int, path string, confirmed bool) (requestID uint64, ok bool) {
	if !confirmed && c.NeedsConfirmation(path) {
		c.log.Info("heavy file needs confirmation", zap.String("path", path))
		return c.CurrentRequestID(), false
	}

	id := atomic.AddUint64(&c.current, 1)
	c.log.Debug("load started",
		zap.Uint64("request_id", id),
		zap.Int("row", row),
		zap.String("path", path))

	go c.runLoad(id, row, path)
	return id, true
}

func (c *Controller) runLoad(id uint64, row int, path string) {
	payload, err := loader.LoadModelPayload(path, c.opts.FastMode, c.opts.NormalsPolicy, c.opts.HardAngleDeg)
	if err != nil {
		c.failed <- Failed{RequestID: id, Row: row, Path: path, ErrorText: err.Error()}
		return
	}
	c.loaded <- Loaded{RequestID: id, Row: row, Path: path, Payload: payload}
}

// Accept reports whether a completion with the given request id is
// still current. Stale results must be dropped by the caller.
func (c *Controller) Accept(requestID uint64) bool {
	if requestID == atomic.LoadUint64(&c.current) {
		return true
	}
	c.log.Debug("stale result dropped", zap.Uint64("request_id", requestID))
	return false
}
