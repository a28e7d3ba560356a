// Package scan walks directories for geometry files in the background.
// Like model loads, scans follow a single-in-flight request-id rule:
// only the newest scan's result is accepted.
package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/meshdeck/internal/logger"
)

// Result is delivered when a directory walk finishes.
type Result struct {
	RequestID uint64
	Root      string
	// Paths is the ordered list of geometry files found.
	Paths []string
	// ErrorText is non-empty when the walk could not start at all;
	// unreadable subdirectories are skipped, not fatal.
	ErrorText string
}

// Controller owns the scan request-id counter and the result channel.
type Controller struct {
	current uint64

	results    chan Result
	extensions map[string]struct{}
	log        *zap.Logger
}

// NewController builds a controller accepting the given geometry file
// extensions (lower-case, dot included).
func NewController(extensions []string) *Controller {
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Controller{
		results:    make(chan Result, 2),
		extensions: exts,
		log:        logger.Named("scan"),
	}
}

// Results returns the channel carrying finished walks.
func (c *Controller) Results() <-chan Result { return c.results }

// CurrentRequestID returns the id of the most recent StartScan.
func (c *Controller) CurrentRequestID() uint64 {
	return atomic.LoadUint64(&c.current)
}

// StartScan supersedes any in-flight walk and spawns a worker for root.
func (c *Controller) StartScan(root string) uint64 {
	id := atomic.AddUint64(&c.current, 1)
	c.log.Debug("scan started", zap.Uint64("request_id", id), zap.String("root", root))
	go c.runScan(id, root)
	return id
}

func (c *Controller) runScan(id uint64, root string) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := c.extensions[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})

	res := Result{RequestID: id, Root: root, Paths: paths}
	if err != nil {
		res.ErrorText = err.Error()
		res.Paths = nil
	} else {
		sort.Strings(res.Paths)
	}
	c.results <- res
}

// Accept reports whether a result with the given request id is current.
func (c *Controller) Accept(requestID uint64) bool {
	if requestID == atomic.LoadUint64(&c.current) {
		return true
	}
	c.log.Debug("stale scan dropped", zap.Uint64("request_id", requestID))
	return false
}
