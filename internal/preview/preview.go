// Package preview derives deterministic thumbnail files for model
// paths and composites viewport grabs onto square letterboxed canvases.
package preview

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/meshdeck/internal/catalog"
	"github.com/Faultbox/meshdeck/internal/logger"
	"github.com/Faultbox/meshdeck/internal/texindex"
)

// KindThumbnail is the preview kind recorded in the catalog.
const KindThumbnail = "thumbnail"

// Letterbox background, a dark neutral that matches the viewport.
var backgroundRGB = [3]float64{0.09, 0.09, 0.11}

// Cache owns the preview directory and its catalog linkage.
type Cache struct {
	dir   string
	store *catalog.Store
	log   *zap.Logger
}

// NewCache creates the preview directory under cacheRoot. store may be
// nil for headless use without catalog linkage.
func NewCache(cacheRoot string, store *catalog.Store) (*Cache, error) {
	dir := filepath.Join(cacheRoot, "previews")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create preview dir")
	}
	return &Cache{dir: dir, store: store, log: logger.Named("preview")}, nil
}

// Dir returns the preview directory.
func (c *Cache) Dir() string { return c.dir }

// FileName derives the deterministic preview filename for a model path
// at a target size. The hash covers the normalized path, the file's
// mtime in nanoseconds, and the size, so edits invalidate previews.
func (c *Cache) FileName(modelPath string, size int) (string, error) {
	info, err := os.Stat(modelPath)
	if err != nil {
		return "", errors.Wrap(err, "stat model")
	}
	key := fmt.Sprintf("%s|%d|%d", texindex.NormPath(modelPath), info.ModTime().UnixNano(), size)
	sum := sha1.Sum([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".png"), nil
}

// Exists reports whether the deterministic preview file is present.
func (c *Cache) Exists(modelPath string, size int) bool {
	path, err := c.FileName(modelPath, size)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Remove deletes the preview file for a model path if present.
func (c *Cache) Remove(modelPath string, size int) {
	path, err := c.FileName(modelPath, size)
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		c.log.Warn("preview delete failed", zap.String("path", path), zap.Error(err))
	}
}

// SaveViewportPreview composites img onto a size×size canvas with the
// fixed dark background, centered and aspect-preserving, writes the
// PNG, and links it to the asset. Write failures are returned but must
// not end the model session.
func (c *Cache) SaveViewportPreview(modelPath string, img image.Image, size int) (string, error) {
	outPath, err := c.FileName(modelPath, size)
	if err != nil {
		return "", err
	}

	dc := gg.NewContext(size, size)
	dc.SetRGB(backgroundRGB[0], backgroundRGB[1], backgroundRGB[2])
	dc.Clear()

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > 0 && h > 0 {
		scale := float64(size) / float64(w)
		if s := float64(size) / float64(h); s < scale {
			scale = s
		}
		dc.Push()
		dc.Translate(float64(size)/2, float64(size)/2)
		dc.Scale(scale, scale)
		dc.DrawImageAnchored(img, 0, 0, 0.5, 0.5)
		dc.Pop()
	}

	if err := dc.SavePNG(outPath); err != nil {
		return "", errors.Wrap(err, "write preview")
	}

	if c.store != nil {
		if err := c.store.SetAssetPreview(modelPath, outPath, size, size, KindThumbnail); err != nil {
			c.log.Warn("preview link failed", zap.String("model", modelPath), zap.Error(err))
		}
	}

	c.log.Debug("preview saved",
		zap.String("model", modelPath),
		zap.String("file", outPath),
		zap.Int("size", size))
	return outPath, nil
}
