package render

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/meshdeck/internal/logger"
	"github.com/Faultbox/meshdeck/internal/texindex"
)

// TextureLoadError reports a texture that failed to decode or upload.
// The channel stays empty and the material falls back.
type TextureLoadError struct {
	Path string
	Err  error
}

func (e *TextureLoadError) Error() string {
	return fmt.Sprintf("texture %s: %v", e.Path, e.Err)
}

func (e *TextureLoadError) Unwrap() error { return e.Err }

type texEntry struct {
	id         uint32
	hasAlpha   bool
	generation uint64
}

// TextureCache maps file paths to uploaded GL texture ids, with a
// per-file alpha flag. All methods must run on the GL thread.
type TextureCache struct {
	entries    map[uint64]*texEntry
	pending    []uint32
	generation uint64
	log        *zap.Logger
}

func NewTextureCache() *TextureCache {
	return &TextureCache{
		entries: make(map[uint64]*texEntry),
		log:     logger.Named("texcache"),
	}
}

func cacheKey(path string) uint64 {
	return xxhash.Sum64String(texindex.NormPath(path))
}

// Get returns the GL texture for path, uploading it on first use.
func (c *TextureCache) Get(path string) (uint32, bool, error) {
	key := cacheKey(path)
	if entry, ok := c.entries[key]; ok {
		return entry.id, entry.hasAlpha, nil
	}

	img, err := loadTextureImage(path)
	if err != nil {
		return 0, false, &TextureLoadError{Path: path, Err: err}
	}

	rgba := toRGBA(img)
	id := uploadRGBA(rgba)
	entry := &texEntry{id: id, hasAlpha: hasAlphaPixels(rgba), generation: c.generation}
	c.entries[key] = entry

	c.log.Debug("texture uploaded",
		zap.String("path", path),
		zap.Int("width", rgba.Rect.Dx()),
		zap.Int("height", rgba.Rect.Dy()),
		zap.Bool("alpha", entry.hasAlpha))
	return entry.id, entry.hasAlpha, nil
}

// HasAlpha reports the cached alpha flag; false for unknown paths.
func (c *TextureCache) HasAlpha(path string) bool {
	if entry, ok := c.entries[cacheKey(path)]; ok {
		return entry.hasAlpha
	}
	return false
}

// Len returns the number of cached textures.
func (c *TextureCache) Len() int { return len(c.entries) }

// InvalidateAll queues every entry for deletion on the next GL-context
// activation and bumps the generation.
func (c *TextureCache) InvalidateAll() {
	for key, entry := range c.entries {
		c.pending = append(c.pending, entry.id)
		delete(c.entries, key)
	}
	c.generation++
}

// FlushDeletions deletes queued textures. Call with the context current.
func (c *TextureCache) FlushDeletions() {
	if len(c.pending) == 0 {
		return
	}
	gl.DeleteTextures(int32(len(c.pending)), &c.pending[0])
	c.pending = c.pending[:0]
}

// Destroy invalidates and flushes everything.
func (c *TextureCache) Destroy() {
	c.InvalidateAll()
	c.FlushDeletions()
}

// loadTextureImage decodes a texture file. TGA goes through the local
// decoder; everything else through the registered image formats.
func loadTextureImage(path string) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return decodeTGA(data)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

func hasAlphaPixels(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}

func uploadRGBA(img *image.RGBA) uint32 {
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8,
		int32(img.Rect.Dx()), int32(img.Rect.Dy()),
		0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id
}
