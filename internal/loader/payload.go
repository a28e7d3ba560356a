// Package loader parses geometry files into GPU-ready mesh payloads.
//
// Dispatch is by file extension. All formats funnel into the same
// MeshPayload shape: unified per-vertex attributes, material submeshes,
// and discovered texture sets.
package loader

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Faultbox/meshdeck/internal/texindex"
)

// Submesh is a contiguous draw group keyed by (object, material).
type Submesh struct {
	Indices      []uint32
	ObjectName   string
	MaterialName string
	// MaterialUID is stable across submeshes sharing the same material.
	MaterialUID  string
	TexturePaths map[texindex.Channel]string
	// TwoSided disables back-face culling for this draw group. Set from
	// formats that carry the flag (glTF doubleSided).
	TwoSided bool
}

// MeshPayload is the immutable handoff from loader to renderer.
type MeshPayload struct {
	Vertices  [][3]float32
	Indices   []uint32
	Normals   [][3]float32
	TexCoords [][2]float32
	Submeshes []Submesh
	// TextureSets maps channel to ranked candidate paths.
	TextureSets map[texindex.Channel][]string
	// TextureCandidates is the full ranked candidate list.
	TextureCandidates []string
	DebugInfo         map[string]interface{}
}

// TriangleCount returns the number of triangles in the payload.
func (p *MeshPayload) TriangleCount() int {
	return len(p.Indices) / 3
}

// Kind identifies a class of load failure.
type Kind string

const (
	KindParseFailed Kind = "parse_failed"
	KindNoGeometry  Kind = "no_geometry"
	KindSDKMissing  Kind = "sdk_missing"
	KindBadIndices  Kind = "bad_indices"
)

// LoadError is the loader's error type. It never crosses module
// boundaries as a panic; the session layer renders it as a status line.
type LoadError struct {
	Kind  Kind
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Path)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// IsKind reports whether err is a LoadError of the given kind.
func IsKind(err error, kind Kind) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Kind == kind
	}
	return false
}

func newLoadError(kind Kind, path string, cause error) *LoadError {
	return &LoadError{Kind: kind, Path: path, Cause: cause}
}

// MaterialUID derives the stable material identifier used for override
// storage. Identical material names map to identical UIDs.
func MaterialUID(name string) string {
	if name == "" {
		name = "default"
	}
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("material:"+name))
	return "mat:" + id.String()[:8]
}
