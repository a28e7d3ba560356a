// Package geometry validates and normalizes raw mesh data into a
// render-ready form: repaired normals, centered and unit-scaled positions.
package geometry

import (
	"math"

	"github.com/pkg/errors"
)

// NormalsPolicy selects how per-vertex normals are produced.
type NormalsPolicy string

const (
	// PolicyImport keeps provided normals when valid, otherwise recomputes.
	PolicyImport NormalsPolicy = "import"
	// PolicyAuto uses imported normals when valid, smooth recompute otherwise.
	PolicyAuto NormalsPolicy = "auto"
	// PolicyRecomputeSmooth sums face normals into incident vertices.
	PolicyRecomputeSmooth NormalsPolicy = "recompute_smooth"
	// PolicyRecomputeHard assigns each vertex its face's normal. Intended
	// for pre-split topology where vertices are not shared across faces.
	PolicyRecomputeHard NormalsPolicy = "recompute_hard"
)

// ErrBadIndices reports an index buffer that cannot address the vertex
// buffer: a length not divisible by 3, or an out-of-range index.
var ErrBadIndices = errors.New("invalid index buffer")

// Meta records which normal source was used during normalization.
type Meta struct {
	NormalsSource string
	NormalsPolicy NormalsPolicy
	HardAngleDeg  float64
}

// Normalize validates the index buffer, resolves per-vertex normals under
// the given policy, then centers the mesh on its centroid and scales it
// into the unit ball.
//
// With fast set, recomputation is replaced by a constant +Y normal on the
// fallback paths.
func Normalize(vertices [][3]float32, indices []uint32, normalsIn [][3]float32,
	policy NormalsPolicy, hardAngleDeg float64, fast bool) ([][3]float32, []uint32, [][3]float32, Meta, error) {

	meta := Meta{NormalsPolicy: policy, HardAngleDeg: hardAngleDeg}

	if len(indices)%3 != 0 {
		return nil, nil, nil, meta, errors.Wrapf(ErrBadIndices, "%d indices not a multiple of 3", len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, nil, nil, meta,
				errors.Wrapf(ErrBadIndices, "index %d out of range (%d vertices)", idx, len(vertices))
		}
	}
	if len(vertices) == 0 || len(indices) == 0 {
		meta.NormalsSource = "empty"
		return [][3]float32{}, []uint32{}, [][3]float32{}, meta, nil
	}

	out := make([][3]float32, len(vertices))
	copy(out, vertices)
	idx := make([]uint32, len(indices))
	copy(idx, indices)

	var normals [][3]float32
	switch policy {
	case PolicyRecomputeSmooth:
		normals = smoothNormals(out, idx)
		meta.NormalsSource = "recompute_smooth"
	case PolicyRecomputeHard:
		normals = hardNormals(out, idx)
		meta.NormalsSource = "recompute_hard"
	case PolicyImport, PolicyAuto, "":
		if validImportedNormals(normalsIn, len(out)) {
			normals = make([][3]float32, len(normalsIn))
			copy(normals, normalsIn)
			meta.NormalsSource = "import"
		} else if fast {
			normals = constantUpNormals(len(out))
			meta.NormalsSource = "fallback_up"
		} else {
			normals = smoothNormals(out, idx)
			meta.NormalsSource = "recompute_smooth"
		}
	default:
		// Unknown policy behaves like auto.
		if validImportedNormals(normalsIn, len(out)) {
			normals = make([][3]float32, len(normalsIn))
			copy(normals, normalsIn)
			meta.NormalsSource = "import"
		} else if fast {
			normals = constantUpNormals(len(out))
			meta.NormalsSource = "fallback_up"
		} else {
			normals = smoothNormals(out, idx)
			meta.NormalsSource = "recompute_smooth"
		}
	}

	renormalize(normals)
	centerAndScale(out)

	return out, idx, normals, meta, nil
}

// validImportedNormals reports whether the provided normals can be used
// as-is: one per vertex, every component finite, and at least one normal
// nonzero. Some exporters write all-zero normal records.
func validImportedNormals(normals [][3]float32, vertexCount int) bool {
	if len(normals) == 0 || len(normals) != vertexCount {
		return false
	}
	anyNonZero := false
	for _, n := range normals {
		for _, c := range n {
			f := float64(c)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
			if f != 0 {
				anyNonZero = true
			}
		}
	}
	return anyNonZero
}

// smoothNormals sums face normals into each incident vertex.
func smoothNormals(vertices [][3]float32, indices []uint32) [][3]float32 {
	normals := make([][3]float32, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if int(a) >= len(vertices) || int(b) >= len(vertices) || int(c) >= len(vertices) {
			continue
		}
		fn := faceNormal(vertices[a], vertices[b], vertices[c])
		for _, vi := range []uint32{a, b, c} {
			normals[vi][0] += fn[0]
			normals[vi][1] += fn[1]
			normals[vi][2] += fn[2]
		}
	}
	return normals
}

// hardNormals assigns each vertex the face normal of its last-visited
// triangle. Correct only for pre-split topology; shared vertices end up
// with whichever face came last.
func hardNormals(vertices [][3]float32, indices []uint32) [][3]float32 {
	normals := make([][3]float32, len(vertices))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if int(a) >= len(vertices) || int(b) >= len(vertices) || int(c) >= len(vertices) {
			continue
		}
		fn := faceNormal(vertices[a], vertices[b], vertices[c])
		normals[a] = fn
		normals[b] = fn
		normals[c] = fn
	}
	return normals
}

func constantUpNormals(count int) [][3]float32 {
	normals := make([][3]float32, count)
	for i := range normals {
		normals[i] = [3]float32{0, 1, 0}
	}
	return normals
}

// faceNormal returns the (unnormalized) cross product of the triangle edges.
func faceNormal(a, b, c [3]float32) [3]float32 {
	e1 := [3]float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	e2 := [3]float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	return [3]float32{
		e1[1]*e2[2] - e1[2]*e2[1],
		e1[2]*e2[0] - e1[0]*e2[2],
		e1[0]*e2[1] - e1[1]*e2[0],
	}
}

// renormalize scales every normal to unit length in place.
// Zero-length normals become +Y.
func renormalize(normals [][3]float32) {
	for i, n := range normals {
		mag := math.Sqrt(float64(n[0]*n[0] + n[1]*n[1] + n[2]*n[2]))
		if mag < 1e-12 {
			normals[i] = [3]float32{0, 1, 0}
			continue
		}
		inv := float32(1 / mag)
		normals[i] = [3]float32{n[0] * inv, n[1] * inv, n[2] * inv}
	}
}

// centerAndScale translates vertices by the centroid and divides by the
// maximum radius so the model fits the unit ball. Scaling is skipped when
// the max radius is zero.
func centerAndScale(vertices [][3]float32) {
	var cx, cy, cz float64
	for _, v := range vertices {
		cx += float64(v[0])
		cy += float64(v[1])
		cz += float64(v[2])
	}
	n := float64(len(vertices))
	centroid := [3]float32{float32(cx / n), float32(cy / n), float32(cz / n)}

	var maxR float64
	for i := range vertices {
		vertices[i][0] -= centroid[0]
		vertices[i][1] -= centroid[1]
		vertices[i][2] -= centroid[2]
		v := vertices[i]
		r := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2]))
		if r > maxR {
			maxR = r
		}
	}

	if maxR == 0 {
		return
	}
	inv := float32(1 / maxR)
	for i := range vertices {
		vertices[i][0] *= inv
		vertices[i][1] *= inv
		vertices[i][2] *= inv
	}
}
