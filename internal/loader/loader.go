package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/meshdeck/internal/geometry"
	"github.com/Faultbox/meshdeck/internal/logger"
	"github.com/Faultbox/meshdeck/internal/texindex"
	"github.com/Faultbox/meshdeck/pkg/vecmath"
)

// GeometryExtensions lists the file extensions the loader accepts.
var GeometryExtensions = []string{".obj", ".fbx", ".stl", ".ply", ".glb", ".gltf", ".off", ".dae"}

// HasGeometryExt reports whether path has a recognized geometry extension.
func HasGeometryExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range GeometryExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// parsedMesh is the format-independent output of one format parser, one
// entry per (object, material) draw group.
type parsedMesh struct {
	Object   string
	Material string
	// MaterialTextures holds texture paths referenced by the file itself
	// (MTL, glTF images, FBX surface properties), already resolved.
	MaterialTextures map[texindex.Channel]string
	Positions        [][3]float32
	Indices          []uint32
	Normals          [][3]float32
	UVs              [][2]float32
	// Transform is the scene node transform; nil means identity.
	Transform *vecmath.Mat4
	// TwoSided marks materials the format declares as double-sided.
	TwoSided bool
	// MissingUVs counts corners that had no UV data (debug).
	MissingUVs int
}

func (m *parsedMesh) hasValidNormals() bool {
	return len(m.Normals) == len(m.Positions) && len(m.Positions) > 0
}

// LoadModelPayload parses a geometry file into a MeshPayload: unified
// vertex attributes, normalized geometry, material submeshes, and the
// discovered texture sets.
func LoadModelPayload(path string, fastMode bool, normalsPolicy geometry.NormalsPolicy, hardAngleDeg float64) (*MeshPayload, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, newLoadError(KindParseFailed, path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var (
		meshes     []parsedMesh
		loaderName string
		err        error
	)
	switch ext {
	case ".obj":
		loaderName = "obj"
		meshes, err = parseOBJ(path)
	case ".stl":
		loaderName = "stl"
		meshes, err = parseSTL(path)
	case ".ply":
		loaderName = "ply"
		meshes, err = parsePLY(path)
	case ".off":
		loaderName = "off"
		meshes, err = parseOFF(path)
	case ".glb", ".gltf":
		loaderName = "gltf"
		meshes, err = parseGLTF(path)
	case ".dae":
		loaderName = "dae"
		meshes, err = parseDAE(path)
	case ".fbx":
		loaderName = "fbx"
		meshes, err = parseFBX(path)
	default:
		return nil, newLoadError(KindParseFailed, path, errors.Errorf("unsupported extension %q", ext))
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, newLoadError(KindParseFailed, path, err)
	}

	meshes = dropEmptyMeshes(meshes)
	if len(meshes) == 0 {
		return nil, newLoadError(KindNoGeometry, path, nil)
	}

	positions, indices, normals, uvs, ranges, anyUV, missingUVs := mergeMeshes(meshes)
	if len(positions) < 3 || len(indices) == 0 {
		return nil, newLoadError(KindNoGeometry, path, nil)
	}

	vOut, iOut, nOut, meta, err := geometry.Normalize(positions, indices, normals, normalsPolicy, hardAngleDeg, fastMode)
	if err != nil {
		if errors.Is(err, geometry.ErrBadIndices) {
			return nil, newLoadError(KindBadIndices, path, err)
		}
		return nil, newLoadError(KindParseFailed, path, err)
	}

	candidates := texindex.FindCandidates(path)
	sets := texindex.Group(candidates)
	modelStem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	submeshes := make([]Submesh, 0, len(ranges))
	for _, r := range ranges {
		mesh := &meshes[r.mesh]
		sub := Submesh{
			Indices:      iOut[r.start : r.start+r.count],
			ObjectName:   mesh.Object,
			MaterialName: mesh.Material,
			MaterialUID:  MaterialUID(mesh.Material),
			TexturePaths: selectTexturePaths(sets, mesh.Material, mesh.Object, modelStem),
			TwoSided:     mesh.TwoSided,
		}
		// File-referenced textures beat name heuristics.
		for ch, p := range mesh.MaterialTextures {
			if p != "" {
				sub.TexturePaths[ch] = p
			}
		}
		submeshes = append(submeshes, sub)
	}

	if !anyUV {
		uvs = nil
	}

	payload := &MeshPayload{
		Vertices:          vOut,
		Indices:           iOut,
		Normals:           nOut,
		TexCoords:         uvs,
		Submeshes:         submeshes,
		TextureSets:       sets,
		TextureCandidates: candidates,
		DebugInfo: map[string]interface{}{
			"loader":         loaderName,
			"vertex_count":   len(vOut),
			"triangle_count": len(iOut) / 3,
			"submesh_count":  len(submeshes),
			"normals_source": meta.NormalsSource,
			"normals_policy": string(meta.NormalsPolicy),
			"any_uv":         anyUV,
			"missing_uvs":    missingUVs,
		},
	}

	logger.Named("loader").Debug("model loaded",
		zap.String("path", path),
		zap.String("loader", loaderName),
		zap.Int("vertices", len(vOut)),
		zap.Int("triangles", len(iOut)/3),
		zap.Int("submeshes", len(submeshes)))

	return payload, nil
}

func dropEmptyMeshes(meshes []parsedMesh) []parsedMesh {
	out := meshes[:0]
	for _, m := range meshes {
		if len(m.Positions) >= 3 && len(m.Indices) >= 3 {
			out = append(out, m)
		}
	}
	return out
}

type submeshRange struct {
	mesh  int
	start int
	count int
}

// mergeMeshes concatenates scene meshes into single attribute buffers.
// Node transforms apply only when more than one mesh is present; a single
// mesh is adopted directly. Normals survive only if every mesh carries a
// valid per-vertex set; UVs are zero-filled where missing.
func mergeMeshes(meshes []parsedMesh) (positions [][3]float32, indices []uint32,
	normals [][3]float32, uvs [][2]float32, ranges []submeshRange, anyUV bool, missingUVs int) {

	single := len(meshes) == 1

	allNormals := true
	for i := range meshes {
		if !meshes[i].hasValidNormals() {
			allNormals = false
		}
		if len(meshes[i].UVs) == len(meshes[i].Positions) && len(meshes[i].UVs) > 0 {
			anyUV = true
		}
		missingUVs += meshes[i].MissingUVs
	}

	for i := range meshes {
		mesh := &meshes[i]
		offset := uint32(len(positions))
		start := len(indices)

		for vi, p := range mesh.Positions {
			if !single && mesh.Transform != nil {
				p = mesh.Transform.TransformPoint(p)
			}
			positions = append(positions, p)

			if allNormals {
				n := mesh.Normals[vi]
				if !single && mesh.Transform != nil {
					n = mesh.Transform.TransformDirection(n)
				}
				normals = append(normals, n)
			}

			if len(mesh.UVs) == len(mesh.Positions) {
				uvs = append(uvs, mesh.UVs[vi])
			} else {
				uvs = append(uvs, [2]float32{})
			}
		}

		for _, idx := range mesh.Indices {
			indices = append(indices, idx+offset)
		}

		ranges = append(ranges, submeshRange{mesh: i, start: start, count: len(mesh.Indices)})
	}

	if !allNormals {
		normals = nil
	}
	return
}
