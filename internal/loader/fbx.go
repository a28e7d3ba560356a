package loader

import (
	"fmt"
	"sync"

	"github.com/Faultbox/meshdeck/internal/texindex"
)

// FBX needs a vendor SDK binding that cannot be assumed present, so the
// reader is a registered capability. Without one, .fbx files fail with
// KindSDKMissing and the rest of the app keeps working.

// FBXMaterial carries a material name and the texture file paths its
// surface properties reference.
type FBXMaterial struct {
	Name     string
	Textures map[texindex.Channel]string
}

// FBXMesh is the raw geometry an FBX reader hands back: indexed control
// points plus per-corner attributes, before triangulation.
type FBXMesh struct {
	Name          string
	ControlPoints [][3]float32
	// PolygonVertexIndex follows the FBX convention: a negative value
	// -(i+1) marks the last corner of a polygon.
	PolygonVertexIndex []int32
	// Normals and UVs are per polygon corner, aligned with
	// PolygonVertexIndex. Either may be empty.
	Normals [][3]float32
	UVs     [][2]float32
	// MaterialIndices maps each polygon to an entry in Materials. Empty
	// means all polygons use Materials[0] (or no material at all).
	MaterialIndices []int32
	Materials       []FBXMaterial
}

// FBXReader is the SDK capability hook.
type FBXReader interface {
	ReadFBX(path string) ([]FBXMesh, error)
}

var (
	fbxMu     sync.RWMutex
	fbxReader FBXReader
)

// RegisterFBXReader installs the process-wide FBX reader. Passing nil
// uninstalls it.
func RegisterFBXReader(r FBXReader) {
	fbxMu.Lock()
	fbxReader = r
	fbxMu.Unlock()
}

func registeredFBXReader() FBXReader {
	fbxMu.RLock()
	defer fbxMu.RUnlock()
	return fbxReader
}

func parseFBX(path string) ([]parsedMesh, error) {
	reader := registeredFBXReader()
	if reader == nil {
		return nil, newLoadError(KindSDKMissing, path, nil)
	}
	raw, err := reader.ReadFBX(path)
	if err != nil {
		return nil, err
	}

	var meshes []parsedMesh
	for i := range raw {
		converted, err := convertFBXMesh(&raw[i])
		if err != nil {
			return nil, fmt.Errorf("fbx mesh %q: %w", raw[i].Name, err)
		}
		meshes = append(meshes, converted...)
	}
	return meshes, nil
}

// convertFBXMesh splits an FBX mesh by material, duplicating control
// points per corner so per-corner normals and UVs survive, and
// fan-triangulating each polygon.
func convertFBXMesh(src *FBXMesh) ([]parsedMesh, error) {
	polys, err := fbxPolygons(src.PolygonVertexIndex)
	if err != nil {
		return nil, err
	}

	hasNormals := len(src.Normals) == len(src.PolygonVertexIndex) && len(src.Normals) > 0
	hasUVs := len(src.UVs) == len(src.PolygonVertexIndex) && len(src.UVs) > 0

	materialFor := func(poly int) int {
		if len(src.MaterialIndices) == 0 {
			return 0
		}
		if poly < len(src.MaterialIndices) {
			return int(src.MaterialIndices[poly])
		}
		return 0
	}

	// One parsedMesh per referenced material slot, in slot order.
	byMaterial := make(map[int]*parsedMesh)
	var order []int
	meshFor := func(slot int) *parsedMesh {
		if m, ok := byMaterial[slot]; ok {
			return m
		}
		m := &parsedMesh{Object: src.Name}
		if slot >= 0 && slot < len(src.Materials) {
			m.Material = src.Materials[slot].Name
			m.MaterialTextures = src.Materials[slot].Textures
		}
		byMaterial[slot] = m
		order = append(order, slot)
		return m
	}

	emit := func(m *parsedMesh, corner int) error {
		cp := src.PolygonVertexIndex[corner]
		if cp < 0 {
			cp = -cp - 1
		}
		if int(cp) >= len(src.ControlPoints) {
			return fmt.Errorf("control point %d out of range", cp)
		}
		m.Indices = append(m.Indices, uint32(len(m.Positions)))
		m.Positions = append(m.Positions, src.ControlPoints[cp])
		if hasNormals {
			m.Normals = append(m.Normals, src.Normals[corner])
		}
		if hasUVs {
			m.UVs = append(m.UVs, src.UVs[corner])
		}
		return nil
	}

	for pi, poly := range polys {
		if len(poly) < 3 {
			continue
		}
		m := meshFor(materialFor(pi))
		for k := 1; k+1 < len(poly); k++ {
			for _, corner := range []int{poly[0], poly[k], poly[k+1]} {
				if err := emit(m, corner); err != nil {
					return nil, err
				}
			}
		}
	}

	out := make([]parsedMesh, 0, len(order))
	for _, slot := range order {
		out = append(out, *byMaterial[slot])
	}
	return out, nil
}

// fbxPolygons splits the polygon vertex index stream into per-polygon
// corner position lists.
func fbxPolygons(pvi []int32) ([][]int, error) {
	var polys [][]int
	var current []int
	for i, v := range pvi {
		current = append(current, i)
		if v < 0 {
			polys = append(polys, current)
			current = nil
		}
	}
	if len(current) != 0 {
		return nil, fmt.Errorf("unterminated polygon (%d trailing corners)", len(current))
	}
	return polys, nil
}
