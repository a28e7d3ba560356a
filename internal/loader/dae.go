package loader

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/meshdeck/pkg/vecmath"
)

// COLLADA subset: geometry libraries plus the visual scene's
// instance_geometry transforms. Corners are split per polygon-vertex so
// normals and UVs can be per-corner, as the format allows.

type colladaDoc struct {
	Geometries []colladaGeometry `xml:"library_geometries>geometry"`
	SceneNodes []colladaNode     `xml:"library_visual_scenes>visual_scene>node"`
}

type colladaNode struct {
	Matrix    string            `xml:"matrix"`
	Instances []colladaInstance `xml:"instance_geometry"`
	Children  []colladaNode     `xml:"node"`
}

type colladaInstance struct {
	URL string `xml:"url,attr"`
}

type colladaGeometry struct {
	ID   string      `xml:"id,attr"`
	Name string      `xml:"name,attr"`
	Mesh colladaMesh `xml:"mesh"`
}

type colladaMesh struct {
	Sources   []colladaSource     `xml:"source"`
	Vertices  colladaVertices     `xml:"vertices"`
	Triangles []colladaPrimitives `xml:"triangles"`
	Polylists []colladaPrimitives `xml:"polylist"`
}

type colladaSource struct {
	ID         string          `xml:"id,attr"`
	FloatArray string          `xml:"float_array"`
	Accessor   colladaAccessor `xml:"technique_common>accessor"`
}

// colladaAccessor carries only the stride; encoding/xml cannot combine
// an element chain with an attribute in a single tag.
type colladaAccessor struct {
	Stride int `xml:"stride,attr"`
}

type colladaVertices struct {
	ID     string         `xml:"id,attr"`
	Inputs []colladaInput `xml:"input"`
}

type colladaPrimitives struct {
	Count    int            `xml:"count,attr"`
	Material string         `xml:"material,attr"`
	Inputs   []colladaInput `xml:"input"`
	VCount   string         `xml:"vcount"`
	P        string         `xml:"p"`
}

type colladaInput struct {
	Semantic string `xml:"semantic,attr"`
	Source   string `xml:"source,attr"`
	Offset   int    `xml:"offset,attr"`
}

// parseDAE reads a COLLADA document.
func parseDAE(path string) ([]parsedMesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc colladaDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("collada: %w", err)
	}

	transforms := collectDAETransforms(doc.SceneNodes)

	var meshes []parsedMesh
	for gi := range doc.Geometries {
		geo := &doc.Geometries[gi]
		geoMeshes, err := readDAEGeometry(geo)
		if err != nil {
			return nil, err
		}
		if t, ok := transforms[geo.ID]; ok {
			for i := range geoMeshes {
				tm := t
				geoMeshes[i].Transform = &tm
			}
		}
		meshes = append(meshes, geoMeshes...)
	}
	return meshes, nil
}

// collectDAETransforms maps geometry ids to their accumulated scene
// transform. The last instance of a geometry wins.
func collectDAETransforms(nodes []colladaNode) map[string]vecmath.Mat4 {
	out := make(map[string]vecmath.Mat4)
	var walk func(n *colladaNode, parent vecmath.Mat4)
	walk = func(n *colladaNode, parent vecmath.Mat4) {
		local := parent
		if m, ok := parseDAEMatrix(n.Matrix); ok {
			local = parent.Mul(m)
		}
		for _, inst := range n.Instances {
			out[strings.TrimPrefix(inst.URL, "#")] = local
		}
		for i := range n.Children {
			walk(&n.Children[i], local)
		}
	}
	for i := range nodes {
		walk(&nodes[i], vecmath.Identity())
	}
	return out
}

// parseDAEMatrix parses a row-major 16-float COLLADA matrix into the
// column-major form the render math uses.
func parseDAEMatrix(text string) (vecmath.Mat4, bool) {
	fields := strings.Fields(text)
	if len(fields) != 16 {
		return vecmath.Identity(), false
	}
	var rowMajor [16]float32
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return vecmath.Identity(), false
		}
		rowMajor[i] = float32(v)
	}
	var m vecmath.Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m[col*4+row] = rowMajor[row*4+col]
		}
	}
	return m, true
}

func readDAEGeometry(geo *colladaGeometry) ([]parsedMesh, error) {
	sources := make(map[string][]float32)
	strides := make(map[string]int)
	for _, src := range geo.Mesh.Sources {
		vals, err := parseFloatList(src.FloatArray)
		if err != nil {
			return nil, fmt.Errorf("geometry %s source %s: %w", geo.ID, src.ID, err)
		}
		sources["#"+src.ID] = vals
		stride := src.Accessor.Stride
		if stride == 0 {
			stride = 3
		}
		strides["#"+src.ID] = stride
	}

	// The <vertices> element aliases its POSITION input.
	for _, in := range geo.Mesh.Vertices.Inputs {
		if in.Semantic == "POSITION" {
			sources["#"+geo.Mesh.Vertices.ID] = sources[in.Source]
			strides["#"+geo.Mesh.Vertices.ID] = strides[in.Source]
		}
	}

	name := geo.Name
	if name == "" {
		name = geo.ID
	}

	var meshes []parsedMesh
	for _, prim := range geo.Mesh.Triangles {
		m, err := readDAEPrimitives(name, &prim, sources, strides, nil)
		if err != nil {
			return nil, err
		}
		if m != nil {
			meshes = append(meshes, *m)
		}
	}
	for _, prim := range geo.Mesh.Polylists {
		vcounts, err := parseIntList(prim.VCount)
		if err != nil {
			return nil, fmt.Errorf("geometry %s: bad vcount: %w", geo.ID, err)
		}
		m, err := readDAEPrimitives(name, &prim, sources, strides, vcounts)
		if err != nil {
			return nil, err
		}
		if m != nil {
			meshes = append(meshes, *m)
		}
	}
	return meshes, nil
}

func readDAEPrimitives(object string, prim *colladaPrimitives,
	sources map[string][]float32, strides map[string]int, vcounts []int) (*parsedMesh, error) {

	p, err := parseIntList(prim.P)
	if err != nil {
		return nil, fmt.Errorf("bad <p> data: %w", err)
	}
	if len(p) == 0 {
		return nil, nil
	}

	tupleSize := 0
	var posInput, normInput, uvInput *colladaInput
	for i := range prim.Inputs {
		in := &prim.Inputs[i]
		if in.Offset+1 > tupleSize {
			tupleSize = in.Offset + 1
		}
		switch in.Semantic {
		case "VERTEX":
			posInput = in
		case "NORMAL":
			normInput = in
		case "TEXCOORD":
			if uvInput == nil {
				uvInput = in
			}
		}
	}
	if posInput == nil || tupleSize == 0 {
		return nil, fmt.Errorf("primitives without VERTEX input")
	}

	positions := sources[posInput.Source]
	posStride := strides[posInput.Source]
	if len(positions) == 0 || posStride < 3 {
		return nil, fmt.Errorf("missing position source %s", posInput.Source)
	}

	mesh := &parsedMesh{Object: object, Material: prim.Material}
	corners := len(p) / tupleSize

	emit := func(corner int) error {
		base := corner * tupleSize
		if base+tupleSize > len(p) {
			return fmt.Errorf("corner %d past <p> end", corner)
		}

		vi := p[base+posInput.Offset]
		if vi < 0 || (vi+1)*posStride > len(positions) {
			return fmt.Errorf("vertex index %d out of range", vi)
		}
		mesh.Positions = append(mesh.Positions, [3]float32{
			positions[vi*posStride], positions[vi*posStride+1], positions[vi*posStride+2],
		})

		if normInput != nil {
			ns := sources[normInput.Source]
			stride := strides[normInput.Source]
			ni := p[base+normInput.Offset]
			if ni >= 0 && stride >= 3 && (ni+1)*stride <= len(ns) {
				mesh.Normals = append(mesh.Normals, [3]float32{
					ns[ni*stride], ns[ni*stride+1], ns[ni*stride+2],
				})
			}
		}
		if uvInput != nil {
			us := sources[uvInput.Source]
			stride := strides[uvInput.Source]
			ui := p[base+uvInput.Offset]
			if ui >= 0 && stride >= 2 && (ui+1)*stride <= len(us) {
				mesh.UVs = append(mesh.UVs, [2]float32{us[ui*stride], us[ui*stride+1]})
			} else {
				mesh.UVs = append(mesh.UVs, [2]float32{})
				mesh.MissingUVs++
			}
		}
		mesh.Indices = append(mesh.Indices, uint32(len(mesh.Positions)-1))
		return nil
	}

	if vcounts == nil {
		// <triangles>: flat corner stream.
		for c := 0; c < corners; c++ {
			if err := emit(c); err != nil {
				return nil, err
			}
		}
	} else {
		// <polylist>: fan-triangulate each polygon.
		corner := 0
		for _, vc := range vcounts {
			if vc < 3 {
				corner += vc
				continue
			}
			for k := 1; k+1 < vc; k++ {
				for _, c := range []int{corner, corner + k, corner + k + 1} {
					if err := emit(c); err != nil {
						return nil, err
					}
				}
			}
			corner += vc
		}
	}

	if len(mesh.Normals) != len(mesh.Positions) {
		mesh.Normals = nil
	}
	if len(mesh.UVs) != len(mesh.Positions) {
		mesh.UVs = nil
	}
	return mesh, nil
}

func parseFloatList(text string) ([]float32, error) {
	fields := strings.Fields(text)
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

func parseIntList(text string) ([]int, error) {
	fields := strings.Fields(text)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
