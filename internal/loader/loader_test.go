package loader

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/meshdeck/internal/geometry"
	"github.com/Faultbox/meshdeck/internal/texindex"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadFixture(t *testing.T, path string) *MeshPayload {
	t.Helper()
	payload, err := LoadModelPayload(path, false, geometry.PolicyAuto, 60)
	if err != nil {
		t.Fatalf("LoadModelPayload(%s): %v", filepath.Base(path), err)
	}
	return payload
}

func maxRadius(vertices [][3]float32) float64 {
	max := 0.0
	for _, v := range vertices {
		r := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2]))
		if r > max {
			max = r
		}
	}
	return max
}

func TestLoadOBJMaterialGroups(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "crate.mtl", `
newmtl wood
map_Kd crate_basecolor.png
newmtl metal
`)
	writeFile(t, dir, "crate_basecolor.png", "png")
	path := writeFile(t, dir, "crate.obj", `
mtllib crate.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
o box
usemtl wood
f 1/1/1 2/2/1 3/3/1
usemtl metal
f -4/-4/-1 -2/-2/-1 -1/-1/-1
`)

	payload := loadFixture(t, path)

	if got := payload.TriangleCount(); got != 2 {
		t.Fatalf("triangles = %d, want 2", got)
	}
	if len(payload.Submeshes) != 2 {
		t.Fatalf("submeshes = %d, want 2", len(payload.Submeshes))
	}
	if payload.Submeshes[0].MaterialName != "wood" || payload.Submeshes[1].MaterialName != "metal" {
		t.Fatalf("material order = %q, %q",
			payload.Submeshes[0].MaterialName, payload.Submeshes[1].MaterialName)
	}
	if payload.Submeshes[0].MaterialUID == payload.Submeshes[1].MaterialUID {
		t.Fatal("distinct materials share a UID")
	}
	if got := payload.Submeshes[0].TexturePaths[texindex.ChannelBaseColor]; filepath.Base(got) != "crate_basecolor.png" {
		t.Fatalf("wood basecolor = %q", got)
	}
	if r := maxRadius(payload.Vertices); r > 1.0001 {
		t.Fatalf("radius after normalization = %f", r)
	}
	if src := payload.DebugInfo["normals_source"]; src != "import" {
		t.Fatalf("normals_source = %v, want import", src)
	}
}

func TestLoadOBJWithoutNormalsRecomputes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "flat.obj", `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`)
	payload := loadFixture(t, path)
	if len(payload.Normals) != len(payload.Vertices) {
		t.Fatalf("normals = %d, vertices = %d", len(payload.Normals), len(payload.Vertices))
	}
	if src := payload.DebugInfo["normals_source"]; src != "recompute_smooth" {
		t.Fatalf("normals_source = %v, want recompute_smooth", src)
	}
}

func binarySTL(tris [][9]float32) []byte {
	buf := make([]byte, 84+50*len(tris))
	binary.LittleEndian.PutUint32(buf[80:], uint32(len(tris)))
	off := 84
	for _, tri := range tris {
		// facet normal left zero
		for i, v := range tri {
			binary.LittleEndian.PutUint32(buf[off+12+i*4:], math.Float32bits(v))
		}
		off += 50
	}
	return buf
}

func TestLoadBinarySTL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.stl")
	data := binarySTL([][9]float32{
		{0, 0, 0, 1, 0, 0, 0, 1, 0},
		{0, 0, 1, 1, 0, 1, 0, 1, 1},
	})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	payload := loadFixture(t, path)
	if got := payload.TriangleCount(); got != 2 {
		t.Fatalf("triangles = %d, want 2", got)
	}
	// Zero facet normals force a recompute.
	if src := payload.DebugInfo["normals_source"]; src != "recompute_smooth" {
		t.Fatalf("normals_source = %v", src)
	}
}

func TestLoadASCIISTL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "part.stl", `solid part
facet normal 0 0 1
 outer loop
  vertex 0 0 0
  vertex 1 0 0
  vertex 0 1 0
 endloop
endfacet
endsolid part
`)
	payload := loadFixture(t, path)
	if got := payload.TriangleCount(); got != 1 {
		t.Fatalf("triangles = %d, want 1", got)
	}
	if src := payload.DebugInfo["normals_source"]; src != "import" {
		t.Fatalf("normals_source = %v, want import", src)
	}
}

func TestLoadASCIIPLY(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.ply", `ply
format ascii 1.0
element vertex 4
property float x
property float y
property float z
property float nx
property float ny
property float nz
element face 1
property list uchar int vertex_indices
end_header
0 0 0 0 0 1
1 0 0 0 0 1
1 1 0 0 0 1
0 1 0 0 0 1
4 0 1 2 3
`)
	payload := loadFixture(t, path)
	if got := payload.TriangleCount(); got != 2 {
		t.Fatalf("quad fan triangles = %d, want 2", got)
	}
	if src := payload.DebugInfo["normals_source"]; src != "import" {
		t.Fatalf("normals_source = %v", src)
	}
}

func TestLoadBinaryPLY(t *testing.T) {
	header := `ply
format binary_little_endian 1.0
element vertex 3
property float x
property float y
property float z
element face 1
property list uchar uint vertex_indices
end_header
`
	var body []byte
	for _, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		body = append(body, b[:]...)
	}
	body = append(body, 3)
	for _, idx := range []uint32{0, 1, 2} {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], idx)
		body = append(body, b[:]...)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "scan.ply")
	if err := os.WriteFile(path, append([]byte(header), body...), 0o644); err != nil {
		t.Fatal(err)
	}

	payload := loadFixture(t, path)
	if got := payload.TriangleCount(); got != 1 {
		t.Fatalf("triangles = %d, want 1", got)
	}
}

func TestLoadOFF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "shape.off", `OFF
4 1 0
0 0 0
1 0 0
1 1 0
0 1 0
4 0 1 2 3
`)
	payload := loadFixture(t, path)
	if got := payload.TriangleCount(); got != 2 {
		t.Fatalf("triangles = %d, want 2", got)
	}
}

func TestLoadDAE(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "prop.dae", `<?xml version="1.0"?>
<COLLADA>
 <library_geometries>
  <geometry id="prop-geo" name="prop">
   <mesh>
    <source id="pos">
     <float_array id="pos-array" count="9">0 0 0 1 0 0 0 1 0</float_array>
     <technique_common><accessor source="#pos-array" count="3" stride="3"/></technique_common>
    </source>
    <vertices id="verts"><input semantic="POSITION" source="#pos"/></vertices>
    <triangles count="1" material="paint">
     <input semantic="VERTEX" source="#verts" offset="0"/>
     <p>0 1 2</p>
    </triangles>
   </mesh>
  </geometry>
 </library_geometries>
 <library_visual_scenes>
  <visual_scene id="scene">
   <node id="n"><instance_geometry url="#prop-geo"/></node>
  </visual_scene>
 </library_visual_scenes>
</COLLADA>
`)
	payload := loadFixture(t, path)
	if got := payload.TriangleCount(); got != 1 {
		t.Fatalf("triangles = %d, want 1", got)
	}
	if payload.Submeshes[0].MaterialName != "paint" {
		t.Fatalf("material = %q", payload.Submeshes[0].MaterialName)
	}
	if payload.Submeshes[0].ObjectName != "prop" {
		t.Fatalf("object = %q", payload.Submeshes[0].ObjectName)
	}
}

func TestLoadDAENegativeIndexFails(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.dae", `<?xml version="1.0"?>
<COLLADA>
 <library_geometries>
  <geometry id="bad-geo" name="bad">
   <mesh>
    <source id="pos">
     <float_array id="pos-array" count="9">0 0 0 1 0 0 0 1 0</float_array>
     <technique_common><accessor source="#pos-array" count="3" stride="3"/></technique_common>
    </source>
    <vertices id="verts"><input semantic="POSITION" source="#pos"/></vertices>
    <triangles count="1">
     <input semantic="VERTEX" source="#verts" offset="0"/>
     <p>-1 0 1</p>
    </triangles>
   </mesh>
  </geometry>
 </library_geometries>
</COLLADA>
`)
	_, err := LoadModelPayload(path, false, geometry.PolicyAuto, 60)
	if !IsKind(err, KindParseFailed) {
		t.Fatalf("err = %v, want parse_failed", err)
	}
}

func TestLoadDAEStrideFromAccessor(t *testing.T) {
	// A 4-float stride must not be misread as the default 3.
	dir := t.TempDir()
	path := writeFile(t, dir, "wide.dae", `<?xml version="1.0"?>
<COLLADA>
 <library_geometries>
  <geometry id="wide-geo" name="wide">
   <mesh>
    <source id="pos">
     <float_array id="pos-array" count="12">0 0 0 9 1 0 0 9 0 1 0 9</float_array>
     <technique_common><accessor source="#pos-array" count="3" stride="4"/></technique_common>
    </source>
    <vertices id="verts"><input semantic="POSITION" source="#pos"/></vertices>
    <triangles count="1">
     <input semantic="VERTEX" source="#verts" offset="0"/>
     <p>0 1 2</p>
    </triangles>
   </mesh>
  </geometry>
 </library_geometries>
</COLLADA>
`)
	payload := loadFixture(t, path)
	if got := payload.TriangleCount(); got != 1 {
		t.Fatalf("triangles = %d, want 1", got)
	}
}

func TestLoadPLYNegativeFaceCount(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.ply", `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
element face 1
property list char int vertex_indices
end_header
0 0 0
1 0 0
0 1 0
-1
`)
	_, err := LoadModelPayload(path, false, geometry.PolicyAuto, 60)
	if !IsKind(err, KindParseFailed) {
		t.Fatalf("err = %v, want parse_failed", err)
	}
}

func TestLoadPLYFaceIndexOutOfRange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.ply", `ply
format ascii 1.0
element vertex 3
property float x
property float y
property float z
element face 1
property list uchar int vertex_indices
end_header
0 0 0
1 0 0
0 1 0
3 0 1 99
`)
	_, err := LoadModelPayload(path, false, geometry.PolicyAuto, 60)
	if !IsKind(err, KindBadIndices) {
		t.Fatalf("err = %v, want bad_indices", err)
	}
}

const doubleSidedGLTF = `{
 "asset": {"version": "2.0"},
 "scene": 0,
 "scenes": [{"nodes": [0]}],
 "nodes": [{"mesh": 0, "name": "shell"}],
 "meshes": [{"primitives": [{"attributes": {"POSITION": 0}, "material": 0}]}],
 "materials": [{"name": "shell_mat", "doubleSided": true,
   "pbrMetallicRoughness": {"baseColorTexture": {"index": 0}}}],
 "textures": [{"source": 0}],
 "images": [{"uri": "shell_basecolor.png"}],
 "accessors": [{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3",
   "min": [0, 0, 0], "max": [1, 1, 0]}],
 "bufferViews": [{"buffer": 0, "byteOffset": 0, "byteLength": 36}],
 "buffers": [{"byteLength": 36, "uri": "data:application/octet-stream;base64,AAAAAAAAAAAAAAAAAACAPwAAAAAAAAAAAAAAAAAAgD8AAAAA"}]
}`

func TestLoadGLTFDoubleSidedMaterial(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shell_basecolor.png", "png")
	path := writeFile(t, dir, "shell.gltf", doubleSidedGLTF)

	payload := loadFixture(t, path)
	if got := payload.TriangleCount(); got != 1 {
		t.Fatalf("triangles = %d, want 1", got)
	}
	sub := payload.Submeshes[0]
	if sub.MaterialName != "shell_mat" {
		t.Fatalf("material = %q", sub.MaterialName)
	}
	if !sub.TwoSided {
		t.Fatal("doubleSided material did not mark the submesh two-sided")
	}
	if got := sub.TexturePaths[texindex.ChannelBaseColor]; filepath.Base(got) != "shell_basecolor.png" {
		t.Fatalf("basecolor = %q", got)
	}
}

type fakeFBXReader struct {
	meshes []FBXMesh
	err    error
}

func (f *fakeFBXReader) ReadFBX(string) ([]FBXMesh, error) { return f.meshes, f.err }

func TestLoadFBXWithoutReader(t *testing.T) {
	RegisterFBXReader(nil)
	dir := t.TempDir()
	path := writeFile(t, dir, "rig.fbx", "binary junk")

	_, err := LoadModelPayload(path, false, geometry.PolicyAuto, 60)
	if !IsKind(err, KindSDKMissing) {
		t.Fatalf("err = %v, want sdk_missing", err)
	}
}

func TestLoadFBXMaterialSplit(t *testing.T) {
	RegisterFBXReader(&fakeFBXReader{meshes: []FBXMesh{{
		Name: "rig",
		ControlPoints: [][3]float32{
			{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
			{0, 0, 1}, {1, 0, 1}, {1, 1, 1},
		},
		// A quad then a triangle, FBX negative-terminated.
		PolygonVertexIndex: []int32{0, 1, 2, -4, 4, 5, -7},
		Normals: [][3]float32{
			{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1},
			{0, 0, -1}, {0, 0, -1}, {0, 0, -1},
		},
		MaterialIndices: []int32{0, 1},
		Materials: []FBXMaterial{
			{Name: "skin"},
			{Name: "cloth"},
		},
	}}})
	defer RegisterFBXReader(nil)

	dir := t.TempDir()
	path := writeFile(t, dir, "rig.fbx", "binary junk")

	payload := loadFixture(t, path)
	if got := payload.TriangleCount(); got != 3 {
		t.Fatalf("triangles = %d, want 3", got)
	}
	if len(payload.Submeshes) != 2 {
		t.Fatalf("submeshes = %d, want 2", len(payload.Submeshes))
	}
	if payload.Submeshes[0].MaterialName != "skin" || payload.Submeshes[1].MaterialName != "cloth" {
		t.Fatalf("materials = %q, %q",
			payload.Submeshes[0].MaterialName, payload.Submeshes[1].MaterialName)
	}
}

func TestFBXPolygonsUnterminated(t *testing.T) {
	if _, err := fbxPolygons([]int32{0, 1, 2}); err == nil {
		t.Fatal("expected error for unterminated polygon stream")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadModelPayload(filepath.Join(dir, "missing.obj"), false, geometry.PolicyAuto, 60)
	if !IsKind(err, KindParseFailed) {
		t.Fatalf("missing file: %v", err)
	}

	empty := writeFile(t, dir, "empty.obj", "# nothing here\n")
	_, err = LoadModelPayload(empty, false, geometry.PolicyAuto, 60)
	if !IsKind(err, KindNoGeometry) {
		t.Fatalf("empty file: %v", err)
	}

	unsupported := writeFile(t, dir, "scene.max", "junk")
	_, err = LoadModelPayload(unsupported, false, geometry.PolicyAuto, 60)
	if !IsKind(err, KindParseFailed) {
		t.Fatalf("unsupported ext: %v", err)
	}
}

func TestMaterialUID(t *testing.T) {
	a := MaterialUID("wood")
	if a != MaterialUID("wood") {
		t.Fatal("UID not stable for the same name")
	}
	if a == MaterialUID("metal") {
		t.Fatal("distinct names collide")
	}
	if MaterialUID("") != MaterialUID("default") {
		t.Fatal("empty name must alias default")
	}
	if len(a) != len("mat:")+8 {
		t.Fatalf("UID shape = %q", a)
	}
}

func TestHintScoreOrdering(t *testing.T) {
	cases := []struct {
		stem, hint string
		want       int
	}{
		{"skin", "skin", 100},
		{"skin_basecolor", "skin", 60},
		{"old_skin_map", "skin", 40},
		{"redskinned", "skin", 20},
		{"metal", "skin", 0},
	}
	for _, tc := range cases {
		if got := hintScore(tc.stem, tc.hint); got != tc.want {
			t.Errorf("hintScore(%q, %q) = %d, want %d", tc.stem, tc.hint, got, tc.want)
		}
	}
}

func TestSelectTexturePathsPrefersMaterialHint(t *testing.T) {
	sets := map[texindex.Channel][]string{
		texindex.ChannelBaseColor: {
			"/tex/body_basecolor.png",
			"/tex/cloth_basecolor.png",
		},
	}
	picked := selectTexturePaths(sets, "cloth_mat", "", "model")
	if got := picked[texindex.ChannelBaseColor]; got != "/tex/cloth_basecolor.png" {
		t.Fatalf("picked %q", got)
	}

	// No hint match falls back to the ranked order.
	picked = selectTexturePaths(sets, "glass", "", "thing")
	if got := picked[texindex.ChannelBaseColor]; got != "/tex/body_basecolor.png" {
		t.Fatalf("fallback picked %q", got)
	}
}
