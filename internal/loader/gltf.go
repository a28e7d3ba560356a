package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/meshdeck/internal/texindex"
	"github.com/Faultbox/meshdeck/pkg/vecmath"
)

// parseGLTF reads .gltf and .glb files, flattening the default scene's
// node hierarchy into per-primitive meshes with accumulated transforms.
func parseGLTF(path string) ([]parsedMesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}

	var meshes []parsedMesh
	dir := filepath.Dir(path)

	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = int(*doc.Scene)
	}
	if sceneIdx >= len(doc.Scenes) {
		return nil, fmt.Errorf("gltf: no scene")
	}

	var walk func(nodeIdx int, parent vecmath.Mat4) error
	walk = func(nodeIdx int, parent vecmath.Mat4) error {
		if nodeIdx >= len(doc.Nodes) {
			return fmt.Errorf("gltf: node %d out of range", nodeIdx)
		}
		node := doc.Nodes[nodeIdx]
		world := parent.Mul(nodeTransform(node))

		if node.Mesh != nil {
			mesh := doc.Meshes[*node.Mesh]
			for pi := range mesh.Primitives {
				pm, err := readPrimitive(doc, mesh, pi, dir)
				if err != nil {
					return err
				}
				if pm == nil {
					continue
				}
				if node.Name != "" {
					pm.Object = node.Name
				}
				t := world
				pm.Transform = &t
				meshes = append(meshes, *pm)
			}
		}

		for _, child := range node.Children {
			if err := walk(int(child), world); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range doc.Scenes[sceneIdx].Nodes {
		if err := walk(int(root), vecmath.Identity()); err != nil {
			return nil, err
		}
	}
	return meshes, nil
}

func readPrimitive(doc *gltf.Document, mesh *gltf.Mesh, pi int, dir string) (*parsedMesh, error) {
	prim := mesh.Primitives[pi]
	if prim.Mode != gltf.PrimitiveTriangles {
		return nil, nil
	}
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil
	}

	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("gltf positions: %w", err)
	}

	pm := &parsedMesh{Object: mesh.Name}
	pm.Positions = make([][3]float32, len(positions))
	copy(pm.Positions, positions)

	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[normIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("gltf normals: %w", err)
		}
		if len(normals) == len(positions) {
			pm.Normals = make([][3]float32, len(normals))
			copy(pm.Normals, normals)
		}
	}

	if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[uvIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("gltf texcoords: %w", err)
		}
		if len(uvs) == len(positions) {
			pm.UVs = make([][2]float32, len(uvs))
			copy(pm.UVs, uvs)
		}
	}

	if prim.Indices != nil {
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("gltf indices: %w", err)
		}
		pm.Indices = indices
	} else {
		pm.Indices = make([]uint32, len(positions))
		for i := range pm.Indices {
			pm.Indices[i] = uint32(i)
		}
	}

	if prim.Material != nil {
		mat := doc.Materials[*prim.Material]
		pm.Material = mat.Name
		pm.TwoSided = mat.DoubleSided
		pm.MaterialTextures = gltfMaterialTextures(doc, mat, dir)
	}
	return pm, nil
}

// gltfMaterialTextures resolves material texture references to file paths.
// Embedded (buffer-view) images have no path and are skipped; the texture
// indexer's name heuristics cover those models instead.
func gltfMaterialTextures(doc *gltf.Document, mat *gltf.Material, dir string) map[texindex.Channel]string {
	out := make(map[texindex.Channel]string)

	resolve := func(texIdx int) string {
		if texIdx < 0 || texIdx >= len(doc.Textures) {
			return ""
		}
		tex := doc.Textures[texIdx]
		if tex.Source == nil || int(*tex.Source) >= len(doc.Images) {
			return ""
		}
		uri := doc.Images[*tex.Source].URI
		if uri == "" || strings.HasPrefix(uri, "data:") {
			return ""
		}
		return resolveTextureRef(dir, uri)
	}

	if pbr := mat.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorTexture != nil {
			if p := resolve(pbr.BaseColorTexture.Index); p != "" {
				out[texindex.ChannelBaseColor] = p
			}
		}
		if pbr.MetallicRoughnessTexture != nil {
			if p := resolve(pbr.MetallicRoughnessTexture.Index); p != "" {
				// One packed map feeds both channels.
				out[texindex.ChannelMetal] = p
				out[texindex.ChannelRoughness] = p
			}
		}
	}
	if mat.NormalTexture != nil && mat.NormalTexture.Index != nil {
		if p := resolve(*mat.NormalTexture.Index); p != "" {
			out[texindex.ChannelNormal] = p
		}
	}
	if mat.OcclusionTexture != nil && mat.OcclusionTexture.Index != nil {
		if p := resolve(*mat.OcclusionTexture.Index); p != "" {
			out[texindex.ChannelAO] = p
		}
	}
	return out
}

// nodeTransform builds a node's local transform from its matrix or TRS.
func nodeTransform(node *gltf.Node) vecmath.Mat4 {
	if node.Matrix != gltf.DefaultMatrix {
		var m vecmath.Mat4
		for i := 0; i < 16; i++ {
			m[i] = float32(node.Matrix[i])
		}
		return m
	}

	t := node.Translation
	r := node.Rotation
	s := node.Scale

	m := vecmath.Translate(float32(t[0]), float32(t[1]), float32(t[2]))
	m = m.Mul(quatToMat4(float32(r[0]), float32(r[1]), float32(r[2]), float32(r[3])))
	return m.Mul(vecmath.Scale(float32(s[0]), float32(s[1]), float32(s[2])))
}

// quatToMat4 converts a unit quaternion (x,y,z,w) to a rotation matrix.
func quatToMat4(x, y, z, w float32) vecmath.Mat4 {
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return vecmath.Mat4{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0,
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0,
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}
