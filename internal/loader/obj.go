package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Faultbox/meshdeck/internal/texindex"
)

// parseOBJ reads a Wavefront OBJ file, splitting draw groups by
// (object, material) and resolving MTL texture references.
func parseOBJ(path string) ([]parsedMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		rawPositions [][3]float32
		rawUVs       [][2]float32
		rawNormals   [][3]float32

		object   string
		material string

		meshes    []*parsedMesh
		meshIndex = map[string]int{}
		dedup     = map[string]map[string]uint32{}

		materials map[string]map[texindex.Channel]string
	)

	currentMesh := func() (*parsedMesh, map[string]uint32) {
		key := object + "\x00" + material
		if i, ok := meshIndex[key]; ok {
			return meshes[i], dedup[key]
		}
		m := &parsedMesh{Object: object, Material: material}
		if materials != nil {
			m.MaterialTextures = materials[material]
		}
		meshIndex[key] = len(meshes)
		meshes = append(meshes, m)
		dedup[key] = make(map[string]uint32)
		return m, dedup[key]
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			p, err := parseFloats3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			rawPositions = append(rawPositions, p)
		case "vt":
			if len(fields) < 3 {
				continue
			}
			u, err1 := strconv.ParseFloat(fields[1], 32)
			v, err2 := strconv.ParseFloat(fields[2], 32)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("line %d: bad texcoord", lineNo)
			}
			rawUVs = append(rawUVs, [2]float32{float32(u), float32(v)})
		case "vn":
			n, err := parseFloats3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			rawNormals = append(rawNormals, n)
		case "o", "g":
			if len(fields) > 1 {
				object = fields[1]
			}
		case "usemtl":
			if len(fields) > 1 {
				material = fields[1]
			}
		case "mtllib":
			if len(fields) > 1 {
				mtl, err := parseMTL(filepath.Join(filepath.Dir(path), fields[1]))
				if err == nil {
					materials = mtl
				}
			}
		case "f":
			if len(fields) < 4 {
				continue
			}
			mesh, seen := currentMesh()
			corners := fields[1:]

			resolve := func(spec string) (uint32, error) {
				if idx, ok := seen[spec]; ok {
					return idx, nil
				}
				vi, ti, ni, err := parseFaceCorner(spec, len(rawPositions), len(rawUVs), len(rawNormals))
				if err != nil {
					return 0, fmt.Errorf("line %d: %w", lineNo, err)
				}
				idx := uint32(len(mesh.Positions))
				mesh.Positions = append(mesh.Positions, rawPositions[vi])
				if ti >= 0 {
					mesh.UVs = append(mesh.UVs, rawUVs[ti])
				} else if len(mesh.UVs) > 0 || len(rawUVs) > 0 {
					mesh.UVs = append(mesh.UVs, [2]float32{})
					mesh.MissingUVs++
				}
				if ni >= 0 {
					mesh.Normals = append(mesh.Normals, rawNormals[ni])
				}
				seen[spec] = idx
				return idx, nil
			}

			// Triangle fan over the polygon.
			first, err := resolve(corners[0])
			if err != nil {
				return nil, err
			}
			prev, err := resolve(corners[1])
			if err != nil {
				return nil, err
			}
			for k := 2; k < len(corners); k++ {
				cur, err := resolve(corners[k])
				if err != nil {
					return nil, err
				}
				mesh.Indices = append(mesh.Indices, first, prev, cur)
				prev = cur
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out := make([]parsedMesh, 0, len(meshes))
	for _, m := range meshes {
		// A mesh where some corners lacked normals cannot claim a
		// per-vertex normal set.
		if len(m.Normals) != len(m.Positions) {
			m.Normals = nil
		}
		out = append(out, *m)
	}
	return out, nil
}

func parseFloats3(fields []string) ([3]float32, error) {
	var out [3]float32
	if len(fields) < 3 {
		return out, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return out, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parseFaceCorner parses "v", "v/vt", "v//vn" or "v/vt/vn", resolving
// 1-based and negative (relative) indices. Returns -1 for absent parts.
func parseFaceCorner(spec string, nPos, nUV, nNorm int) (vi, ti, ni int, err error) {
	parts := strings.Split(spec, "/")
	ti, ni = -1, -1

	resolveIdx := func(s string, count int) (int, error) {
		raw, err := strconv.Atoi(s)
		if err != nil {
			return -1, err
		}
		if raw < 0 {
			raw = count + raw + 1
		}
		if raw < 1 || raw > count {
			return -1, fmt.Errorf("index %d out of range (1..%d)", raw, count)
		}
		return raw - 1, nil
	}

	vi, err = resolveIdx(parts[0], nPos)
	if err != nil {
		return
	}
	if len(parts) > 1 && parts[1] != "" {
		ti, err = resolveIdx(parts[1], nUV)
		if err != nil {
			return
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		ni, err = resolveIdx(parts[2], nNorm)
		if err != nil {
			return
		}
	}
	return
}

// parseMTL reads a material library, mapping material names to texture
// channels. Unknown map statements are ignored.
func parseMTL(path string) (map[string]map[texindex.Channel]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir := filepath.Dir(path)
	materials := make(map[string]map[texindex.Channel]string)
	var current string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) < 2 {
			continue
		}
		key := strings.ToLower(fields[0])
		val := fields[len(fields)-1]
		switch key {
		case "newmtl":
			current = fields[1]
			materials[current] = make(map[texindex.Channel]string)
		case "map_kd":
			assignMTLMap(materials, current, texindex.ChannelBaseColor, dir, val)
		case "map_bump", "bump", "norm", "map_kn":
			assignMTLMap(materials, current, texindex.ChannelNormal, dir, val)
		case "map_pr":
			assignMTLMap(materials, current, texindex.ChannelRoughness, dir, val)
		case "map_pm":
			assignMTLMap(materials, current, texindex.ChannelMetal, dir, val)
		case "map_d":
			assignMTLMap(materials, current, texindex.ChannelOpacity, dir, val)
		}
	}
	return materials, scanner.Err()
}

func assignMTLMap(materials map[string]map[texindex.Channel]string, current string, ch texindex.Channel, dir, ref string) {
	if current == "" {
		return
	}
	if resolved := resolveTextureRef(dir, ref); resolved != "" {
		materials[current][ch] = resolved
	}
}

// resolveTextureRef resolves a texture reference from a model file against
// the model directory, its Textures/ subdirectory, and the reference's
// absolute and basename variants.
func resolveTextureRef(baseDir, ref string) string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	candidates := []string{
		ref,
		filepath.Join(baseDir, ref),
		filepath.Join(baseDir, filepath.Base(ref)),
		filepath.Join(baseDir, "Textures", filepath.Base(ref)),
		filepath.Join(baseDir, "textures", filepath.Base(ref)),
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c
		}
	}
	return ""
}
