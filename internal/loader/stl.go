package loader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// parseSTL reads binary or ASCII STL. STL topology is pre-split: every
// triangle carries its own three vertices and the facet normal.
func parseSTL(path string) ([]parsedMesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 15 {
		return nil, fmt.Errorf("stl too short (%d bytes)", len(data))
	}

	if isBinarySTL(data) {
		return parseBinarySTL(data)
	}
	return parseASCIISTL(data)
}

// isBinarySTL distinguishes the two encodings. A binary file's declared
// triangle count must match its size; the "solid" prefix alone is not
// trustworthy.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	count := binary.LittleEndian.Uint32(data[80:84])
	return len(data) == 84+int(count)*50
}

func parseBinarySTL(data []byte) ([]parsedMesh, error) {
	count := binary.LittleEndian.Uint32(data[80:84])
	mesh := parsedMesh{Object: "stl"}
	mesh.Positions = make([][3]float32, 0, count*3)
	mesh.Normals = make([][3]float32, 0, count*3)
	mesh.Indices = make([]uint32, 0, count*3)

	off := 84
	for t := uint32(0); t < count; t++ {
		rec := data[off : off+50]
		var normal [3]float32
		for i := 0; i < 3; i++ {
			normal[i] = math.Float32frombits(binary.LittleEndian.Uint32(rec[i*4:]))
		}
		for v := 0; v < 3; v++ {
			var p [3]float32
			base := 12 + v*12
			for i := 0; i < 3; i++ {
				p[i] = math.Float32frombits(binary.LittleEndian.Uint32(rec[base+i*4:]))
			}
			mesh.Indices = append(mesh.Indices, uint32(len(mesh.Positions)))
			mesh.Positions = append(mesh.Positions, p)
			mesh.Normals = append(mesh.Normals, normal)
		}
		off += 50
	}
	return []parsedMesh{mesh}, nil
}

func parseASCIISTL(data []byte) ([]parsedMesh, error) {
	mesh := parsedMesh{Object: "stl"}
	var facetNormal [3]float32

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			if len(fields) >= 5 && fields[1] == "normal" {
				for i := 0; i < 3; i++ {
					v, err := strconv.ParseFloat(fields[2+i], 32)
					if err != nil {
						return nil, fmt.Errorf("bad facet normal: %w", err)
					}
					facetNormal[i] = float32(v)
				}
			}
		case "vertex":
			if len(fields) < 4 {
				return nil, fmt.Errorf("short vertex line")
			}
			var p [3]float32
			for i := 0; i < 3; i++ {
				v, err := strconv.ParseFloat(fields[1+i], 32)
				if err != nil {
					return nil, fmt.Errorf("bad vertex: %w", err)
				}
				p[i] = float32(v)
			}
			mesh.Indices = append(mesh.Indices, uint32(len(mesh.Positions)))
			mesh.Positions = append(mesh.Positions, p)
			mesh.Normals = append(mesh.Normals, facetNormal)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(mesh.Indices)%3 != 0 {
		return nil, fmt.Errorf("vertex count %d not a multiple of 3", len(mesh.Indices))
	}
	return []parsedMesh{mesh}, nil
}
