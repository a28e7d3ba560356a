package loader

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// parseOFF reads an ASCII OFF file: header, counts, vertex lines, then
// polygon lines triangulated as fans.
func parseOFF(path string) ([]parsedMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	next := func() ([]string, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			return strings.Fields(line), nil
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected end of file")
	}

	header, err := next()
	if err != nil {
		return nil, err
	}

	// The counts may share the OFF keyword's line.
	var counts []string
	if header[0] == "OFF" || header[0] == "COFF" || header[0] == "NOFF" {
		if len(header) > 1 {
			counts = header[1:]
		} else {
			counts, err = next()
			if err != nil {
				return nil, err
			}
		}
	} else {
		counts = header
	}
	if len(counts) < 2 {
		return nil, fmt.Errorf("bad OFF counts line")
	}
	nVerts, err1 := strconv.Atoi(counts[0])
	nFaces, err2 := strconv.Atoi(counts[1])
	if err1 != nil || err2 != nil || nVerts < 0 || nFaces < 0 {
		return nil, fmt.Errorf("bad OFF counts")
	}

	mesh := parsedMesh{Object: "off"}
	mesh.Positions = make([][3]float32, 0, nVerts)

	for i := 0; i < nVerts; i++ {
		fields, err := next()
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		p, err := parseFloats3(fields)
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
		mesh.Positions = append(mesh.Positions, p)
	}

	for i := 0; i < nFaces; i++ {
		fields, err := next()
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		size, err := strconv.Atoi(fields[0])
		if err != nil || size < 3 || len(fields) < 1+size {
			return nil, fmt.Errorf("face %d: bad polygon", i)
		}
		corners := make([]uint32, size)
		for j := 0; j < size; j++ {
			v, err := strconv.Atoi(fields[1+j])
			if err != nil || v < 0 || v >= nVerts {
				return nil, fmt.Errorf("face %d: bad index", i)
			}
			corners[j] = uint32(v)
		}
		for k := 1; k+1 < size; k++ {
			mesh.Indices = append(mesh.Indices, corners[0], corners[k], corners[k+1])
		}
	}

	return []parsedMesh{mesh}, nil
}
