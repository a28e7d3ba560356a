package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

type plyProperty struct {
	name      string
	typ       string
	isList    bool
	countType string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

var plyTypeSizes = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4, "float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

// parsePLY reads ASCII and binary little-endian PLY files.
func parsePLY(path string) ([]parsedMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	magic, err := readPLYLine(r)
	if err != nil || magic != "ply" {
		return nil, fmt.Errorf("not a ply file")
	}

	var (
		format   string
		elements []plyElement
	)
	for {
		line, err := readPLYLine(r)
		if err != nil {
			return nil, fmt.Errorf("unterminated header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment", "obj_info":
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("bad format line")
			}
			format = fields[1]
		case "element":
			if len(fields) < 3 {
				return nil, fmt.Errorf("bad element line")
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("bad element count: %w", err)
			}
			elements = append(elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(elements) == 0 {
				return nil, fmt.Errorf("property before element")
			}
			el := &elements[len(elements)-1]
			if fields[1] == "list" {
				if len(fields) < 5 {
					return nil, fmt.Errorf("bad list property")
				}
				el.props = append(el.props, plyProperty{
					name: fields[4], typ: fields[3], isList: true, countType: fields[2],
				})
			} else {
				if len(fields) < 3 {
					return nil, fmt.Errorf("bad property")
				}
				el.props = append(el.props, plyProperty{name: fields[2], typ: fields[1]})
			}
		case "end_header":
			goto body
		default:
			return nil, fmt.Errorf("unknown header keyword %q", fields[0])
		}
	}

body:
	switch format {
	case "ascii":
		return readPLYBody(path, elements, newASCIIPLYReader(r))
	case "binary_little_endian":
		return readPLYBody(path, elements, newBinaryPLYReader(r))
	default:
		return nil, fmt.Errorf("unsupported ply format %q", format)
	}
}

func readPLYLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// plyValueReader reads one scalar of the given ply type.
type plyValueReader interface {
	read(typ string) (float64, error)
}

type asciiPLYReader struct {
	r      *bufio.Reader
	tokens []string
}

func newASCIIPLYReader(r *bufio.Reader) *asciiPLYReader { return &asciiPLYReader{r: r} }

func (a *asciiPLYReader) read(string) (float64, error) {
	for len(a.tokens) == 0 {
		line, err := readPLYLine(a.r)
		if err != nil {
			return 0, err
		}
		a.tokens = strings.Fields(line)
	}
	tok := a.tokens[0]
	a.tokens = a.tokens[1:]
	return strconv.ParseFloat(tok, 64)
}

type binaryPLYReader struct {
	r *bufio.Reader
}

func newBinaryPLYReader(r *bufio.Reader) *binaryPLYReader { return &binaryPLYReader{r: r} }

func (b *binaryPLYReader) read(typ string) (float64, error) {
	size, ok := plyTypeSizes[typ]
	if !ok {
		return 0, fmt.Errorf("unknown ply type %q", typ)
	}
	buf := make([]byte, size)
	if _, err := readFull(b.r, buf); err != nil {
		return 0, err
	}
	switch typ {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(buf))), nil
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(buf)), nil
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(buf))), nil
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(buf)), nil
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	default: // double, float64
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readPLYBody(path string, elements []plyElement, vr plyValueReader) ([]parsedMesh, error) {
	mesh := parsedMesh{Object: "ply"}
	var haveNormals, haveUVs bool

	for _, el := range elements {
		switch el.name {
		case "vertex":
			for i := 0; i < el.count; i++ {
				var p, n [3]float32
				var uv [2]float32
				for _, prop := range el.props {
					v, err := vr.read(prop.typ)
					if err != nil {
						return nil, fmt.Errorf("vertex %d: %w", i, err)
					}
					switch prop.name {
					case "x":
						p[0] = float32(v)
					case "y":
						p[1] = float32(v)
					case "z":
						p[2] = float32(v)
					case "nx":
						n[0] = float32(v)
						haveNormals = true
					case "ny":
						n[1] = float32(v)
					case "nz":
						n[2] = float32(v)
					case "s", "u":
						uv[0] = float32(v)
						haveUVs = true
					case "t", "v":
						uv[1] = float32(v)
					}
				}
				mesh.Positions = append(mesh.Positions, p)
				mesh.Normals = append(mesh.Normals, n)
				mesh.UVs = append(mesh.UVs, uv)
			}
		case "face":
			for i := 0; i < el.count; i++ {
				for _, prop := range el.props {
					if !prop.isList {
						if _, err := vr.read(prop.typ); err != nil {
							return nil, err
						}
						continue
					}
					cnt, err := vr.read(prop.countType)
					if err != nil {
						return nil, fmt.Errorf("face %d: %w", i, err)
					}
					size := int(cnt)
					if size < 0 {
						return nil, fmt.Errorf("face %d: negative corner count %d", i, size)
					}
					corners := make([]uint32, size)
					for j := 0; j < size; j++ {
						v, err := vr.read(prop.typ)
						if err != nil {
							return nil, fmt.Errorf("face %d corner %d: %w", i, j, err)
						}
						if v < 0 || int(v) >= len(mesh.Positions) {
							return nil, newLoadError(KindBadIndices, path,
								fmt.Errorf("face %d corner %d: vertex index %g out of range", i, j, v))
						}
						corners[j] = uint32(v)
					}
					for k := 1; k+1 < size; k++ {
						mesh.Indices = append(mesh.Indices, corners[0], corners[k], corners[k+1])
					}
				}
			}
		default:
			// Skip unknown elements property-by-property.
			for i := 0; i < el.count; i++ {
				for _, prop := range el.props {
					if prop.isList {
						cnt, err := vr.read(prop.countType)
						if err != nil {
							return nil, err
						}
						for j := 0; j < int(cnt); j++ {
							if _, err := vr.read(prop.typ); err != nil {
								return nil, err
							}
						}
					} else if _, err := vr.read(prop.typ); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if !haveNormals {
		mesh.Normals = nil
	}
	if !haveUVs {
		mesh.UVs = nil
	}
	return []parsedMesh{mesh}, nil
}
