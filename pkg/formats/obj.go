package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/midgard-rig/pkg/encoding"
)

// OBJ format errors.
var (
	ErrEmptyOBJ         = errors.New("OBJ has no vertices")
	ErrInvalidOBJVertex = errors.New("invalid OBJ vertex")
)

// OBJObject is a named group of vertices. Vertices before the first "o"
// statement land in an object with an empty name.
type OBJObject struct {
	Name  string
	First int // index of the first vertex in OBJ.Vertices
	Count int
}

// OBJ holds the vertex positions of a Wavefront OBJ file. Faces, normals and
// texture coordinates are skipped.
type OBJ struct {
	Vertices [][3]float64
	Objects  []OBJObject
}

// Object returns the vertices of the named object, or nil.
func (o *OBJ) Object(name string) [][3]float64 {
	for _, obj := range o.Objects {
		if obj.Name == name {
			return o.Vertices[obj.First : obj.First+obj.Count]
		}
	}
	return nil
}

// ParseOBJ parses vertex positions from OBJ text.
func ParseOBJ(data []byte) (*OBJ, error) {
	obj := &OBJ{}
	current := -1
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "o":
			obj.Objects = append(obj.Objects, OBJObject{
				Name:  encoding.DecodeName([]byte(strings.Join(fields[1:], " "))),
				First: len(obj.Vertices),
			})
			current = len(obj.Objects) - 1
		case "v":
			// "v x y z [w]" or "v x y z r g b"
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: need 3 coordinates, got %d", ErrInvalidOBJVertex, line, len(fields)-1)
			}
			var p [3]float64
			for i := range p {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJVertex, line, err)
				}
				p[i] = f
			}
			if current < 0 {
				obj.Objects = append(obj.Objects, OBJObject{})
				current = 0
			}
			obj.Vertices = append(obj.Vertices, p)
			obj.Objects[current].Count++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}
	if len(obj.Vertices) == 0 {
		return nil, ErrEmptyOBJ
	}
	return obj, nil
}

// ParseOBJFile parses an OBJ file from disk.
func ParseOBJFile(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OBJ file: %w", err)
	}
	return ParseOBJ(data)
}
