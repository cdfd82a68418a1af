package urdf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"urdfpanel/panel/quarkgl"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
	// maxSTLTriangles bounds allocations for corrupt headers.
	maxSTLTriangles = 4 << 20
)

// ParseSTL decodes a binary or ASCII STL file into triangle geometry.
func ParseSTL(data []byte) (*quarkgl.Geometry, error) {
	if len(data) >= stlHeaderSize+4 {
		n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
		if n <= maxSTLTriangles && len(data) == stlHeaderSize+4+int(n)*stlTriangleSize {
			return parseBinarySTL(data[stlHeaderSize+4:], int(n)), nil
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return parseASCIISTL(data)
	}
	return nil, fmt.Errorf("%w: not an STL file", ErrInvalidDescription)
}

func parseBinarySTL(body []byte, n int) *quarkgl.Geometry {
	pts := make([]quarkgl.Vec3, 0, n*3)
	for i := 0; i < n; i++ {
		tri := body[i*stlTriangleSize:]
		// Skip the 12-byte facet normal; shading recomputes it.
		for v := 0; v < 3; v++ {
			off := 12 + v*12
			pts = append(pts, quarkgl.V3(
				math.Float32frombits(binary.LittleEndian.Uint32(tri[off:])),
				math.Float32frombits(binary.LittleEndian.Uint32(tri[off+4:])),
				math.Float32frombits(binary.LittleEndian.Uint32(tri[off+8:])),
			))
		}
	}
	return quarkgl.TriangleGeometry(pts)
}

func parseASCIISTL(data []byte) (*quarkgl.Geometry, error) {
	var pts []quarkgl.Vec3
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 || f[0] != "vertex" {
			continue
		}
		if len(f) != 4 {
			return nil, fmt.Errorf("%w: stl line %d: malformed vertex", ErrInvalidDescription, line)
		}
		var v [3]float32
		for i := range v {
			x, err := strconv.ParseFloat(f[i+1], 32)
			if err != nil {
				return nil, fmt.Errorf("%w: stl line %d: %v", ErrInvalidDescription, line, err)
			}
			v[i] = float32(x)
		}
		pts = append(pts, quarkgl.V3(v[0], v[1], v[2]))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(pts) < 3 {
		return nil, fmt.Errorf("%w: stl has no facets", ErrInvalidDescription)
	}
	return quarkgl.TriangleGeometry(pts), nil
}
