package quarkgl

import "math"

// BoxGeometry returns a box centered at the origin with the given edge lengths.
func BoxGeometry(sx, sy, sz Scalar) *Geometry {
	x, y, z := sx/2, sy/2, sz/2
	pos := []Vec3{
		{-x, -y, -z}, {x, -y, -z}, {x, y, -z}, {-x, y, -z},
		{-x, -y, z}, {x, -y, z}, {x, y, z}, {-x, y, z},
	}
	idx := []uint32{
		0, 2, 1, 0, 3, 2, // -z
		4, 5, 6, 4, 6, 7, // +z
		0, 1, 5, 0, 5, 4, // -y
		3, 7, 6, 3, 6, 2, // +y
		0, 4, 7, 0, 7, 3, // -x
		1, 2, 6, 1, 6, 5, // +x
	}
	return &Geometry{Primitive: PrimitiveTriangles, Positions: pos, Indices: idx}
}

// CylinderGeometry returns a capped cylinder centered at the origin whose axis
// is Z.
func CylinderGeometry(radius, length Scalar, segments int) *Geometry {
	if segments < 3 {
		segments = 3
	}
	h := length / 2
	pos := make([]Vec3, 0, 2*segments+2)
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		cx := radius * Scalar(math.Cos(a))
		cy := radius * Scalar(math.Sin(a))
		pos = append(pos, V3(cx, cy, -h), V3(cx, cy, h))
	}
	bottom := uint32(len(pos))
	pos = append(pos, V3(0, 0, -h), V3(0, 0, h))
	top := bottom + 1

	idx := make([]uint32, 0, segments*12)
	for i := 0; i < segments; i++ {
		j := (i + 1) % segments
		b0, t0 := uint32(2*i), uint32(2*i+1)
		b1, t1 := uint32(2*j), uint32(2*j+1)
		idx = append(idx,
			b0, b1, t1, b0, t1, t0,
			bottom, b1, b0,
			top, t0, t1,
		)
	}
	return &Geometry{Primitive: PrimitiveTriangles, Positions: pos, Indices: idx}
}

// SphereGeometry returns a UV sphere centered at the origin.
func SphereGeometry(radius Scalar, segments, rings int) *Geometry {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}
	pos := make([]Vec3, 0, (rings+1)*segments)
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		for s := 0; s < segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			pos = append(pos, V3(
				radius*Scalar(math.Sin(phi)*math.Cos(theta)),
				radius*Scalar(math.Sin(phi)*math.Sin(theta)),
				radius*Scalar(math.Cos(phi)),
			))
		}
	}
	idx := make([]uint32, 0, rings*segments*6)
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			n := (s + 1) % segments
			a := uint32(r*segments + s)
			b := uint32(r*segments + n)
			c := uint32((r+1)*segments + s)
			d := uint32((r+1)*segments + n)
			idx = append(idx, a, c, b, b, c, d)
		}
	}
	return &Geometry{Primitive: PrimitiveTriangles, Positions: pos, Indices: idx}
}

// GridGeometry returns a square line grid on the XZ plane, size units wide
// with the given number of divisions.
func GridGeometry(size Scalar, divisions int) *Geometry {
	if divisions < 1 {
		divisions = 1
	}
	half := size / 2
	step := size / Scalar(divisions)
	pos := make([]Vec3, 0, 4*(divisions+1))
	idx := make([]uint32, 0, 4*(divisions+1))
	for i := 0; i <= divisions; i++ {
		k := -half + Scalar(i)*step
		n := uint32(len(pos))
		pos = append(pos, V3(-half, 0, k), V3(half, 0, k), V3(k, 0, -half), V3(k, 0, half))
		idx = append(idx, n, n+1, n+2, n+3)
	}
	return &Geometry{Primitive: PrimitiveLines, Positions: pos, Indices: idx}
}

// LineGeometry returns a line list from consecutive point pairs.
func LineGeometry(points []Vec3) *Geometry {
	pos := append([]Vec3(nil), points...)
	idx := make([]uint32, 0, len(pos))
	for i := 0; i+1 < len(pos); i += 2 {
		idx = append(idx, uint32(i), uint32(i+1))
	}
	return &Geometry{Primitive: PrimitiveLines, Positions: pos, Indices: idx}
}

// TriangleGeometry wraps an unindexed triangle soup.
func TriangleGeometry(points []Vec3) *Geometry {
	n := len(points) - len(points)%3
	pos := append([]Vec3(nil), points[:n]...)
	idx := make([]uint32, n)
	for i := range idx {
		idx[i] = uint32(i)
	}
	return &Geometry{Primitive: PrimitiveTriangles, Positions: pos, Indices: idx}
}
