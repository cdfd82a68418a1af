package quarkgl

// nearW is the smallest clip-space w a vertex may have before it is treated
// as behind the camera.
const nearW = 1e-4

// Renderer is a fixed-pipeline software renderer.
//
// Create it once and reuse it to avoid allocations.
type Renderer struct {
	Mode  RenderMode
	Depth bool

	depthBuf []float32
	disposed bool
}

// NewRenderer creates a renderer for a given initial target size.
//
// If enableDepth is true, a depth buffer of size w*h is allocated.
func NewRenderer(w, h int, enableDepth bool) *Renderer {
	r := &Renderer{Mode: RenderSolidFlat}
	r.EnableDepth(enableDepth, w, h)
	return r
}

func (r *Renderer) SetRenderMode(m RenderMode) { r.Mode = m }

func (r *Renderer) EnableDepth(on bool, w, h int) {
	r.Depth = on
	if !on || w <= 0 || h <= 0 {
		r.depthBuf = nil
		return
	}
	if cap(r.depthBuf) < w*h {
		r.depthBuf = make([]float32, w*h)
	} else {
		r.depthBuf = r.depthBuf[:w*h]
	}
}

// Dispose releases the depth buffer. Render is a no-op afterwards.
func (r *Renderer) Dispose() {
	if r == nil {
		return
	}
	r.depthBuf = nil
	r.disposed = true
}

func (r *Renderer) Disposed() bool { return r == nil || r.disposed }

func (r *Renderer) clearDepth() {
	for i := range r.depthBuf {
		r.depthBuf[i] = 1e9
	}
}

// Render draws the scene graph into the target as seen from cam.
func (r *Renderer) Render(t Target, s *Scene, cam *Camera) {
	if r.Disposed() || t == nil || s == nil || cam == nil {
		return
	}
	w, h := t.Size()
	if w <= 0 || h <= 0 {
		return
	}
	t.Clear(s.Background)

	if r.Depth {
		if len(r.depthBuf) != w*h {
			r.EnableDepth(true, w, h)
		}
		r.clearDepth()
	}

	viewProj := Mat4Mul(cam.Projection(), cam.View())
	f := frame{t: t, w: w, h: h, viewProj: viewProj, light: s.Light}
	r.walk(&f, s.Root, Mat4Identity())
}

type frame struct {
	t        Target
	w, h     int
	viewProj Mat4
	light    Light
}

func (r *Renderer) walk(f *frame, n *Node, parent Mat4) {
	if n == nil || !n.Visible {
		return
	}
	world := Mat4Mul(parent, n.Transform)
	if n.Geometry != nil && !n.Geometry.Disposed() && !n.Material.Disposed() {
		switch n.Geometry.Primitive {
		case PrimitiveLines:
			r.drawLines(f, world, n.Geometry, n.Material.BaseColor)
		default:
			r.drawTriangles(f, world, n.Geometry, n.Material)
		}
	}
	for _, c := range n.children {
		r.walk(f, c, world)
	}
}

func (r *Renderer) drawLines(f *frame, world Mat4, g *Geometry, c Color) {
	mvp := Mat4Mul(f.viewProj, world)
	for i := 0; i+1 < len(g.Indices); i += 2 {
		i0, i1 := int(g.Indices[i]), int(g.Indices[i+1])
		if i0 >= len(g.Positions) || i1 >= len(g.Positions) {
			continue
		}
		a := toClip(mvp, g.Positions[i0])
		b := toClip(mvp, g.Positions[i1])
		r.clipLine(f, a, b, c)
	}
}

func (r *Renderer) drawTriangles(f *frame, world Mat4, g *Geometry, m *Material) {
	mvp := Mat4Mul(f.viewProj, world)
	wire := m.Wireframe || r.Mode == RenderWireframe
	for i := 0; i+2 < len(g.Indices); i += 3 {
		i0, i1, i2 := int(g.Indices[i]), int(g.Indices[i+1]), int(g.Indices[i+2])
		if i0 >= len(g.Positions) || i1 >= len(g.Positions) || i2 >= len(g.Positions) {
			continue
		}
		v0, v1, v2 := g.Positions[i0], g.Positions[i1], g.Positions[i2]

		base := m.BaseColor
		n := triangleNormal(Mat4MulPoint(world, v0), Mat4MulPoint(world, v1), Mat4MulPoint(world, v2))
		base = base.MulScalar(lightIntensity(f.light, n))

		p0, p1, p2 := toClip(mvp, v0), toClip(mvp, v1), toClip(mvp, v2)
		if wire {
			r.clipLine(f, p0, p1, base)
			r.clipLine(f, p1, p2, base)
			r.clipLine(f, p2, p0, base)
			continue
		}
		// Triangles crossing the near plane are dropped rather than clipped.
		if p0.W < nearW || p1.W < nearW || p2.W < nearW {
			continue
		}
		n0, n1, n2 := clipToNDC(p0), clipToNDC(p1), clipToNDC(p2)
		x0, y0 := ndcToScreen(n0, f.w, f.h)
		x1, y1 := ndcToScreen(n1, f.w, f.h)
		x2, y2 := ndcToScreen(n2, f.w, f.h)
		r.fillTriangleFlat(f.t, f.w, f.h, x0, y0, n0.Z, x1, y1, n1.Z, x2, y2, n2.Z, base)
	}
}

func toClip(mvp Mat4, p Vec3) Vec4 {
	return Mat4MulV4(mvp, Vec4{X: p.X, Y: p.Y, Z: p.Z, W: 1})
}

// clipLine clips a clip-space segment against the near plane and the
// viewport, then rasterizes it with depth.
func (r *Renderer) clipLine(f *frame, a, b Vec4, c Color) {
	if a.W < nearW && b.W < nearW {
		return
	}
	if a.W < nearW {
		a = lerp4(a, b, (nearW-a.W)/(b.W-a.W))
	} else if b.W < nearW {
		b = lerp4(a, b, (nearW-a.W)/(b.W-a.W))
	}
	na, nb := clipToNDC(a), clipToNDC(b)

	// Liang-Barsky against the NDC square.
	t0, t1 := float32(0), float32(1)
	dx, dy := nb.X-na.X, nb.Y-na.Y
	edges := [4][2]float32{
		{-dx, na.X + 1}, {dx, 1 - na.X},
		{-dy, na.Y + 1}, {dy, 1 - na.Y},
	}
	for _, e := range edges {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return
			}
			continue
		}
		u := q / p
		if p < 0 {
			if u > t1 {
				return
			}
			if u > t0 {
				t0 = u
			}
		} else {
			if u < t0 {
				return
			}
			if u < t1 {
				t1 = u
			}
		}
	}
	dz := nb.Z - na.Z
	s := ndcPoint{X: na.X + t0*dx, Y: na.Y + t0*dy, Z: na.Z + t0*dz}
	e := ndcPoint{X: na.X + t1*dx, Y: na.Y + t1*dy, Z: na.Z + t1*dz}
	x0, y0 := ndcToScreen(s, f.w, f.h)
	x1, y1 := ndcToScreen(e, f.w, f.h)
	r.drawLine(f.t, f.w, x0, y0, s.Z, x1, y1, e.Z, c)
}

func lerp4(a, b Vec4, t Scalar) Vec4 {
	return Vec4{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
		W: a.W + (b.W-a.W)*t,
	}
}

type ndcPoint struct {
	X, Y, Z float32
}

func clipToNDC(p Vec4) ndcPoint {
	invW := 1 / p.W
	return ndcPoint{X: p.X * invW, Y: p.Y * invW, Z: p.Z * invW}
}

func ndcToScreen(p ndcPoint, w, h int) (x, y int) {
	sx := (p.X*0.5 + 0.5) * float32(w-1)
	sy := (1 - (p.Y*0.5 + 0.5)) * float32(h-1)
	return int(sx + 0.5), int(sy + 0.5)
}

func triangleNormal(a, b, c Vec3) Vec3 {
	return Normalize(Cross(b.Sub(a), c.Sub(a)))
}

// lightIntensity is two-sided: mesh winding from external files is not
// trusted.
func lightIntensity(l Light, n Vec3) Scalar {
	amb := Clamp01(l.Ambient)
	dir := Clamp01(l.DirAmount)
	ld := Normalize(l.Dir)
	if ld == (Vec3{}) {
		return Clamp01(amb)
	}
	d := Dot(n, ld.Mul(-1))
	if d < 0 {
		d = -d
	}
	return Clamp01(amb + d*dir)
}

func (r *Renderer) depthTest(w int, x, y int, z float32) bool {
	if !r.Depth || r.depthBuf == nil {
		return true
	}
	if x < 0 || y < 0 || x >= w {
		return false
	}
	idx := y*w + x
	if idx < 0 || idx >= len(r.depthBuf) {
		return false
	}
	// NDC z is typically in [-1,1]. Map to [0,1].
	d := clampF32(z*0.5+0.5, 0, 1)
	if d >= r.depthBuf[idx] {
		return false
	}
	r.depthBuf[idx] = d
	return true
}

func (r *Renderer) drawLine(t Target, w int, x0, y0 int, z0 float32, x1, y1 int, z1 float32, c Color) {
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	steps := dx
	if -dy > steps {
		steps = -dy
	}
	dz := float32(0)
	if steps > 0 {
		dz = (z1 - z0) / float32(steps)
	}
	// Lines sit slightly in front of coplanar faces.
	z := z0 - 1e-4
	err := dx + dy
	for {
		if r.depthTest(w, x0, y0, z) {
			t.SetPixel(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
		z += dz
	}
}

func (r *Renderer) fillTriangleFlat(t Target, w, h int, x0, y0 int, z0 float32, x1, y1 int, z1 float32, x2, y2 int, z2 float32, c Color) {
	minX, maxX := max(min(x0, x1, x2), 0), min(max(x0, x1, x2), w-1)
	minY, maxY := max(min(y0, y1, y2), 0), min(max(y0, y1, y2), h-1)
	if minX > maxX || minY > maxY {
		return
	}

	area := edgeFn(x0, y0, x1, y1, x2, y2)
	if area == 0 {
		return
	}
	invArea := 1.0 / float32(area)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			w0 := edgeFn(x1, y1, x2, y2, x, y)
			w1 := edgeFn(x2, y2, x0, y0, x, y)
			w2 := edgeFn(x0, y0, x1, y1, x, y)
			if area > 0 {
				if (w0 | w1 | w2) < 0 {
					continue
				}
			} else if w0 > 0 || w1 > 0 || w2 > 0 {
				continue
			}
			a0 := float32(w0) * invArea
			a1 := float32(w1) * invArea
			a2 := float32(w2) * invArea
			z := a0*z0 + a1*z1 + a2*z2
			if !r.depthTest(w, x, y, z) {
				continue
			}
			t.SetPixel(x, y, c)
		}
	}
}

func edgeFn(x0, y0, x1, y1, x, y int) int {
	return (x-x0)*(y1-y0) - (y-y0)*(x1-x0)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
