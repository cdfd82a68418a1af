package quarkgl

// Primitive selects how a geometry's indices are interpreted.
type Primitive uint8

const (
	PrimitiveTriangles Primitive = iota
	PrimitiveLines
)

// Geometry is an indexed vertex buffer.
type Geometry struct {
	Primitive Primitive
	Positions []Vec3
	Indices   []uint32

	disposed bool
}

// Dispose releases the buffers. Calling it again is a no-op.
func (g *Geometry) Dispose() {
	if g == nil || g.disposed {
		return
	}
	g.Positions = nil
	g.Indices = nil
	g.disposed = true
}

func (g *Geometry) Disposed() bool { return g == nil || g.disposed }

// Material is a minimal surface description.
type Material struct {
	BaseColor Color
	Wireframe bool

	disposed bool
}

func NewMaterial(c Color) *Material { return &Material{BaseColor: c} }

// Dispose marks the material released. Calling it again is a no-op.
func (m *Material) Dispose() {
	if m == nil {
		return
	}
	m.disposed = true
}

func (m *Material) Disposed() bool { return m == nil || m.disposed }

// Node is an element of the scene graph. Transform is relative to the parent.
type Node struct {
	Name      string
	Transform Mat4
	Visible   bool

	Geometry *Geometry
	Material *Material

	parent   *Node
	children []*Node
}

func NewNode(name string) *Node {
	return &Node{Name: name, Transform: Mat4Identity(), Visible: true}
}

// NewMesh returns a visible node drawing g with m.
func NewMesh(name string, g *Geometry, m *Material) *Node {
	n := NewNode(name)
	n.Geometry = g
	n.Material = m
	return n
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if n == nil || child == nil || child == n {
		return
	}
	child.RemoveFromParent()
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child from n and reports whether it was attached.
func (n *Node) Remove(child *Node) bool {
	if n == nil || child == nil {
		return false
	}
	for i, c := range n.children {
		if c != child {
			continue
		}
		copy(n.children[i:], n.children[i+1:])
		n.children[len(n.children)-1] = nil
		n.children = n.children[:len(n.children)-1]
		child.parent = nil
		return true
	}
	return false
}

func (n *Node) RemoveFromParent() {
	if n == nil || n.parent == nil {
		return
	}
	n.parent.Remove(n)
}

func (n *Node) Parent() *Node     { return n.parent }
func (n *Node) Children() []*Node { return n.children }

// Traverse calls fn for n and every descendant, parents first.
func (n *Node) Traverse(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.children {
		c.Traverse(fn)
	}
}

// Find returns the first node named name in the subgraph, or nil.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Traverse(func(c *Node) {
		if found == nil && c.Name == name {
			found = c
		}
	})
	return found
}

// WorldTransform composes the transforms from the root down to n.
func (n *Node) WorldTransform() Mat4 {
	if n == nil {
		return Mat4Identity()
	}
	if n.parent == nil {
		return n.Transform
	}
	return Mat4Mul(n.parent.WorldTransform(), n.Transform)
}

// DisposeObject disposes every geometry and material reachable from n and
// returns how many were released by this call. Shared resources are
// released once.
func DisposeObject(n *Node) int {
	released := 0
	n.Traverse(func(c *Node) {
		if c.Geometry != nil && !c.Geometry.Disposed() {
			c.Geometry.Dispose()
			released++
		}
		if c.Material != nil && !c.Material.Disposed() {
			c.Material.Dispose()
			released++
		}
	})
	return released
}

// LiveResources counts the distinct geometries and materials reachable from n
// that are not disposed.
func LiveResources(n *Node) int {
	seen := map[any]struct{}{}
	n.Traverse(func(c *Node) {
		if c.Geometry != nil && !c.Geometry.Disposed() {
			seen[c.Geometry] = struct{}{}
		}
		if c.Material != nil && !c.Material.Disposed() {
			seen[c.Material] = struct{}{}
		}
	})
	return len(seen)
}
