package quarkgl

// Light is an ambient term plus one directional light.
type Light struct {
	Ambient   Scalar // 0..1
	Dir       Vec3   // direction *towards* the scene
	DirAmount Scalar // 0..1
}

// DirectionalFrom returns a light shining from position towards the origin.
func DirectionalFrom(position Vec3, intensity, ambient Scalar) Light {
	return Light{
		Ambient:   ambient,
		Dir:       Normalize(position.Mul(-1)),
		DirAmount: intensity,
	}
}

// Camera is a perspective camera.
type Camera struct {
	Position Vec3
	Target   Vec3
	Up       Vec3

	FOVYRad Scalar
	Aspect  Scalar

	Near Scalar
	Far  Scalar
}

// View returns the camera view matrix.
func (c Camera) View() Mat4 {
	up := c.Up
	if up == (Vec3{}) {
		up = V3(0, 1, 0)
	}
	return Mat4LookAt(c.Position, c.Target, up)
}

// Projection returns the perspective projection matrix.
func (c Camera) Projection() Mat4 {
	fov := c.FOVYRad
	if fov == 0 {
		fov = Scalar(1.0)
	}
	return Mat4Perspective(fov, c.Aspect, c.Near, c.Far)
}

// Scene is the root of everything a Renderer draws.
type Scene struct {
	Background Color
	Light      Light
	Root       *Node
}

func NewScene(background Color, light Light) *Scene {
	return &Scene{
		Background: background,
		Light:      light,
		Root:       NewNode("scene"),
	}
}

// Add attaches n to the scene root.
func (s *Scene) Add(n *Node) {
	if s == nil {
		return
	}
	s.Root.Add(n)
}

// Remove detaches n from the scene root and reports whether it was attached.
func (s *Scene) Remove(n *Node) bool {
	if s == nil {
		return false
	}
	return s.Root.Remove(n)
}
