package urdf

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"urdfpanel/panel/quarkgl"
)

var (
	defaultColor  = quarkgl.Hex(0xB0B0B0)
	skeletonColor = quarkgl.Hex(0x4FC3F7)
)

// MeshFunc resolves a mesh filename from a visual to geometry.
type MeshFunc func(filename string) (*quarkgl.Geometry, error)

// BuildOptions control how visuals are turned into geometry.
type BuildOptions struct {
	// Meshes resolves <mesh> visuals. Nil skips them.
	Meshes MeshFunc
	// Skeleton adds a line set joining each link to its child joints.
	Skeleton bool
	// Skipped is called for every visual that could not be built.
	Skipped func(link string, err error)
}

// Model is a built kinematic model. It owns the graphics resources under Root.
type Model struct {
	Name   string
	Root   *quarkgl.Node
	Links  map[string]*quarkgl.Node
	joints map[string]*Joint
	order  []string
}

// Joint returns the named joint.
func (m *Model) Joint(name string) (*Joint, bool) {
	j, ok := m.joints[name]
	return j, ok
}

// SetJointValue moves the named joint and reports whether the model has it.
func (m *Model) SetJointValue(name string, v float64) bool {
	j, ok := m.joints[name]
	if !ok {
		return false
	}
	j.SetJointValue(v)
	return true
}

// JointNames lists the joints in document order.
func (m *Model) JointNames() []string { return append([]string(nil), m.order...) }

// Dispose releases every geometry and material of the model.
func (m *Model) Dispose() int { return quarkgl.DisposeObject(m.Root) }

// Build creates the node graph for robot.
func Build(robot *Robot, opts BuildOptions) (*Model, error) {
	rootName, err := robot.RootLink()
	if err != nil {
		return nil, err
	}
	materials, err := namedMaterials(robot.Materials)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Name:   robot.Name,
		Root:   quarkgl.NewNode(robot.Name),
		Links:  make(map[string]*quarkgl.Node, len(robot.Links)),
		joints: make(map[string]*Joint, len(robot.Joints)),
	}
	for _, l := range robot.Links {
		n := quarkgl.NewNode(l.Name)
		m.Links[l.Name] = n
		for i, v := range l.Visuals {
			vn, err := buildVisual(v, materials, opts.Meshes)
			if err != nil {
				if opts.Skipped != nil {
					opts.Skipped(l.Name, err)
				}
				continue
			}
			if vn.Name == "" {
				vn.Name = fmt.Sprintf("%s/visual%d", l.Name, i)
			}
			n.Add(vn)
		}
	}
	m.Root.Add(m.Links[rootName])

	bones := map[string][]quarkgl.Vec3{}
	for _, js := range robot.Joints {
		j, err := buildJoint(js)
		if err != nil {
			quarkgl.DisposeObject(m.Root)
			for _, n := range m.Links {
				quarkgl.DisposeObject(n)
			}
			return nil, err
		}
		j.child = m.Links[js.Child.Link]
		j.child.Transform = j.motion().mat4()
		m.Links[js.Parent.Link].Add(j.child)
		m.joints[j.Name] = j
		m.order = append(m.order, j.Name)
		bones[j.Parent] = append(bones[j.Parent], quarkgl.Vec3{}, vec3(j.origin.pos))
	}
	if opts.Skeleton {
		for link, pts := range bones {
			bone := quarkgl.NewMesh(link+"/skeleton", quarkgl.LineGeometry(pts), quarkgl.NewMaterial(skeletonColor))
			m.Links[link].Add(bone)
		}
	}
	return m, nil
}

func buildJoint(js JointSpec) (*Joint, error) {
	origin, err := originPose(js.Origin)
	if err != nil {
		return nil, fmt.Errorf("joint %q origin: %w", js.Name, err)
	}
	j := &Joint{
		Name:   js.Name,
		Type:   parseJointType(js.Type),
		Parent: js.Parent.Link,
		Child:  js.Child.Link,
		Axis:   r3.Vec{X: 1},
		origin: origin,
	}
	if js.Axis != nil {
		axis, err := parseVec(js.Axis.XYZ, r3.Vec{X: 1})
		if err != nil {
			return nil, fmt.Errorf("joint %q axis: %w", js.Name, err)
		}
		if r3.Norm(axis) == 0 {
			return nil, fmt.Errorf("%w: joint %q has a zero axis", ErrInvalidDescription, js.Name)
		}
		j.Axis = r3.Unit(axis)
	}
	if js.Limit != nil {
		j.Lower, j.Upper = js.Limit.Lower, js.Limit.Upper
	}
	if j.Limited() && (j.Lower > 0 || j.Upper < 0) {
		// Keep the rest pose inside the limits.
		j.value = math.Max(j.Lower, math.Min(j.Upper, 0))
	}
	return j, nil
}

func namedMaterials(specs []MaterialSpec) (map[string]quarkgl.Color, error) {
	out := make(map[string]quarkgl.Color, len(specs))
	for _, s := range specs {
		if s.Name == "" || s.Color == nil {
			continue
		}
		c, err := parseRGBA(s.Color.RGBA)
		if err != nil {
			return nil, err
		}
		out[s.Name] = quarkgl.RGBAFloat(c[0], c[1], c[2], c[3])
	}
	return out, nil
}

func visualColor(ms *MaterialSpec, named map[string]quarkgl.Color) quarkgl.Color {
	if ms == nil {
		return defaultColor
	}
	if ms.Color != nil {
		if c, err := parseRGBA(ms.Color.RGBA); err == nil {
			return quarkgl.RGBAFloat(c[0], c[1], c[2], c[3])
		}
	}
	if c, ok := named[ms.Name]; ok {
		return c
	}
	return defaultColor
}

func buildVisual(v Visual, named map[string]quarkgl.Color, meshes MeshFunc) (*quarkgl.Node, error) {
	origin, err := originPose(v.Origin)
	if err != nil {
		return nil, err
	}
	transform := origin.mat4()

	var g *quarkgl.Geometry
	switch s := v.Geometry; {
	case s.Box != nil:
		size, err := parseVec(s.Box.Size, r3.Vec{})
		if err != nil {
			return nil, err
		}
		g = quarkgl.BoxGeometry(quarkgl.Scalar(size.X), quarkgl.Scalar(size.Y), quarkgl.Scalar(size.Z))
	case s.Cylinder != nil:
		g = quarkgl.CylinderGeometry(quarkgl.Scalar(s.Cylinder.Radius), quarkgl.Scalar(s.Cylinder.Length), 16)
	case s.Sphere != nil:
		g = quarkgl.SphereGeometry(quarkgl.Scalar(s.Sphere.Radius), 12, 8)
	case s.Mesh != nil:
		if meshes == nil {
			return nil, fmt.Errorf("mesh %s: no mesh resolver", s.Mesh.Filename)
		}
		scale, err := parseVec(s.Mesh.Scale, r3.Vec{X: 1, Y: 1, Z: 1})
		if err != nil {
			return nil, err
		}
		g, err = meshes(s.Mesh.Filename)
		if err != nil {
			return nil, fmt.Errorf("mesh %s: %w", s.Mesh.Filename, err)
		}
		transform = quarkgl.Mat4Mul(transform, quarkgl.Mat4Scale(vec3(scale)))
	default:
		return nil, fmt.Errorf("%w: visual without geometry", ErrInvalidDescription)
	}

	n := quarkgl.NewMesh(v.Name, g, quarkgl.NewMaterial(visualColor(v.Material, named)))
	n.Transform = transform
	return n, nil
}

// MeshPath strips the scheme from a mesh filename. fromPackage reports a
// package:// reference, whose path is relative to the package root (the
// package name is dropped); other paths are relative to the description.
func MeshPath(filename string) (path string, fromPackage bool) {
	if rest, ok := strings.CutPrefix(filename, "package://"); ok {
		if _, after, found := strings.Cut(rest, "/"); found {
			return after, true
		}
		return rest, true
	}
	return strings.TrimPrefix(filename, "file://"), false
}
