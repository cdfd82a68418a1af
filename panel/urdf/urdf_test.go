package urdf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"urdfpanel/panel/quarkgl"
)

func loadAsset(t *testing.T, variant string) *Model {
	t.Helper()
	f, err := os.Open("../../assets/ur_description/urdf/" + variant + ".urdf")
	require.NoError(t, err)
	defer f.Close()
	robot, err := Parse(f)
	require.NoError(t, err)
	m, err := Build(robot, BuildOptions{Skeleton: true})
	require.NoError(t, err)
	return m
}

func worldPos(n *quarkgl.Node) quarkgl.Vec3 {
	return quarkgl.Mat4MulPoint(n.WorldTransform(), quarkgl.Vec3{})
}

func requireNear(t *testing.T, want, got quarkgl.Vec3) {
	t.Helper()
	require.InDelta(t, want.X, got.X, 1e-4, "x")
	require.InDelta(t, want.Y, got.Y, 1e-4, "y")
	require.InDelta(t, want.Z, got.Z, 1e-4, "z")
}

func TestAssetsForwardKinematics(t *testing.T) {
	ur10e := loadAsset(t, "ur10e")
	require.Equal(t, "ur10e", ur10e.Name)
	require.Equal(t, []string{
		"base_link-base_link_inertia", "shoulder_pan_joint", "shoulder_lift_joint", "elbow_joint",
		"wrist_1_joint", "wrist_2_joint", "wrist_3_joint", "wrist_3-flange",
	}, ur10e.JointNames())
	requireNear(t, quarkgl.V3(1.18425, 0.2907, 0.06085), worldPos(ur10e.Links["tool0"]))

	require.True(t, ur10e.SetJointValue("shoulder_pan_joint", math.Pi/2))
	requireNear(t, quarkgl.V3(-0.2907, 1.18425, 0.06085), worldPos(ur10e.Links["tool0"]))

	ur16e := loadAsset(t, "ur16e")
	requireNear(t, quarkgl.V3(0.8384, 0.2907, 0.06085), worldPos(ur16e.Links["tool0"]))
}

func TestSetJointValueLimits(t *testing.T) {
	m := loadAsset(t, "ur10e")
	elbow, ok := m.Joint("elbow_joint")
	require.True(t, ok)
	require.Equal(t, JointRevolute, elbow.Type)

	elbow.SetJointValue(10)
	require.InDelta(t, math.Pi, elbow.Value(), 1e-6)
	elbow.SetJointValue(math.NaN())
	require.InDelta(t, math.Pi, elbow.Value(), 1e-6)

	fixed, _ := m.Joint("wrist_3-flange")
	require.False(t, fixed.SetJointValue(1))
	require.Zero(t, fixed.Value())

	require.False(t, m.SetJointValue("no_such_joint", 1))
}

const twoLink = `<robot name="t">
  <link name="a"/>
  <link name="b"><visual><geometry><box size="0.1 0.1 0.1"/></geometry></visual></link>
  <joint name="j" type="%s">
    <parent link="a"/><child link="b"/>
    <origin xyz="1 0 0"/>
    <axis xyz="0 0 2"/>
    <limit lower="-0.5" upper="0.5"/>
  </joint>
</robot>`

func buildTwoLink(t *testing.T, typ string) *Model {
	t.Helper()
	robot, err := Parse(strings.NewReader(strings.Replace(twoLink, "%s", typ, 1)))
	require.NoError(t, err)
	m, err := Build(robot, BuildOptions{})
	require.NoError(t, err)
	return m
}

func TestJointMotion(t *testing.T) {
	rev := buildTwoLink(t, "revolute")
	j, _ := rev.Joint("j")
	require.Equal(t, 1.0, j.Axis.Z, "axis is normalized")
	j.SetJointValue(math.Pi / 2)
	require.Equal(t, 0.5, j.Value())
	tip := quarkgl.Mat4MulPoint(rev.Links["b"].WorldTransform(), quarkgl.V3(1, 0, 0))
	requireNear(t, quarkgl.V3(1+float32(math.Cos(0.5)), float32(math.Sin(0.5)), 0), tip)

	cont := buildTwoLink(t, "continuous")
	j, _ = cont.Joint("j")
	j.SetJointValue(math.Pi)
	require.Equal(t, math.Pi, j.Value())
	tip = quarkgl.Mat4MulPoint(cont.Links["b"].WorldTransform(), quarkgl.V3(1, 0, 0))
	requireNear(t, quarkgl.V3(0, 0, 0), tip)

	pri := buildTwoLink(t, "prismatic")
	j, _ = pri.Joint("j")
	j.SetJointValue(0.25)
	requireNear(t, quarkgl.V3(1, 0, 0.25), worldPos(pri.Links["b"]))

	fixed := buildTwoLink(t, "floating")
	j, _ = fixed.Joint("j")
	require.Equal(t, JointFixed, j.Type)
}

func TestRestPoseInsideLimits(t *testing.T) {
	robot, err := Parse(strings.NewReader(`<robot name="t"><link name="a"/><link name="b"/>
	  <joint name="j" type="revolute"><parent link="a"/><child link="b"/><axis xyz="0 0 1"/>
	  <limit lower="0.2" upper="1"/></joint></robot>`))
	require.NoError(t, err)
	m, err := Build(robot, BuildOptions{})
	require.NoError(t, err)
	j, _ := m.Joint("j")
	require.Equal(t, 0.2, j.Value())
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"not xml":      `<robot`,
		"no links":     `<robot name="x"/>`,
		"dup link":     `<robot><link name="a"/><link name="a"/></robot>`,
		"unknown link": `<robot><link name="a"/><joint name="j" type="fixed"><parent link="a"/><child link="b"/></joint></robot>`,
		"two roots":    `<robot><link name="a"/><link name="b"/></robot>`,
		"two parents": `<robot><link name="a"/><link name="b"/><link name="c"/>
			<joint name="j1" type="fixed"><parent link="a"/><child link="c"/></joint>
			<joint name="j2" type="fixed"><parent link="b"/><child link="c"/></joint></robot>`,
		"cycle": `<robot><link name="r"/><link name="a"/><link name="b"/>
			<joint name="j0" type="fixed"><parent link="r"/><child link="r"/></joint>
			<joint name="j1" type="fixed"><parent link="a"/><child link="b"/></joint>
			<joint name="j2" type="fixed"><parent link="b"/><child link="a"/></joint></robot>`,
	} {
		_, err := Parse(strings.NewReader(doc))
		require.ErrorIs(t, err, ErrInvalidDescription, name)
	}
}

func TestBuildRejectsBadOrigin(t *testing.T) {
	robot, err := Parse(strings.NewReader(`<robot><link name="a"/><link name="b"/>
	  <joint name="j" type="fixed"><parent link="a"/><child link="b"/><origin xyz="1 2"/></joint></robot>`))
	require.NoError(t, err)
	_, err = Build(robot, BuildOptions{})
	require.ErrorIs(t, err, ErrInvalidDescription)
}

func TestMeshVisuals(t *testing.T) {
	doc := `<robot name="m"><link name="a"><visual>
	  <geometry><mesh filename="package://robot/meshes/a.stl" scale="2 2 2"/></geometry>
	  <material name="red"><color rgba="1 0 0 1"/></material>
	</visual></link></robot>`
	robot, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	var skipped []string
	m, err := Build(robot, BuildOptions{Skipped: func(link string, err error) { skipped = append(skipped, link) }})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, skipped)
	require.Empty(t, m.Links["a"].Children())

	var asked string
	m, err = Build(robot, BuildOptions{Meshes: func(name string) (*quarkgl.Geometry, error) {
		asked = name
		return quarkgl.BoxGeometry(1, 1, 1), nil
	}})
	require.NoError(t, err)
	require.Equal(t, "package://robot/meshes/a.stl", asked)
	vis := m.Links["a"].Children()[0]
	require.Equal(t, quarkgl.RGB(255, 0, 0), vis.Material.BaseColor)
	require.Equal(t, quarkgl.Scalar(2), vis.Transform[0])

	_, err = Build(robot, BuildOptions{Meshes: func(string) (*quarkgl.Geometry, error) {
		return nil, errors.New("boom")
	}, Skipped: func(string, error) {}})
	require.NoError(t, err)
}

func TestMeshPath(t *testing.T) {
	p, pkg := MeshPath("package://ur_description/meshes/ur10e/base.stl")
	require.Equal(t, "meshes/ur10e/base.stl", p)
	require.True(t, pkg)
	p, pkg = MeshPath("file://meshes/a.stl")
	require.Equal(t, "meshes/a.stl", p)
	require.False(t, pkg)
	p, _ = MeshPath("a.stl")
	require.Equal(t, "a.stl", p)
}

func TestDisposeReleasesEverything(t *testing.T) {
	m := loadAsset(t, "ur16e")
	require.NotZero(t, quarkgl.LiveResources(m.Root))
	require.NotNil(t, m.Root.Find("forearm_link/skeleton"))
	require.NotZero(t, m.Dispose())
	require.Zero(t, quarkgl.LiveResources(m.Root))
	require.Zero(t, m.Dispose())
}

func TestParseSTL(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, [12]float32{0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1, 0})
	buf.Write([]byte{0, 0})
	g, err := ParseSTL(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, []quarkgl.Vec3{{}, {X: 1}, {Y: 1}}, g.Positions)

	ascii := "solid t\n facet normal 0 0 1\n  outer loop\n   vertex 0 0 0\n   vertex 1 0 0\n   vertex 0 1 0\n  endloop\n endfacet\nendsolid t\n"
	g, err = ParseSTL([]byte(ascii))
	require.NoError(t, err)
	require.Len(t, g.Indices, 3)

	_, err = ParseSTL([]byte("garbage"))
	require.ErrorIs(t, err, ErrInvalidDescription)
	_, err = ParseSTL([]byte("solid empty\nendsolid\n"))
	require.ErrorIs(t, err, ErrInvalidDescription)
}
