package urdf

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"urdfpanel/panel/quarkgl"
)

// JointType is the URDF joint type.
type JointType uint8

const (
	JointFixed JointType = iota
	JointRevolute
	JointContinuous
	JointPrismatic
)

func parseJointType(s string) JointType {
	switch s {
	case "revolute":
		return JointRevolute
	case "continuous":
		return JointContinuous
	case "prismatic":
		return JointPrismatic
	}
	// floating and planar joints have no single-value motion.
	return JointFixed
}

func (t JointType) String() string {
	switch t {
	case JointRevolute:
		return "revolute"
	case JointContinuous:
		return "continuous"
	case JointPrismatic:
		return "prismatic"
	}
	return "fixed"
}

// Joint is an articulation point of a Model. Setting its value moves the
// child link node.
type Joint struct {
	Name   string
	Type   JointType
	Parent string
	Child  string
	Axis   r3.Vec
	Lower  float64
	Upper  float64

	origin pose
	child  *quarkgl.Node
	value  float64
}

// Limited reports whether values are clamped to [Lower, Upper].
func (j *Joint) Limited() bool {
	return (j.Type == JointRevolute || j.Type == JointPrismatic) && j.Lower < j.Upper
}

// SetJointValue moves the joint to v (radians or meters) and reports whether
// the joint moved. Revolute and prismatic joints clamp to their limits, fixed
// joints ignore the value, and non-finite values are dropped.
func (j *Joint) SetJointValue(v float64) bool {
	if j.Type == JointFixed || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if j.Limited() {
		v = math.Max(j.Lower, math.Min(j.Upper, v))
	}
	if v == j.value {
		return false
	}
	j.value = v
	j.child.Transform = j.motion().mat4()
	return true
}

// Value is the current joint value after clamping.
func (j *Joint) Value() float64 { return j.value }

func (j *Joint) motion() pose {
	switch j.Type {
	case JointRevolute, JointContinuous:
		return j.origin.then(pose{rot: r3.NewRotation(j.value, j.Axis)})
	case JointPrismatic:
		return j.origin.then(pose{rot: identityPose.rot, pos: r3.Scale(j.value, j.Axis)})
	}
	return j.origin
}
