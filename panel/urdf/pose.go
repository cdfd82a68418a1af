package urdf

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"urdfpanel/panel/quarkgl"
)

// pose is a rigid transform: rotate, then translate.
type pose struct {
	rot r3.Rotation
	pos r3.Vec
}

var identityPose = pose{rot: r3.NewRotation(0, r3.Vec{Z: 1})}

// rpyRotation composes fixed-axis roll, pitch, yaw: Rz(yaw)·Ry(pitch)·Rx(roll).
func rpyRotation(rpy r3.Vec) r3.Rotation {
	qx := quat.Number(r3.NewRotation(rpy.X, r3.Vec{X: 1}))
	qy := quat.Number(r3.NewRotation(rpy.Y, r3.Vec{Y: 1}))
	qz := quat.Number(r3.NewRotation(rpy.Z, r3.Vec{Z: 1}))
	return r3.Rotation(quat.Mul(qz, quat.Mul(qy, qx)))
}

func originPose(o *Origin) (pose, error) {
	if o == nil {
		return identityPose, nil
	}
	xyz, err := parseVec(o.XYZ, r3.Vec{})
	if err != nil {
		return pose{}, err
	}
	rpy, err := parseVec(o.RPY, r3.Vec{})
	if err != nil {
		return pose{}, err
	}
	return pose{rot: rpyRotation(rpy), pos: xyz}, nil
}

// then returns p followed by q in p's frame.
func (p pose) then(q pose) pose {
	return pose{
		rot: r3.Rotation(quat.Mul(quat.Number(p.rot), quat.Number(q.rot))),
		pos: r3.Add(p.pos, p.rot.Rotate(q.pos)),
	}
}

func (p pose) apply(v r3.Vec) r3.Vec { return r3.Add(p.pos, p.rot.Rotate(v)) }

func (p pose) mat4() quarkgl.Mat4 {
	return quarkgl.Mat4FromBasis(
		vec3(p.rot.Rotate(r3.Vec{X: 1})),
		vec3(p.rot.Rotate(r3.Vec{Y: 1})),
		vec3(p.rot.Rotate(r3.Vec{Z: 1})),
		vec3(p.pos),
	)
}

func vec3(v r3.Vec) quarkgl.Vec3 {
	return quarkgl.V3(quarkgl.Scalar(v.X), quarkgl.Scalar(v.Y), quarkgl.Scalar(v.Z))
}
