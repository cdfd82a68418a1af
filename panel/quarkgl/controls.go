package quarkgl

import "math"

// maxPitch keeps the camera off the poles where the up vector degenerates.
const maxPitch = math.Pi/2 - 0.01

// OrbitController provides basic orbit/zoom/pan interactions for a camera.
//
// It does not depend on any input system.
type OrbitController struct {
	Target Vec3
	Yaw    Scalar
	Pitch  Scalar
	Radius Scalar

	MinRadius Scalar
	MaxRadius Scalar

	home orbitPose
}

type orbitPose struct {
	target             Vec3
	yaw, pitch, radius Scalar
}

// OrbitFrom builds a controller that reproduces the camera's current view
// around target. The resulting pose is also the Reset pose.
func OrbitFrom(cam Camera, target Vec3) OrbitController {
	d := cam.Position.Sub(target)
	r := Len(d)
	c := OrbitController{Target: target, Radius: r}
	if r > 0 {
		c.Pitch = Scalar(math.Asin(float64(d.Y / r)))
		c.Yaw = Scalar(math.Atan2(float64(d.X), float64(d.Z)))
	}
	c.home = c.pose()
	return c
}

func (c *OrbitController) pose() orbitPose {
	return orbitPose{target: c.Target, yaw: c.Yaw, pitch: c.Pitch, radius: c.Radius}
}

// Reset restores the pose captured by OrbitFrom.
func (c *OrbitController) Reset() {
	c.Target = c.home.target
	c.Yaw = c.home.yaw
	c.Pitch = c.home.pitch
	c.Radius = c.home.radius
}

func (c *OrbitController) radius() Scalar {
	r := c.Radius
	if r == 0 {
		r = Scalar(3)
	}
	if c.MinRadius != 0 && r < c.MinRadius {
		r = c.MinRadius
	}
	if c.MaxRadius != 0 && r > c.MaxRadius {
		r = c.MaxRadius
	}
	return r
}

// Apply writes the orbit pose into cam.
func (c *OrbitController) Apply(cam *Camera) {
	if cam == nil {
		return
	}
	r := float64(c.radius())
	yaw, pitch := float64(c.Yaw), float64(c.Pitch)
	off := V3(
		Scalar(r*math.Sin(yaw)*math.Cos(pitch)),
		Scalar(r*math.Sin(pitch)),
		Scalar(r*math.Cos(yaw)*math.Cos(pitch)),
	)
	cam.Position = c.Target.Add(off)
	cam.Target = c.Target
	if cam.Up == (Vec3{}) {
		cam.Up = V3(0, 1, 0)
	}
}

func (c *OrbitController) Rotate(deltaYaw, deltaPitch Scalar) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch
	if c.Pitch > maxPitch {
		c.Pitch = maxPitch
	}
	if c.Pitch < -maxPitch {
		c.Pitch = -maxPitch
	}
}

func (c *OrbitController) Zoom(delta Scalar) {
	c.Radius = c.radius() + delta
	c.Radius = c.radius()
}

// Pan moves the target in the camera's screen plane. dx and dy are fractions
// of the orbit radius.
func (c *OrbitController) Pan(dx, dy Scalar) {
	r := c.radius()
	yaw, pitch := float64(c.Yaw), float64(c.Pitch)
	right := V3(Scalar(math.Cos(yaw)), 0, Scalar(-math.Sin(yaw)))
	up := V3(
		Scalar(-math.Sin(yaw)*math.Sin(pitch)),
		Scalar(math.Cos(pitch)),
		Scalar(-math.Cos(yaw)*math.Sin(pitch)),
	)
	c.Target = c.Target.Add(right.Mul(-dx * r)).Add(up.Mul(dy * r))
}
