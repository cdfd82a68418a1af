// Package viewport owns the camera and turns pointer and key input into
// orbit motion around the model.
package viewport

import (
	"math"

	"urdfpanel/hal"
	"urdfpanel/panel/quarkgl"
)

const (
	fovDeg = 45
	near   = 0.01
	far    = 100

	keyRotateStep = math.Pi / 36
	zoomStep      = 0.1
)

var (
	homePosition = quarkgl.V3(1.2, 1.0, 1.6)
	homeTarget   = quarkgl.V3(0, 0.4, 0)
)

// Controller is the camera plus its orbit controls.
type Controller struct {
	cam   quarkgl.Camera
	orbit quarkgl.OrbitController
	w, h  int

	dragging   bool
	lastX      int
	lastY      int
	lastButton hal.PointerButtons

	disposed bool
}

// New returns a controller for a w x h surface with the camera at its home
// pose.
func New(w, h int) *Controller {
	c := &Controller{
		cam: quarkgl.Camera{
			Position: homePosition,
			Target:   homeTarget,
			Up:       quarkgl.V3(0, 1, 0),
			FOVYRad:  fovDeg * math.Pi / 180,
			Near:     near,
			Far:      far,
		},
	}
	c.orbit = quarkgl.OrbitFrom(c.cam, homeTarget)
	c.orbit.MinRadius = 0.2
	c.orbit.MaxRadius = 20
	c.Resize(w, h)
	return c
}

// Camera returns the controlled camera.
func (c *Controller) Camera() *quarkgl.Camera { return &c.cam }

func (c *Controller) Aspect() float64 { return float64(c.cam.Aspect) }

func (c *Controller) Size() (w, h int) { return c.w, c.h }

// Resize updates the aspect ratio. The camera pose is left alone.
func (c *Controller) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	c.w, c.h = w, h
	c.cam.Aspect = quarkgl.Scalar(w) / quarkgl.Scalar(h)
}

// Update writes the orbit state into the camera. Call once per frame.
func (c *Controller) Update() {
	c.orbit.Apply(&c.cam)
}

// Reset returns the camera to its home pose.
func (c *Controller) Reset() { c.orbit.Reset() }

// HandlePointer applies one pointer event: primary drag orbits, secondary
// or shift drag pans, the wheel zooms.
func (c *Controller) HandlePointer(ev hal.PointerEvent) {
	if c.disposed {
		return
	}
	if ev.WheelY != 0 {
		c.orbit.Zoom(quarkgl.Scalar(-ev.WheelY * zoomStep * float64(c.orbit.Radius)))
	}
	if ev.Buttons == 0 {
		c.dragging = false
		return
	}
	if !c.dragging || ev.Buttons != c.lastButton {
		c.dragging = true
		c.lastX, c.lastY, c.lastButton = ev.X, ev.Y, ev.Buttons
		return
	}
	dx, dy := ev.X-c.lastX, ev.Y-c.lastY
	c.lastX, c.lastY = ev.X, ev.Y
	if dx == 0 && dy == 0 || c.h <= 0 {
		return
	}
	h := float64(c.h)
	if ev.Buttons&hal.ButtonSecondary != 0 || ev.Shift {
		// Visible height at the target distance is 2r*tan(fov/2).
		span := 2 * math.Tan(float64(c.cam.FOVYRad)/2)
		c.orbit.Pan(quarkgl.Scalar(float64(dx)/h*span), quarkgl.Scalar(float64(dy)/h*span))
		return
	}
	c.orbit.Rotate(quarkgl.Scalar(-2*math.Pi*float64(dx)/h), quarkgl.Scalar(2*math.Pi*float64(dy)/h))
}

// HandleKey applies camera keys and reports whether ev was consumed.
func (c *Controller) HandleKey(ev hal.KeyEvent) bool {
	if c.disposed || !ev.Press {
		return false
	}
	switch ev.Code {
	case hal.KeyLeft:
		c.orbit.Rotate(-keyRotateStep, 0)
	case hal.KeyRight:
		c.orbit.Rotate(keyRotateStep, 0)
	case hal.KeyUp:
		c.orbit.Rotate(0, keyRotateStep)
	case hal.KeyDown:
		c.orbit.Rotate(0, -keyRotateStep)
	case hal.KeyHome:
		c.Reset()
	default:
		switch ev.Rune {
		case '+', '=':
			c.orbit.Zoom(-zoomStep * c.orbit.Radius)
		case '-', '_':
			c.orbit.Zoom(zoomStep * c.orbit.Radius)
		case '0':
			c.Reset()
		default:
			return false
		}
	}
	return true
}

// Dispose detaches the controller from input. Later events are ignored.
func (c *Controller) Dispose() {
	c.disposed = true
	c.dragging = false
}
