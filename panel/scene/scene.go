// Package scene owns the renderer, the scene graph and the surface they draw
// into.
package scene

import (
	"errors"

	"urdfpanel/hal"
	"urdfpanel/panel/quarkgl"
)

var ErrNotMounted = errors.New("scene: not mounted")

var (
	background = quarkgl.Hex(0x222222)
	gridColor  = quarkgl.Hex(0x888888)

	lightPosition = quarkgl.V3(5, 10, 7.5)
)

const (
	lightIntensity = 1
	ambient        = 0.4

	gridSize      = 1.5
	gridDivisions = 12
)

// Lifecycle holds everything that lives from mount to unmount.
type Lifecycle struct {
	fb       hal.Framebuffer
	target   quarkgl.RGB565Target
	renderer *quarkgl.Renderer
	scene    *quarkgl.Scene
	grid     *quarkgl.Node
	mounted  bool
}

func New() *Lifecycle { return &Lifecycle{} }

// Mount sizes fb to w x h and creates the renderer, the scene, the grid
// helper and the light.
func (l *Lifecycle) Mount(fb hal.Framebuffer, w, h int) error {
	if fb == nil {
		return errors.New("scene: nil framebuffer")
	}
	if fb.Format() != hal.PixelFormatRGB565 {
		return errors.New("scene: framebuffer is not RGB565")
	}
	if l.mounted {
		l.Unmount()
	}
	l.fb = fb
	l.renderer = quarkgl.NewRenderer(w, h, true)
	l.scene = quarkgl.NewScene(background, quarkgl.DirectionalFrom(lightPosition, lightIntensity, ambient))
	l.grid = quarkgl.NewMesh("grid", quarkgl.GridGeometry(gridSize, gridDivisions), quarkgl.NewMaterial(gridColor))
	l.scene.Add(l.grid)
	l.mounted = true
	l.Resize(w, h)
	return nil
}

func (l *Lifecycle) Mounted() bool { return l.mounted }

// Resize reallocates the surface to exactly w x h.
func (l *Lifecycle) Resize(w, h int) {
	if !l.mounted {
		return
	}
	l.fb.Resize(w, h)
	l.target.Bind(l.fb.Buffer(), l.fb.StrideBytes(), l.fb.Width(), l.fb.Height())
}

// Size reports the surface size.
func (l *Lifecycle) Size() (w, h int) {
	if !l.mounted {
		return 0, 0
	}
	return l.fb.Width(), l.fb.Height()
}

// Attach adds n to the scene.
func (l *Lifecycle) Attach(n *quarkgl.Node) {
	if l.mounted {
		l.scene.Add(n)
	}
}

// Detach removes n from the scene without disposing it.
func (l *Lifecycle) Detach(n *quarkgl.Node) {
	if l.mounted {
		l.scene.Remove(n)
	}
}

// Root is the scene root, for inspection.
func (l *Lifecycle) Root() *quarkgl.Node {
	if !l.mounted {
		return nil
	}
	return l.scene.Root
}

// Render draws the scene as seen from cam.
func (l *Lifecycle) Render(cam *quarkgl.Camera) error {
	if !l.mounted {
		return ErrNotMounted
	}
	l.renderer.Render(&l.target, l.scene, cam)
	return nil
}

// Present hands the finished frame to the host.
func (l *Lifecycle) Present() error {
	if !l.mounted {
		return ErrNotMounted
	}
	return l.fb.Present()
}

// Framebuffer is the mounted surface, or nil.
func (l *Lifecycle) Framebuffer() hal.Framebuffer {
	if !l.mounted {
		return nil
	}
	return l.fb
}

// Unmount releases the renderer, clears the surface and disposes every
// object still in the scene. Calling it again is a no-op.
func (l *Lifecycle) Unmount() {
	if !l.mounted {
		return
	}
	l.mounted = false
	l.renderer.Dispose()
	l.fb.ClearRGB(0, 0, 0)
	quarkgl.DisposeObject(l.scene.Root)
	l.target.Bind(nil, 0, 0, 0)
}

// LiveResources counts the graphics resources not yet released.
func (l *Lifecycle) LiveResources() int {
	n := 0
	if l.renderer != nil && !l.renderer.Disposed() {
		n++
	}
	if l.scene != nil {
		n += quarkgl.LiveResources(l.scene.Root)
	}
	return n
}
