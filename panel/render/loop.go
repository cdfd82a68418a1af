// Package render drives the per-refresh frame: push joint targets into the
// model, advance the camera, draw and present.
package render

import (
	"fmt"

	"urdfpanel/hal"
	"urdfpanel/internal/logging"
	"urdfpanel/panel/joints"
	"urdfpanel/panel/metrics"
	"urdfpanel/panel/quarkgl"
	"urdfpanel/panel/urdf"
)

// maxSeen bounds the set of distinct failure messages remembered.
const maxSeen = 64

// Scheduler runs a callback once on the next display refresh.
// hal.Frames satisfies it.
type Scheduler interface {
	RequestFrame(fn func()) hal.FrameID
	CancelFrame(id hal.FrameID)
}

// View is the camera owner.
type View interface {
	Update()
	Camera() *quarkgl.Camera
}

// Surface draws and presents a frame.
type Surface interface {
	Render(cam *quarkgl.Camera) error
	Present() error
}

type Config struct {
	Frames  Scheduler
	State   *joints.State
	Model   func() *urdf.Model
	View    View
	Surface Surface
	// Overlay draws after the 3D frame and before present. Optional.
	Overlay func()
	Log     logging.Log
	Metrics *metrics.Manager
}

// Loop is the steady render loop. It runs only on the execution context
// that services Frames.
type Loop struct {
	cfg     Config
	log     logging.Log
	tick    func()
	pending hal.FrameID
	running bool
	ticks   uint64

	// seen holds panic messages already logged.
	seen map[string]struct{}
}

func New(cfg Config) *Loop {
	l := &Loop{cfg: cfg, log: cfg.Log, seen: map[string]struct{}{}}
	if l.log == nil {
		l.log = logging.Discard()
	}
	l.tick = l.onFrame
	return l
}

// Start schedules the first tick. Starting a running loop is a no-op.
func (l *Loop) Start() {
	if l.running {
		return
	}
	l.running = true
	l.pending = l.cfg.Frames.RequestFrame(l.tick)
}

// Stop cancels the pending tick. No tick runs after Stop returns.
func (l *Loop) Stop() {
	if !l.running {
		return
	}
	l.running = false
	l.cfg.Frames.CancelFrame(l.pending)
	l.pending = 0
}

func (l *Loop) Running() bool { return l.running }

// Ticks reports how many ticks have run.
func (l *Loop) Ticks() uint64 { return l.ticks }

func (l *Loop) onFrame() {
	if !l.running {
		return
	}
	l.pending = l.cfg.Frames.RequestFrame(l.tick)
	l.ticks++
	defer l.recoverTick()
	l.step()
}

func (l *Loop) step() {
	if m := l.cfg.Model(); m != nil {
		st := l.cfg.State
		for i := 0; i < st.Len(); i++ {
			name, v := st.At(i)
			m.SetJointValue(name, v)
		}
	}
	l.cfg.View.Update()
	if err := l.cfg.Surface.Render(l.cfg.View.Camera()); err != nil {
		l.once("render: " + err.Error())
		return
	}
	if l.cfg.Overlay != nil {
		l.cfg.Overlay()
	}
	if err := l.cfg.Surface.Present(); err != nil {
		l.once("present: " + err.Error())
		return
	}
	l.cfg.Metrics.RecordFrameRendered()
}

func (l *Loop) recoverTick() {
	r := recover()
	if r == nil {
		return
	}
	l.cfg.Metrics.RecordRenderPanic()
	l.once(fmt.Sprintf("panic in frame: %v", r))
}

// once logs msg the first time it is seen.
func (l *Loop) once(msg string) {
	if _, ok := l.seen[msg]; ok {
		return
	}
	if len(l.seen) >= maxSeen {
		return
	}
	l.seen[msg] = struct{}{}
	l.log.Errorf("%s", msg)
}
