// Package panel composes the joint state, model lifecycle, scene, viewport
// and render loop into the robot panel a host mounts.
package panel

import (
	"errors"

	"urdfpanel/hal"
	"urdfpanel/internal/logging"
	"urdfpanel/panel/hud"
	"urdfpanel/panel/joints"
	"urdfpanel/panel/metrics"
	"urdfpanel/panel/model"
	"urdfpanel/panel/options"
	"urdfpanel/panel/render"
	"urdfpanel/panel/scene"
	"urdfpanel/panel/telemetry"
	"urdfpanel/panel/urdf"
	"urdfpanel/panel/viewport"
)

var ErrMounted = errors.New("panel: already mounted")

type Config struct {
	Frames render.Scheduler
	Exec   model.Executor
	Loader model.Loader
	Joints joints.Config
	// AssetsBase is the directory or URL holding <variant>.urdf files.
	AssetsBase string
	// WatchDescriptions reloads a local description when it changes on disk.
	WatchDescriptions bool
	// Persist stores options chosen from the keyboard. Optional.
	Persist func(options.Options) error
	Log     logging.Log
	Metrics *metrics.Manager
}

// Panel is the single owner of all panel state. Every method must be called
// on the execution context that services Frames and Exec; none of the
// fields below is touched from anywhere else.
type Panel struct {
	cfg Config
	log logging.Log

	// Written by OnFrame, read by the render loop.
	state  *joints.State
	mapper *joints.Mapper

	// Created at Mount, released at Unmount.
	scene    *scene.Lifecycle
	models   *model.Lifecycle
	view     *viewport.Controller
	loop     *render.Loop
	hud      *hud.HUD
	fb       hal.Framebuffer
	opts     options.Options
	mounted  bool
	jointBuf []hud.JointValue
}

func New(cfg Config) (*Panel, error) {
	if err := cfg.Joints.Validate(); err != nil {
		return nil, err
	}
	if cfg.Frames == nil || cfg.Exec == nil || cfg.Loader == nil {
		return nil, errors.New("panel: frames, executor and loader are required")
	}
	p := &Panel{cfg: cfg, log: cfg.Log, hud: hud.New()}
	if p.log == nil {
		p.log = logging.Discard()
	}
	return p, nil
}

// Mount creates the scene on fb at w x h, starts the render loop and loads
// the model selected by opts.
func (p *Panel) Mount(fb hal.Framebuffer, w, h int, opts options.Options) error {
	if p.mounted {
		return ErrMounted
	}
	p.state = joints.NewState(p.cfg.Joints.Joints())
	p.mapper = joints.NewMapper(p.cfg.Joints, p.state)

	p.scene = scene.New()
	if err := p.scene.Mount(fb, w, h); err != nil {
		return err
	}
	p.fb = fb
	p.view = viewport.New(w, h)
	p.models = model.NewLifecycle(model.Config{
		Loader:     p.cfg.Loader,
		Stage:      p.scene,
		Exec:       p.cfg.Exec,
		AssetsBase: p.cfg.AssetsBase,
		Watch:      p.cfg.WatchDescriptions,
		Log:        p.log.Named("model"),
		Metrics:    p.cfg.Metrics,
	})
	p.loop = render.New(render.Config{
		Frames:  p.cfg.Frames,
		State:   p.state,
		Model:   p.models.Model,
		View:    p.view,
		Surface: p.scene,
		Overlay: p.drawOverlay,
		Log:     p.log.Named("render"),
		Metrics: p.cfg.Metrics,
	})
	p.mounted = true
	p.loop.Start()
	p.OnOptions(opts)
	p.log.Infof("mounted %dx%d", w, h)
	return nil
}

// Unmount stops the loop and releases every resource. It is idempotent.
func (p *Panel) Unmount() {
	if !p.mounted {
		return
	}
	p.mounted = false
	p.loop.Stop()
	p.view.Dispose()
	p.models.Close()
	p.scene.Unmount()
	p.log.Infof("unmounted")
}

func (p *Panel) Mounted() bool { return p.mounted }

// OnFrame applies a telemetry frame to the joint targets.
func (p *Panel) OnFrame(f telemetry.Frame) {
	if !p.mounted {
		return
	}
	res := p.mapper.Apply(f)
	p.cfg.Metrics.RecordTelemetry(res.Writes, res.Unmapped, res.Malformed)
}

// OnOptions applies changed options. Only a variant change reloads.
func (p *Panel) OnOptions(o options.Options) {
	if !p.mounted {
		return
	}
	norm, ok := o.Normalize()
	if !ok {
		p.log.Warnf("unknown model %q, using %s", o.Model, norm.Model)
	}
	p.opts = norm
	p.models.Select(norm.Model)
}

// OnResize resizes the surface and the camera aspect.
func (p *Panel) OnResize(w, h int) {
	if !p.mounted || w <= 0 || h <= 0 {
		return
	}
	if cw, ch := p.scene.Size(); cw == w && ch == h {
		return
	}
	p.scene.Resize(w, h)
	p.view.Resize(w, h)
}

// Reload loads the current variant again.
func (p *Panel) Reload() {
	if p.mounted {
		p.models.Reload()
	}
}

func (p *Panel) HandleKey(ev hal.KeyEvent) {
	if !p.mounted || !ev.Press {
		return
	}
	switch ev.Rune {
	case '1', '2':
		choices := options.Choices()
		i := int(ev.Rune - '1')
		if i < len(choices) {
			p.choose(choices[i].Value)
		}
		return
	case 'r', 'R':
		p.Reload()
		return
	case 'h', 'H':
		p.hud.Toggle()
		return
	}
	p.view.HandleKey(ev)
}

func (p *Panel) choose(v options.Variant) {
	if v == p.opts.Model {
		return
	}
	o := p.opts
	o.Model = v
	p.OnOptions(o)
	if p.cfg.Persist != nil {
		if err := p.cfg.Persist(o); err != nil {
			p.log.Warnf("save options: %v", err)
		}
	}
}

func (p *Panel) HandlePointer(ev hal.PointerEvent) {
	if p.mounted {
		p.view.HandlePointer(ev)
	}
}

// State exposes the joint targets for inspection.
func (p *Panel) State() *joints.State { return p.state }

// Model is the attached model, or nil.
func (p *Panel) Model() *urdf.Model {
	if !p.mounted {
		return nil
	}
	return p.models.Model()
}

func (p *Panel) Options() options.Options { return p.opts }

func (p *Panel) Viewport() *viewport.Controller { return p.view }

func (p *Panel) Scene() *scene.Lifecycle { return p.scene }

func (p *Panel) ModelState() model.State {
	if p.models == nil {
		return model.Empty
	}
	return p.models.State()
}

func (p *Panel) drawOverlay() {
	if !p.hud.Visible() {
		return
	}
	p.jointBuf = p.jointBuf[:0]
	for i := 0; i < p.state.Len(); i++ {
		name, v := p.state.At(i)
		p.jointBuf = append(p.jointBuf, hud.JointValue{Name: name, Value: v})
	}
	p.hud.Draw(p.fb, hud.Status{
		Variant: p.opts.Model.Label(),
		State:   p.models.State().String(),
		Err:     p.models.Err(),
		Joints:  p.jointBuf,
	})
}
