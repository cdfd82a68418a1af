package model

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/knadh/koanf/providers/file"

	"urdfpanel/internal/logging"
	"urdfpanel/kernel"
	"urdfpanel/panel/metrics"
	"urdfpanel/panel/options"
	"urdfpanel/panel/quarkgl"
	"urdfpanel/panel/urdf"
)

// State is the lifecycle state of the displayed model.
type State int

const (
	Empty State = iota
	Loading
	Attached
	// Disposing is only observable while a teardown is running.
	Disposing
)

var stateNames = [...]string{"empty", "loading", "attached", "disposing"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Stage is where an attached model is shown.
type Stage interface {
	Attach(n *quarkgl.Node)
	Detach(n *quarkgl.Node)
}

// Executor runs events on the panel execution context. *kernel.Loop
// satisfies it.
type Executor interface {
	Send(ctx context.Context, ev kernel.Event) error
}

type Config struct {
	Loader Loader
	Stage  Stage
	Exec   Executor
	// AssetsBase is the directory or URL holding <variant>.urdf files.
	AssetsBase string
	// Watch reloads an attached model whose local description changes on
	// disk. Descriptions fetched over http(s) are not watched.
	Watch   bool
	Log     logging.Log
	Metrics *metrics.Manager
	// OnChange is called on the execution context after every state change.
	OnChange func(State)
}

// Lifecycle loads, attaches and disposes the model for the selected variant.
//
// Every method except the load goroutine's body runs on the panel execution
// context; there is no locking.
type Lifecycle struct {
	cfg Config
	log logging.Log

	ctx    context.Context
	cancel context.CancelFunc

	state   State
	variant options.Variant
	model   *urdf.Model
	err     error

	// gen identifies the newest load; completions carrying an older value
	// are stale.
	gen        uint64
	cancelLoad context.CancelFunc
	closed     bool

	watch *file.File
}

func NewLifecycle(cfg Config) *Lifecycle {
	l := &Lifecycle{cfg: cfg, log: cfg.Log}
	if l.log == nil {
		l.log = logging.Discard()
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l
}

func (l *Lifecycle) State() State              { return l.state }
func (l *Lifecycle) Variant() options.Variant { return l.variant }
func (l *Lifecycle) Generation() uint64       { return l.gen }

// Err returns the error of the last failed load, cleared by the next
// successful one.
func (l *Lifecycle) Err() error { return l.err }

// Model returns the attached model, or nil. The caller must not keep it
// beyond the current event.
func (l *Lifecycle) Model() *urdf.Model {
	if l.state != Attached {
		return nil
	}
	return l.model
}

// Select shows variant v. It is a no-op when v is already loading or
// attached.
func (l *Lifecycle) Select(v options.Variant) {
	if l.closed {
		return
	}
	if v == l.variant && (l.state == Loading || l.state == Attached) {
		return
	}
	l.start(v)
}

// Reload loads the current variant again, replacing the attached model.
// Cached bytes for its description are dropped first.
func (l *Lifecycle) Reload() {
	if l.closed || l.variant == "" {
		return
	}
	if inv, ok := l.cfg.Loader.(Invalidator); ok {
		inv.Invalidate(l.variant.Locator(l.cfg.AssetsBase))
	}
	l.start(l.variant)
}

func (l *Lifecycle) start(v options.Variant) {
	l.gen++
	gen := l.gen
	if l.cancelLoad != nil {
		l.cancelLoad()
		l.cancelLoad = nil
	}
	l.unwatch()
	l.teardown()

	l.variant = v
	locator := v.Locator(l.cfg.AssetsBase)
	loadCtx, cancel := context.WithCancel(l.ctx)
	l.cancelLoad = cancel
	l.setState(Loading)
	l.cfg.Metrics.RecordModelLoad(string(v))
	l.log.Infof("loading %s from %s", v.Label(), locator)

	began := time.Now()
	go func() {
		m, err := l.cfg.Loader.Load(loadCtx, locator)
		l.cfg.Metrics.ObserveLoadDuration(time.Since(began).Seconds())
		ev := func() { l.complete(gen, v, locator, m, err) }
		if sendErr := l.cfg.Exec.Send(l.ctx, ev); sendErr != nil && m != nil {
			// Nobody will run the completion.
			m.Dispose()
		}
	}()
}

func (l *Lifecycle) complete(gen uint64, v options.Variant, locator string, m *urdf.Model, err error) {
	if l.closed || gen != l.gen {
		n := 0
		if m != nil {
			n = m.Dispose()
		}
		l.cfg.Metrics.RecordStaleCompletion()
		l.log.Debugf("discarding stale %s load (gen %d, current %d, %d resources released)", v, gen, l.gen, n)
		return
	}
	if l.cancelLoad != nil {
		l.cancelLoad()
		l.cancelLoad = nil
	}
	if err != nil {
		if m != nil {
			m.Dispose()
		}
		l.err = fmt.Errorf("load %s: %w", locator, err)
		l.cfg.Metrics.RecordModelFailure(string(v))
		l.log.Errorf("model %s: %v", v, l.err)
		l.setState(Empty)
		// A fixed file on disk brings the model back.
		l.watchDescription(gen, locator)
		return
	}
	m.Root.Transform = quarkgl.Mat4RotateX(-math.Pi / 2)
	l.model = m
	l.err = nil
	if l.cfg.Stage != nil {
		l.cfg.Stage.Attach(m.Root)
	}
	l.setState(Attached)
	l.log.Infof("attached %s (%d joints)", v.Label(), len(m.JointNames()))
	l.watchDescription(gen, locator)
}

// teardown detaches and disposes the attached model, if any.
func (l *Lifecycle) teardown() {
	if l.model == nil {
		if l.state != Empty {
			l.setState(Empty)
		}
		return
	}
	m := l.model
	l.setState(Disposing)
	if l.cfg.Stage != nil {
		l.cfg.Stage.Detach(m.Root)
	}
	n := m.Dispose()
	l.model = nil
	l.log.Debugf("disposed %s (%d resources)", l.variant, n)
	l.setState(Empty)
}

// Close cancels any load in flight and disposes the attached model.
// Completions arriving later are discarded. Close is idempotent.
func (l *Lifecycle) Close() {
	if l.closed {
		return
	}
	l.closed = true
	if l.cancelLoad != nil {
		l.cancelLoad()
		l.cancelLoad = nil
	}
	l.unwatch()
	l.teardown()
	l.cancel()
}

func (l *Lifecycle) setState(s State) {
	l.state = s
	l.cfg.Metrics.SetModelState(int(s))
	if l.cfg.OnChange != nil {
		l.cfg.OnChange(s)
	}
}
