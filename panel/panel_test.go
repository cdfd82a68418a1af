package panel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"urdfpanel/hal"
	"urdfpanel/kernel"
	"urdfpanel/panel/joints"
	"urdfpanel/panel/model"
	"urdfpanel/panel/options"
	"urdfpanel/panel/quarkgl"
	"urdfpanel/panel/telemetry"
	"urdfpanel/panel/urdf"
)

const assets = "../assets/ur_description/urdf"

// countingLoader records locators and delegates to the file loader.
type countingLoader struct {
	mu    sync.Mutex
	calls []string
	inner *model.FetchLoader
}

func (c *countingLoader) Load(ctx context.Context, locator string) (*urdf.Model, error) {
	c.mu.Lock()
	c.calls = append(c.calls, locator)
	c.mu.Unlock()
	return c.inner.Load(ctx, locator)
}

func (c *countingLoader) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fixture struct {
	frames *hal.ManualFrames
	exec   *kernel.Loop
	loader *countingLoader
	fb     hal.Framebuffer
	panel  *Panel
	saved  []options.Options
}

func newFixture(t *testing.T, cfg joints.Config) *fixture {
	f := &fixture{
		frames: hal.NewFrames(),
		exec:   kernel.NewLoop(),
		loader: &countingLoader{inner: model.NewFetchLoader(model.FetchOptions{})},
		fb:     hal.NewFramebuffer(1, 1),
	}
	p, err := New(Config{
		Frames:     f.frames,
		Exec:       f.exec,
		Loader:     f.loader,
		Joints:     cfg,
		AssetsBase: assets,
		Persist: func(o options.Options) error {
			f.saved = append(f.saved, o)
			return nil
		},
	})
	require.NoError(t, err)
	f.panel = p
	t.Cleanup(p.Unmount)
	return f
}

// waitAttached services the execution context until a model is attached.
func (f *fixture) waitAttached(t *testing.T) *urdf.Model {
	t.Helper()
	require.Eventually(t, func() bool {
		f.exec.Drain(0)
		return f.panel.ModelState() == model.Attached
	}, 5*time.Second, time.Millisecond)
	return f.panel.Model()
}

func jointValue(t *testing.T, m *urdf.Model, name string) float64 {
	t.Helper()
	j, ok := m.Joint(name)
	require.True(t, ok, name)
	return j.Value()
}

func TestNewRejectsBadJointTable(t *testing.T) {
	_, err := New(Config{Joints: joints.Config{{Source: "a", Joint: "j", Sign: 3, Scale: 1}}})
	require.ErrorIs(t, err, joints.ErrInvalidConfig)
}

func TestMountLoadsDefaultAndDrivesJoints(t *testing.T) {
	cfg := joints.DefaultConfig()
	cfg[1].Sign, cfg[1].Scale = -1, 2
	f := newFixture(t, cfg)
	require.NoError(t, f.panel.Mount(f.fb, 160, 120, options.Options{}))
	require.ErrorIs(t, f.panel.Mount(f.fb, 160, 120, options.Options{}), ErrMounted)

	m := f.waitAttached(t)
	require.Equal(t, "ur16e", m.Name)
	require.Equal(t, []string{options.UR16e.Locator(assets)}, f.loader.Calls())

	f.panel.OnFrame(telemetry.Frame{Columns: []telemetry.Column{
		telemetry.NumberColumn("base", 0.1, 0.3),
		telemetry.NumberColumn("shoulder", 0.25),
		{Name: "elbow", Kind: telemetry.KindString, Values: []any{"x"}},
		telemetry.NumberColumn("unmapped", 9),
	}})
	f.frames.Run()
	require.InDelta(t, 0.3, jointValue(t, m, "shoulder_pan_joint"), 1e-9)
	require.InDelta(t, -0.5, jointValue(t, m, "shoulder_lift_joint"), 1e-9)
	require.InDelta(t, 0, jointValue(t, m, "elbow_joint"), 1e-9)
}

func TestResizeOnlyResizes(t *testing.T) {
	f := newFixture(t, joints.DefaultConfig())
	require.NoError(t, f.panel.Mount(f.fb, 300, 200, options.Options{Model: options.UR16e}))
	f.waitAttached(t)
	f.panel.OnFrame(telemetry.Frame{Columns: []telemetry.Column{telemetry.NumberColumn("elbow", 1.1)}})
	before := f.panel.State().Snapshot()
	gen := len(f.loader.Calls())

	f.panel.OnResize(600, 400)
	f.frames.Run()
	f.exec.Drain(0)

	require.InDelta(t, 1.5, f.panel.Viewport().Aspect(), 1e-6)
	require.Equal(t, 600, f.fb.Width())
	require.Equal(t, 400, f.fb.Height())
	require.Equal(t, before, f.panel.State().Snapshot())
	require.Len(t, f.loader.Calls(), gen, "no reload")
	require.Equal(t, model.Attached, f.panel.ModelState())
}

func TestVariantSwitch(t *testing.T) {
	f := newFixture(t, joints.DefaultConfig())
	require.NoError(t, f.panel.Mount(f.fb, 200, 150, options.Options{Model: options.UR16e}))
	old := f.waitAttached(t)
	f.panel.OnFrame(telemetry.Frame{Columns: []telemetry.Column{
		telemetry.NumberColumn("base", 0.7),
		telemetry.NumberColumn("wrist2", -1.2),
	}})

	f.panel.OnOptions(options.Options{Model: options.UR10e})
	require.Zero(t, quarkgl.LiveResources(old.Root), "old model disposed before load")
	require.Nil(t, f.panel.Model())
	// Loads start on their own goroutine.
	want := options.UR10e.Locator(assets)
	require.Eventually(t, func() bool {
		calls := f.loader.Calls()
		return len(calls) > 0 && calls[len(calls)-1] == want
	}, 5*time.Second, time.Millisecond)

	next := f.waitAttached(t)
	require.Equal(t, "ur10e", next.Name)
	require.Same(t, f.panel.Scene().Root(), next.Root.Parent())

	f.frames.Run()
	require.InDelta(t, 0.7, jointValue(t, next, "shoulder_pan_joint"), 1e-9)
	require.InDelta(t, -1.2, jointValue(t, next, "wrist_2_joint"), 1e-9)

	// Same variant again: nothing to do.
	n := len(f.loader.Calls())
	f.panel.OnOptions(options.Options{Model: options.UR10e})
	require.Len(t, f.loader.Calls(), n)
}

func TestSteadyFramesDoNotAllocate(t *testing.T) {
	f := newFixture(t, joints.DefaultConfig())
	require.NoError(t, f.panel.Mount(f.fb, 160, 120, options.Options{}))
	f.waitAttached(t)
	f.panel.OnFrame(telemetry.Frame{Columns: []telemetry.Column{telemetry.NumberColumn("elbow", 0.3)}})
	f.frames.Run()

	allocs := testing.AllocsPerRun(20, func() { f.frames.Run() })
	require.Zero(t, allocs, "overlay visible")

	f.panel.HandleKey(hal.KeyEvent{Rune: 'h', Press: true})
	allocs = testing.AllocsPerRun(20, func() { f.frames.Run() })
	require.Zero(t, allocs, "overlay hidden")
}

func TestKeysSelectAndPersist(t *testing.T) {
	f := newFixture(t, joints.DefaultConfig())
	require.NoError(t, f.panel.Mount(f.fb, 200, 150, options.Options{}))
	f.waitAttached(t)

	f.panel.HandleKey(hal.KeyEvent{Rune: '2', Press: true})
	require.Equal(t, options.UR10e, f.panel.Options().Model)
	require.Equal(t, []options.Options{{Model: options.UR10e}}, f.saved)
	m := f.waitAttached(t)
	require.Equal(t, "ur10e", m.Name)

	f.panel.HandleKey(hal.KeyEvent{Rune: 'r', Press: true})
	require.Equal(t, model.Loading, f.panel.ModelState())
	f.waitAttached(t)
	require.Len(t, f.loader.Calls(), 3)
}

func TestUnmountReleasesEverything(t *testing.T) {
	f := newFixture(t, joints.DefaultConfig())
	require.NoError(t, f.panel.Mount(f.fb, 64, 48, options.Options{}))
	m := f.waitAttached(t)
	f.frames.Run()

	f.panel.Unmount()
	require.Zero(t, f.panel.Scene().LiveResources())
	require.Zero(t, quarkgl.LiveResources(m.Root))
	require.Zero(t, f.frames.Pending())
	require.NotPanics(t, f.panel.Unmount)

	// Events after unmount are ignored.
	f.panel.OnFrame(telemetry.Frame{Columns: []telemetry.Column{telemetry.NumberColumn("base", 1)}})
	f.panel.OnResize(10, 10)
	require.Equal(t, 64, f.fb.Width())
}
