package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"urdfpanel/hal"
	"urdfpanel/internal/logging"
	"urdfpanel/panel/joints"
	"urdfpanel/panel/quarkgl"
	"urdfpanel/panel/urdf"
)

const arm = `<robot name="arm">
  <link name="base"/><link name="upper"/>
  <joint name="shoulder_pan_joint" type="revolute">
    <parent link="base"/><child link="upper"/>
    <axis xyz="0 0 1"/><limit lower="-6" upper="6"/>
  </joint>
</robot>`

type fakeView struct {
	cam     quarkgl.Camera
	updates int
}

func (v *fakeView) Update()                 { v.updates++ }
func (v *fakeView) Camera() *quarkgl.Camera { return &v.cam }

type fakeSurface struct {
	renders, presents int
	renderErr         error
	panicWith         any
	calls             []string
}

func (s *fakeSurface) Render(*quarkgl.Camera) error {
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	s.renders++
	s.calls = append(s.calls, "render")
	return s.renderErr
}

func (s *fakeSurface) Present() error {
	s.presents++
	s.calls = append(s.calls, "present")
	return nil
}

type fixture struct {
	frames  *hal.ManualFrames
	state   *joints.State
	model   *urdf.Model
	view    *fakeView
	surface *fakeSurface
	logs    *bytes.Buffer
	loop    *Loop
}

func newFixture(t *testing.T) *fixture {
	robot, err := urdf.Parse(strings.NewReader(arm))
	require.NoError(t, err)
	m, err := urdf.Build(robot, urdf.BuildOptions{})
	require.NoError(t, err)

	f := &fixture{
		frames:  hal.NewFrames(),
		state:   joints.NewState([]string{"shoulder_pan_joint", "elbow_joint"}),
		model:   m,
		view:    &fakeView{},
		surface: &fakeSurface{},
		logs:    &bytes.Buffer{},
	}
	root := logging.New(hal.NewWriterLogger(f.logs), logging.LevelDebug)
	f.loop = New(Config{
		Frames:  f.frames,
		State:   f.state,
		Model:   func() *urdf.Model { return f.model },
		View:    f.view,
		Surface: f.surface,
		Overlay: func() { f.surface.calls = append(f.surface.calls, "overlay") },
		Log:     root.Get("render"),
	})
	return f
}

func TestTickPushesStateAndRenders(t *testing.T) {
	f := newFixture(t)
	f.state.Set("shoulder_pan_joint", 1.25)
	f.loop.Start()
	require.Equal(t, 1, f.frames.Pending())

	require.Equal(t, 1, f.frames.Run())
	j, _ := f.model.Joint("shoulder_pan_joint")
	require.InDelta(t, 1.25, j.Value(), 1e-9)
	require.Equal(t, 1, f.view.updates)
	require.Equal(t, []string{"render", "overlay", "present"}, f.surface.calls)
	require.Equal(t, 1, f.frames.Pending(), "next frame requested")

	f.state.Set("shoulder_pan_joint", -0.5)
	f.frames.Run()
	require.InDelta(t, -0.5, j.Value(), 1e-9)
	require.Equal(t, uint64(2), f.loop.Ticks())
}

func TestNoModelStillRenders(t *testing.T) {
	f := newFixture(t)
	f.model = nil
	f.loop.Start()
	f.frames.Run()
	require.Equal(t, 1, f.surface.renders)
	require.Equal(t, 1, f.surface.presents)
}

func TestStopCancelsPendingFrame(t *testing.T) {
	f := newFixture(t)
	f.loop.Start()
	f.loop.Start()
	require.Equal(t, 1, f.frames.Pending())
	f.frames.Run()

	f.loop.Stop()
	require.Zero(t, f.frames.Pending())
	require.Zero(t, f.frames.Run())
	require.Equal(t, 1, f.surface.renders)
	require.False(t, f.loop.Running())
	f.loop.Stop()
}

func TestPanicIsRecoveredAndLoggedOnce(t *testing.T) {
	f := newFixture(t)
	f.surface.panicWith = "boom"
	f.loop.Start()
	for i := 0; i < 3; i++ {
		require.NotPanics(t, func() { f.frames.Run() })
	}
	require.Equal(t, 1, f.frames.Pending(), "loop keeps running")
	require.Equal(t, 1, strings.Count(f.logs.String(), "panic in frame: boom"))

	f.surface.panicWith = nil
	f.frames.Run()
	require.Equal(t, 1, f.surface.presents)
}

func TestRenderErrorSkipsPresent(t *testing.T) {
	f := newFixture(t)
	f.surface.renderErr = errors.New("no surface")
	f.loop.Start()
	f.frames.Run()
	f.frames.Run()
	require.Zero(t, f.surface.presents)
	require.Equal(t, 1, strings.Count(f.logs.String(), "render: no surface"))
}
