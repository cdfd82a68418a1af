package model

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"urdfpanel/kernel"
	"urdfpanel/panel/metrics"
	"urdfpanel/panel/options"
	"urdfpanel/panel/quarkgl"
	"urdfpanel/panel/urdf"
)

const assets = "../../assets/ur_description/urdf"

const tinyRobot = `<robot name="tiny">
  <link name="base"><visual><geometry><box size="0.1 0.1 0.1"/></geometry></visual></link>
  <link name="arm"><visual><geometry><cylinder radius="0.02" length="0.3"/></geometry></visual></link>
  <joint name="j1" type="revolute">
    <parent link="base"/><child link="arm"/>
    <axis xyz="0 0 1"/><limit lower="-3" upper="3"/>
  </joint>
</robot>`

func tinyModel(t *testing.T) *urdf.Model {
	t.Helper()
	robot, err := urdf.Parse(strings.NewReader(tinyRobot))
	require.NoError(t, err)
	m, err := urdf.Build(robot, urdf.BuildOptions{})
	require.NoError(t, err)
	return m
}

type loadResult struct {
	m   *urdf.Model
	err error
}

// gatedLoader blocks every load until the test releases it.
type gatedLoader struct {
	mu      sync.Mutex
	calls   []string
	pending map[string]chan loadResult
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{pending: map[string]chan loadResult{}}
}

func (g *gatedLoader) gate(locator string) chan loadResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.pending[locator]
	if !ok {
		ch = make(chan loadResult, 1)
		g.pending[locator] = ch
	}
	return ch
}

func (g *gatedLoader) Load(ctx context.Context, locator string) (*urdf.Model, error) {
	g.mu.Lock()
	g.calls = append(g.calls, locator)
	g.mu.Unlock()
	r := <-g.gate(locator)
	return r.m, r.err
}

func (g *gatedLoader) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type fakeStage struct {
	root *quarkgl.Node
}

func newFakeStage() *fakeStage { return &fakeStage{root: quarkgl.NewNode("stage")} }

func (s *fakeStage) Attach(n *quarkgl.Node) { s.root.Add(n) }
func (s *fakeStage) Detach(n *quarkgl.Node) { s.root.Remove(n) }

type fixture struct {
	loop    *kernel.Loop
	loader  *gatedLoader
	stage   *fakeStage
	metrics *metrics.Manager
	lc      *Lifecycle
	states  []State
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		loop:    kernel.NewLoop(),
		loader:  newGatedLoader(),
		stage:   newFakeStage(),
		metrics: metrics.NewManager(),
	}
	f.lc = NewLifecycle(Config{
		Loader:     f.loader,
		Stage:      f.stage,
		Exec:       f.loop,
		AssetsBase: "assets",
		Metrics:    f.metrics,
		OnChange:   func(s State) { f.states = append(f.states, s) },
	})
	t.Cleanup(f.lc.Close)
	return f
}

func scrape(t *testing.T, m *metrics.Manager) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

// settle drains the loop until n completions have run.
func (f *fixture) settle(t *testing.T, n int) {
	t.Helper()
	ran := 0
	require.Eventually(t, func() bool {
		ran += f.loop.Drain(0)
		return ran >= n
	}, 2*time.Second, time.Millisecond)
}

func TestSelectAttachesOnSuccess(t *testing.T) {
	f := newFixture(t)
	f.lc.Select(options.UR16e)
	require.Equal(t, Loading, f.lc.State())
	require.Nil(t, f.lc.Model())

	m := tinyModel(t)
	f.loader.gate("assets/ur16e.urdf") <- loadResult{m: m}
	f.settle(t, 1)

	require.Equal(t, Attached, f.lc.State())
	require.Same(t, m, f.lc.Model())
	require.Same(t, f.stage.root, m.Root.Parent())
	require.InDelta(t, 0, m.Root.Transform[5], 1e-6, "rotated upright")
	require.Equal(t, []State{Loading, Attached}, f.states)

	// Selecting the same variant again does nothing.
	f.lc.Select(options.UR16e)
	require.Len(t, f.loader.Calls(), 1)
}

func TestSwitchVariantDisposesBeforeLoading(t *testing.T) {
	f := newFixture(t)
	f.lc.Select(options.UR16e)
	old := tinyModel(t)
	f.loader.gate("assets/ur16e.urdf") <- loadResult{m: old}
	f.settle(t, 1)

	f.lc.Select(options.UR10e)
	require.Equal(t, Loading, f.lc.State())
	require.Zero(t, quarkgl.LiveResources(old.Root), "old model disposed")
	require.Nil(t, old.Root.Parent())
	require.Empty(t, f.stage.root.Children())
	require.Contains(t, f.states, Disposing)

	next := tinyModel(t)
	f.loader.gate("assets/ur10e.urdf") <- loadResult{m: next}
	f.settle(t, 1)
	require.Equal(t, Attached, f.lc.State())
	require.Equal(t, options.UR10e, f.lc.Variant())
	require.Same(t, next, f.lc.Model())
	require.Eventually(t, func() bool {
		return len(f.loader.Calls()) == 2
	}, time.Second, time.Millisecond)
	require.Equal(t, []string{"assets/ur16e.urdf", "assets/ur10e.urdf"}, f.loader.Calls())
}

func TestStaleCompletionNeverAttaches(t *testing.T) {
	f := newFixture(t)
	f.lc.Select(options.UR16e)
	f.lc.Select(options.UR10e)
	require.Equal(t, uint64(2), f.lc.Generation())

	fresh := tinyModel(t)
	f.loader.gate("assets/ur10e.urdf") <- loadResult{m: fresh}
	f.settle(t, 1)
	require.Same(t, fresh, f.lc.Model())

	stale := tinyModel(t)
	f.loader.gate("assets/ur16e.urdf") <- loadResult{m: stale}
	f.settle(t, 1)

	require.Same(t, fresh, f.lc.Model())
	require.Nil(t, stale.Root.Parent())
	require.Zero(t, quarkgl.LiveResources(stale.Root))
	require.Len(t, f.stage.root.Children(), 1)
	require.Contains(t, scrape(t, f.metrics), "urdfpanel_model_stale_completions_total 1")
}

func TestLoadFailureLeavesEmpty(t *testing.T) {
	f := newFixture(t)
	f.lc.Select(options.UR10e)
	f.loader.gate("assets/ur10e.urdf") <- loadResult{err: os.ErrNotExist}
	f.settle(t, 1)

	require.Equal(t, Empty, f.lc.State())
	require.Nil(t, f.lc.Model())
	require.ErrorIs(t, f.lc.Err(), os.ErrNotExist)
	require.Contains(t, f.lc.Err().Error(), "load assets/ur10e.urdf")
	require.Empty(t, f.stage.root.Children())

	require.Contains(t, scrape(t, f.metrics), `urdfpanel_model_load_failures_total{variant="ur10e"} 1`)

	// A failed variant can be selected again.
	f.lc.Select(options.UR10e)
	require.Equal(t, Loading, f.lc.State())
	f.loader.gate("assets/ur10e.urdf") <- loadResult{err: errors.New("again")}
	f.settle(t, 1)
	require.Equal(t, Empty, f.lc.State())
}

func TestReloadReplacesModel(t *testing.T) {
	f := newFixture(t)
	f.lc.Reload()
	require.Equal(t, Empty, f.lc.State(), "nothing selected yet")

	f.lc.Select(options.UR16e)
	first := tinyModel(t)
	f.loader.gate("assets/ur16e.urdf") <- loadResult{m: first}
	f.settle(t, 1)

	f.lc.Reload()
	require.Zero(t, quarkgl.LiveResources(first.Root))
	second := tinyModel(t)
	f.loader.gate("assets/ur16e.urdf") <- loadResult{m: second}
	f.settle(t, 1)
	require.Same(t, second, f.lc.Model())
}

func TestCloseDiscardsInFlightLoad(t *testing.T) {
	f := newFixture(t)
	f.lc.Select(options.UR16e)
	f.lc.Close()
	f.lc.Close()

	m := tinyModel(t)
	f.loader.gate("assets/ur16e.urdf") <- loadResult{m: m}
	f.settle(t, 1)
	require.Nil(t, f.lc.Model())
	require.Zero(t, quarkgl.LiveResources(m.Root))

	f.lc.Select(options.UR10e)
	require.Len(t, f.loader.Calls(), 1)
}

func TestFetchLoaderReadsAssets(t *testing.T) {
	l := NewFetchLoader(FetchOptions{})
	defer l.Close()
	m, err := l.Load(context.Background(), options.UR10e.Locator(assets))
	require.NoError(t, err)
	require.Equal(t, "ur10e", m.Name)
	_, ok := m.Joint("shoulder_pan_joint")
	require.True(t, ok)
	require.NotNil(t, m.Root.Find("forearm_link/skeleton"))

	_, err = l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.urdf"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetchLoaderCancelled(t *testing.T) {
	l := NewFetchLoader(FetchOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Load(ctx, options.UR16e.Locator(assets))
	require.ErrorIs(t, err, context.Canceled)
}

const meshRobot = `<robot name="meshy">
  <link name="a"><visual><geometry><mesh filename="package://meshy/meshes/a.stl"/></geometry></visual></link>
  <link name="b"><visual><geometry><mesh filename="b.dae"/></geometry></visual></link>
  <joint name="fix" type="fixed"><parent link="a"/><child link="b"/></joint>
</robot>`

const asciiSTL = `solid a
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 1 0 0
    vertex 0 1 0
  endloop
endfacet
endsolid a
`

func TestFetchLoaderResolvesFileMeshes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "urdf"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "meshes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "urdf", "meshy.urdf"), []byte(meshRobot), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meshes", "a.stl"), []byte(asciiSTL), 0o644))

	l := NewFetchLoader(FetchOptions{})
	m, err := l.Load(context.Background(), filepath.Join(dir, "urdf", "meshy.urdf"))
	require.NoError(t, err)
	vis := m.Links["a"].Children()
	require.NotEmpty(t, vis)
	require.Len(t, vis[0].Geometry.Positions, 3)
	// The .dae visual is skipped.
	for _, c := range m.Links["b"].Children() {
		require.NotEqual(t, quarkgl.PrimitiveTriangles, c.Geometry.Primitive)
	}
}

func TestFetchLoaderHTTPWithCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/pkg/urdf/meshy.urdf":
			w.Write([]byte(meshRobot))
		case "/pkg/meshes/a.stl":
			w.Write([]byte(asciiSTL))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewFetchLoader(FetchOptions{CacheTTL: time.Minute, HTTPClient: srv.Client()})
	defer l.Close()
	for i := 0; i < 2; i++ {
		m, err := l.Load(context.Background(), srv.URL+"/pkg/urdf/meshy.urdf")
		require.NoError(t, err)
		require.Len(t, m.Links["a"].Children()[0].Geometry.Positions, 3)
	}
	// Description and one mesh; b.dae is rejected before any request.
	require.Equal(t, int32(2), hits.Load())

	l.Invalidate(srv.URL + "/pkg/urdf/meshy.urdf")
	_, err := l.Load(context.Background(), srv.URL+"/pkg/urdf/meshy.urdf")
	require.NoError(t, err)
	require.Equal(t, int32(4), hits.Load(), "description and mesh fetched again")

	_, err = l.Load(context.Background(), srv.URL+"/pkg/urdf/nope.urdf")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func writeTiny(t *testing.T, path, name string) {
	t.Helper()
	body := strings.Replace(tinyRobot, `name="tiny"`, `name="`+name+`"`, 1)
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(body), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestFetchLoaderInvalidateRereadsFile(t *testing.T) {
	loc := filepath.Join(t.TempDir(), "tiny.urdf")
	writeTiny(t, loc, "tiny")

	l := NewFetchLoader(FetchOptions{CacheTTL: 5 * time.Minute})
	defer l.Close()
	m, err := l.Load(context.Background(), loc)
	require.NoError(t, err)
	require.Equal(t, "tiny", m.Name)

	writeTiny(t, loc, "edited")
	m, err = l.Load(context.Background(), loc)
	require.NoError(t, err)
	require.Equal(t, "tiny", m.Name, "served from cache")

	l.Invalidate(loc)
	m, err = l.Load(context.Background(), loc)
	require.NoError(t, err)
	require.Equal(t, "edited", m.Name)
}

func TestPackageRoot(t *testing.T) {
	require.Equal(t, filepath.Join("a", "pkg")+string(filepath.Separator),
		packageRoot(filepath.Join("a", "pkg", "urdf", "x.urdf")))
	require.Equal(t, "", packageRoot("x.urdf"))
	require.Equal(t, "http://h/pkg/", packageRoot("http://h/pkg/urdf/x.urdf?v=1"))
	require.Equal(t, "http://h/", packageRoot("http://h/x.urdf"))
}

// forgetfulLoader records invalidations on top of a gated loader.
type forgetfulLoader struct {
	*gatedLoader
	forgot []string
}

func (f *forgetfulLoader) Invalidate(locator string) { f.forgot = append(f.forgot, locator) }

func TestReloadInvalidatesCachedDescription(t *testing.T) {
	loader := &forgetfulLoader{gatedLoader: newGatedLoader()}
	loop := kernel.NewLoop()
	lc := NewLifecycle(Config{Loader: loader, Exec: loop, AssetsBase: "assets"})
	t.Cleanup(lc.Close)

	lc.Select(options.UR16e)
	require.Empty(t, loader.forgot, "first load reads whatever is cached")
	lc.Reload()
	require.Equal(t, []string{"assets/ur16e.urdf"}, loader.forgot)

	gate := loader.gate("assets/ur16e.urdf")
	gate <- loadResult{err: errors.New("first")}
	gate <- loadResult{err: errors.New("second")}
}

func TestWatchReloadsEditedDescription(t *testing.T) {
	base := t.TempDir()
	loc := options.UR16e.Locator(base)
	writeTiny(t, loc, "tiny")

	loader := NewFetchLoader(FetchOptions{CacheTTL: 5 * time.Minute})
	defer loader.Close()
	loop := kernel.NewLoop()
	lc := NewLifecycle(Config{Loader: loader, Exec: loop, AssetsBase: base, Watch: true})
	t.Cleanup(lc.Close)

	attachedAs := func(name string) func() bool {
		return func() bool {
			loop.Drain(0)
			m := lc.Model()
			return m != nil && m.Name == name
		}
	}
	lc.Select(options.UR16e)
	require.Eventually(t, attachedAs("tiny"), 2*time.Second, time.Millisecond)
	gen := lc.Generation()

	writeTiny(t, loc, "edited")
	require.Eventually(t, attachedAs("edited"), 5*time.Second, 5*time.Millisecond)
	require.Greater(t, lc.Generation(), gen)
}

func TestWatchDisabledKeepsModel(t *testing.T) {
	base := t.TempDir()
	loc := options.UR16e.Locator(base)
	writeTiny(t, loc, "tiny")

	loop := kernel.NewLoop()
	lc := NewLifecycle(Config{Loader: NewFetchLoader(FetchOptions{}), Exec: loop, AssetsBase: base})
	t.Cleanup(lc.Close)
	lc.Select(options.UR16e)
	require.Eventually(t, func() bool {
		loop.Drain(0)
		return lc.State() == Attached
	}, 2*time.Second, time.Millisecond)
	gen := lc.Generation()

	writeTiny(t, loc, "edited")
	time.Sleep(50 * time.Millisecond)
	loop.Drain(0)
	require.Equal(t, gen, lc.Generation())
	require.Equal(t, "tiny", lc.Model().Name)
}

func TestFetchLoaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	l := NewFetchLoader(FetchOptions{Timeout: 20 * time.Millisecond, HTTPClient: srv.Client()})
	_, err := l.Load(context.Background(), srv.URL+"/slow.urdf")
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestResolve(t *testing.T) {
	p, err := resolve("/srv/ur/urdf/ur10e.urdf", "package://ur_description/meshes/base.stl")
	require.NoError(t, err)
	require.Equal(t, filepath.FromSlash("/srv/ur/meshes/base.stl"), p)

	p, err = resolve("/srv/ur/urdf/ur10e.urdf", "meshes/base.stl")
	require.NoError(t, err)
	require.Equal(t, filepath.FromSlash("/srv/ur/urdf/meshes/base.stl"), p)

	p, err = resolve("https://example.com/ur/urdf/ur10e.urdf", "package://ur_description/meshes/base.stl")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/ur/meshes/base.stl", p)
}
