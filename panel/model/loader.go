// Package model owns the lifecycle of the kinematic model the panel shows:
// fetching descriptions, building them, and swapping them in and out of the
// scene.
package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"urdfpanel/internal/logging"
	"urdfpanel/panel/quarkgl"
	"urdfpanel/panel/urdf"
)

var ErrUnsupportedMesh = errors.New("model: unsupported mesh format")

// maxFetchSize bounds a single description or mesh download.
const maxFetchSize = 64 << 20

// Loader builds a model from a locator. Implementations must honor ctx.
type Loader interface {
	Load(ctx context.Context, locator string) (*urdf.Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, locator string) (*urdf.Model, error)

func (f LoaderFunc) Load(ctx context.Context, locator string) (*urdf.Model, error) {
	return f(ctx, locator)
}

type FetchOptions struct {
	// CacheTTL keeps fetched bytes for reuse; 0 disables caching.
	CacheTTL time.Duration
	// Timeout bounds a whole load; 0 means no timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Log        logging.Log
}

// FetchLoader reads descriptions and meshes from files or http(s) URLs.
type FetchLoader struct {
	client  *http.Client
	cache   *ttlcache.Cache[string, []byte]
	timeout time.Duration
	log     logging.Log
}

func NewFetchLoader(opts FetchOptions) *FetchLoader {
	l := &FetchLoader{client: opts.HTTPClient, timeout: opts.Timeout, log: opts.Log}
	if l.client == nil {
		l.client = http.DefaultClient
	}
	if l.log == nil {
		l.log = logging.Discard()
	}
	if opts.CacheTTL > 0 {
		l.cache = ttlcache.New[string, []byte](
			ttlcache.WithTTL[string, []byte](opts.CacheTTL),
			ttlcache.WithCapacity[string, []byte](256),
		)
		go l.cache.Start()
	}
	return l
}

// Close stops the cache janitor.
func (l *FetchLoader) Close() {
	if l.cache != nil {
		l.cache.Stop()
	}
}

// Invalidate drops the cached description at locator and every cached
// mesh under its package root.
func (l *FetchLoader) Invalidate(locator string) {
	if l.cache == nil {
		return
	}
	l.cache.Delete(locator)
	root := packageRoot(locator)
	for _, k := range l.cache.Keys() {
		if strings.HasPrefix(k, root) {
			l.cache.Delete(k)
		}
	}
}

// Load fetches, parses and builds the description at locator. Meshes are
// resolved relative to it; meshes that cannot be loaded are skipped.
func (l *FetchLoader) Load(ctx context.Context, locator string) (*urdf.Model, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	data, err := l.fetch(ctx, locator)
	if err != nil {
		return nil, err
	}
	robot, err := urdf.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	m, err := urdf.Build(robot, urdf.BuildOptions{
		Meshes:   l.meshes(ctx, locator),
		Skeleton: true,
		Skipped: func(link string, err error) {
			l.log.Debugf("%s: skip visual of %s: %v", locator, link, err)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		m.Dispose()
		return nil, err
	}
	return m, nil
}

func (l *FetchLoader) meshes(ctx context.Context, locator string) urdf.MeshFunc {
	return func(filename string) (*quarkgl.Geometry, error) {
		loc, err := resolve(locator, filename)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(path.Ext(loc), ".stl") {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMesh, path.Ext(loc))
		}
		data, err := l.fetch(ctx, loc)
		if err != nil {
			return nil, err
		}
		return urdf.ParseSTL(data)
	}
}

func (l *FetchLoader) fetch(ctx context.Context, loc string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.cache != nil {
		if item := l.cache.Get(loc); item != nil {
			return item.Value(), nil
		}
	}
	var data []byte
	var err error
	if isURL(loc) {
		data, err = l.get(ctx, loc)
	} else {
		data, err = os.ReadFile(loc)
	}
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.Set(loc, data, ttlcache.DefaultTTL)
	}
	return data, nil
}

func (l *FetchLoader) get(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", loc, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFetchSize {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", loc, maxFetchSize)
	}
	return data, nil
}

func isURL(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

// packageRoot is the prefix shared by locator and the meshes it references.
// An empty result matches every key.
func packageRoot(locator string) string {
	if isURL(locator) {
		u, err := url.Parse(locator)
		if err != nil {
			return locator
		}
		u.Path = path.Dir(path.Dir(u.Path))
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		u.RawQuery, u.Fragment = "", ""
		return u.String()
	}
	dir := filepath.Dir(filepath.Dir(locator))
	if dir == "." {
		return ""
	}
	return dir + string(filepath.Separator)
}

// resolve locates a mesh reference from the description at locator.
// package:// references are relative to the package root, taken to be the
// parent of the directory holding the description.
func resolve(locator, filename string) (string, error) {
	rel, fromPackage := urdf.MeshPath(filename)
	if isURL(locator) {
		base, err := url.Parse(locator)
		if err != nil {
			return "", err
		}
		if fromPackage {
			rel = "../" + rel
		}
		ref, err := url.Parse(rel)
		if err != nil {
			return "", err
		}
		return base.ResolveReference(ref).String(), nil
	}
	if filepath.IsAbs(rel) {
		return rel, nil
	}
	dir := filepath.Dir(locator)
	if fromPackage {
		dir = filepath.Dir(dir)
	}
	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}
