//go:build cgo

package hal

import (
	"fmt"
	"urdfpanel/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// WindowConfig controls the desktop window runner.
type WindowConfig struct {
	Title  string
	Width  int
	Height int
	TPS    int
}

// RunWindow starts a desktop window that displays the framebuffer and
// forwards keyboard and pointer input. The window is resizable and every
// size change is delivered to the app as a layout. It blocks until the
// window closes.
func RunWindow(h HAL, newApp func(HAL) App, cfg WindowConfig) error {
	host, ok := h.(*hostHAL)
	if !ok {
		return fmt.Errorf("window runner needs the host HAL, got %T", h)
	}
	if cfg.TPS <= 0 {
		cfg.TPS = 60
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = host.fb.Width(), host.fb.Height()
	}
	title := cfg.Title
	if title == "" {
		title = "urdfpanel"
	}

	app := newApp(h)
	if app.Close != nil {
		defer app.Close()
	}

	g := &hostGame{h: host, app: app}
	ebiten.SetWindowTitle(title + " (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.TPS)
	return ebiten.RunGame(g)
}

type hostGame struct {
	h   *hostHAL
	app App

	// Requested size from the last Layout call and the size last delivered
	// to the app.
	reqW, reqH int
	curW, curH int

	fbImg   *ebiten.Image
	scratch []byte
}

func (g *hostGame) Update() error {
	if g.reqW != g.curW || g.reqH != g.curH {
		g.curW, g.curH = g.reqW, g.reqH
		if g.app.Layout != nil {
			g.app.Layout(g.curW, g.curH)
		}
	}

	g.h.kbd.poll()
	g.h.ptr.poll()
	if g.app.Step != nil {
		if err := g.app.Step(); err != nil {
			return err
		}
	}
	g.h.frames.run()
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	w, h := fb.Width(), fb.Height()
	if w <= 0 || h <= 0 {
		return
	}
	if g.fbImg == nil || g.fbImg.Bounds().Dx() != w || g.fbImg.Bounds().Dy() != h {
		if g.fbImg != nil {
			g.fbImg.Deallocate()
		}
		g.fbImg = ebiten.NewImage(w, h)
		g.scratch = make([]byte, w*h*4)
	}

	fb.snapshotRGBA(g.scratch)
	g.fbImg.WritePixels(g.scratch)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.reqW, g.reqH = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}
