//go:build cgo

package hal

import "github.com/hajimehoshi/ebiten/v2"

type hostPointer struct {
	ch   chan PointerEvent
	last PointerEvent
}

func newHostPointer() *hostPointer {
	return &hostPointer{ch: make(chan PointerEvent, 64)}
}

func (p *hostPointer) Events() <-chan PointerEvent { return p.ch }

// poll emits an event when the pointer moved, a button changed or the wheel
// turned since the previous refresh.
func (p *hostPointer) poll() {
	x, y := ebiten.CursorPosition()
	var buttons PointerButtons
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		buttons |= ButtonPrimary
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) {
		buttons |= ButtonSecondary
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle) {
		buttons |= ButtonMiddle
	}
	_, wheelY := ebiten.Wheel()
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)

	ev := PointerEvent{X: x, Y: y, Buttons: buttons, Shift: shift, WheelY: wheelY}
	if ev == p.last && wheelY == 0 {
		return
	}
	p.last = ev
	p.last.WheelY = 0
	select {
	case p.ch <- ev:
	default:
	}
}
