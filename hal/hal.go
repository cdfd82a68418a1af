package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
//
// Resize reallocates the backing buffer; slices obtained from Buffer before a
// resize must not be used afterwards.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Resize(width, height int)
	Present() error
}

// KeyCode is a minimal key identifier.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
	KeyDelete
	KeyHome
	KeyEnd
	KeyF1
	KeyF2
	KeyF3
)

// KeyEvent is a keyboard event.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}

// Keyboard provides key events (best-effort on each platform).
type Keyboard interface {
	Events() <-chan KeyEvent
}

// PointerButtons is a bitmask of pressed pointer buttons.
type PointerButtons uint8

const (
	ButtonPrimary PointerButtons = 1 << iota
	ButtonSecondary
	ButtonMiddle
)

// PointerEvent reports the pointer position, held buttons and wheel motion.
type PointerEvent struct {
	X, Y    int
	Buttons PointerButtons
	Shift   bool
	WheelY  float64
}

// Pointer provides pointer (mouse/touch) events.
type Pointer interface {
	Events() <-chan PointerEvent
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Input provides access to input devices (if available).
type Input interface {
	Keyboard() Keyboard
	Pointer() Pointer
}

// FrameID identifies a pending frame callback.
type FrameID uint64

// Frames is the host's per-refresh scheduling primitive.
//
// RequestFrame registers fn to run once on the next display refresh, on the
// frame goroutine. CancelFrame drops a pending callback; cancelling an id
// that already ran or was never issued is a no-op.
type Frames interface {
	RequestFrame(fn func()) FrameID
	CancelFrame(id FrameID)
}

// HAL provides the only contact point between the panel and the outside world.
type HAL interface {
	Logger() Logger
	Display() Display
	Input() Input
	Frames() Frames
}

// App is what a host runner drives.
//
// Layout runs whenever the requested surface size changes (and once before
// the first Step). Step runs once per refresh before pending frame callbacks.
// Close runs once when the runner exits.
type App struct {
	Layout func(width, height int)
	Step   func() error
	Close  func()
}
