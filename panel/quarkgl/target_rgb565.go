package quarkgl

// RGB565Target renders into a little-endian RGB565 buffer.
//
// Callers provide the backing buffer and layout (stride). After the owner
// reallocates the buffer, Bind must be called again.
type RGB565Target struct {
	Buf    []byte
	Stride int // bytes per row
	W      int
	H      int
}

// Bind points the target at a new buffer.
func (t *RGB565Target) Bind(buf []byte, stride, w, h int) {
	t.Buf, t.Stride, t.W, t.H = buf, stride, w, h
}

func (t *RGB565Target) Size() (w, h int) { return t.W, t.H }

func (t *RGB565Target) valid() bool {
	return t != nil && t.Buf != nil && t.Stride >= t.W*2 && t.W > 0 && t.H > 0 && len(t.Buf) >= t.Stride*(t.H-1)+t.W*2
}

func (t *RGB565Target) Clear(c Color) {
	if !t.valid() {
		return
	}
	p := RGB565(c)
	lo, hi := byte(p), byte(p>>8)
	for y := 0; y < t.H; y++ {
		row := t.Buf[y*t.Stride : y*t.Stride+t.W*2]
		for i := 0; i < len(row); i += 2 {
			row[i] = lo
			row[i+1] = hi
		}
	}
}

func (t *RGB565Target) SetPixel(x, y int, c Color) {
	if x < 0 || y < 0 || x >= t.W || y >= t.H || !t.valid() {
		return
	}
	off := y*t.Stride + x*2
	p := RGB565(c)
	t.Buf[off] = byte(p)
	t.Buf[off+1] = byte(p >> 8)
}

// Pixel reads back the pixel at x,y.
func (t *RGB565Target) Pixel(x, y int) uint16 {
	if x < 0 || y < 0 || x >= t.W || y >= t.H || !t.valid() {
		return 0
	}
	off := y*t.Stride + x*2
	return uint16(t.Buf[off]) | uint16(t.Buf[off+1])<<8
}

// RGB565 packs c into 16 bits: rrrrrggggggbbbbb.
func RGB565(c Color) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}
