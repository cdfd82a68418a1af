package hal

import "sync"

// hostFrames implements Frames on top of the runner's refresh step.
//
// Callbacks requested during a run are deferred to the next run, so a
// callback that re-requests itself fires exactly once per refresh.
type hostFrames struct {
	mu      sync.Mutex
	next    FrameID
	pending []frameReq
	running []frameReq
}

type frameReq struct {
	id FrameID
	fn func()
}

func newHostFrames() *hostFrames {
	return &hostFrames{pending: make([]frameReq, 0, 4), running: make([]frameReq, 0, 4)}
}

// NewFrames returns a Frames implementation driven by calling Run.
func NewFrames() *ManualFrames {
	return &ManualFrames{f: newHostFrames()}
}

func (f *hostFrames) RequestFrame(fn func()) FrameID {
	if fn == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.pending = append(f.pending, frameReq{id: f.next, fn: fn})
	return f.next
}

func (f *hostFrames) CancelFrame(id FrameID) {
	if id == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.pending {
		if f.pending[i].id == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return
		}
	}
}

// run executes every callback that was pending when it was called.
func (f *hostFrames) run() int {
	f.mu.Lock()
	f.running, f.pending = f.pending, f.running[:0]
	batch := f.running
	f.mu.Unlock()

	for i := range batch {
		batch[i].fn()
		batch[i].fn = nil
	}
	return len(batch)
}

func (f *hostFrames) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// ManualFrames is a Frames whose refreshes are driven explicitly, for tests
// and embedding hosts.
type ManualFrames struct {
	f *hostFrames
}

func (m *ManualFrames) RequestFrame(fn func()) FrameID { return m.f.RequestFrame(fn) }
func (m *ManualFrames) CancelFrame(id FrameID)         { m.f.CancelFrame(id) }

// Run performs one refresh and reports how many callbacks ran.
func (m *ManualFrames) Run() int { return m.f.run() }

// Pending reports the number of callbacks waiting for the next refresh.
func (m *ManualFrames) Pending() int { return m.f.pendingCount() }
