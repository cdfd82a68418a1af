package joints

// State holds the latest target angle per known joint. The key set is fixed
// at construction and every known joint reads 0 until written.
//
// State is not synchronized: it is written by Mapper and read by the render
// loop on the same execution context.
type State struct {
	names  []string
	index  map[string]int
	values []float64
}

func NewState(joints []string) *State {
	s := &State{
		names:  append([]string(nil), joints...),
		index:  make(map[string]int, len(joints)),
		values: make([]float64, len(joints)),
	}
	for i, j := range s.names {
		s.index[j] = i
	}
	return s
}

// Get returns the target for joint and whether the joint is known.
func (s *State) Get(joint string) (float64, bool) {
	i, ok := s.index[joint]
	if !ok {
		return 0, false
	}
	return s.values[i], true
}

// Set writes a known joint. Unknown joints are ignored.
func (s *State) Set(joint string, v float64) bool {
	i, ok := s.index[joint]
	if !ok {
		return false
	}
	s.values[i] = v
	return true
}

// Len is the number of known joints.
func (s *State) Len() int { return len(s.names) }

// At returns the i-th joint in table order and its target.
func (s *State) At(i int) (string, float64) { return s.names[i], s.values[i] }

// Snapshot copies the state into a map.
func (s *State) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(s.names))
	for i, j := range s.names {
		out[j] = s.values[i]
	}
	return out
}
