package joints

import "urdfpanel/panel/telemetry"

// Result counts what one Apply did.
type Result struct {
	Writes    int
	Unmapped  int
	Malformed int
}

// Mapper applies telemetry frames to a State through a Config.
type Mapper struct {
	bySource map[string]Binding
	state    *State
}

// NewMapper assumes cfg has been validated.
func NewMapper(cfg Config, state *State) *Mapper {
	m := &Mapper{bySource: make(map[string]Binding, len(cfg)), state: state}
	for _, b := range cfg {
		if b.Source != "" {
			m.bySource[b.Source] = b
		}
	}
	return m
}

// Apply writes the last sample of every mapped numeric column as
// value*scale*sign. Columns are visited in order, so of two columns with the
// same name the later one wins. Joints without a usable column keep their
// previous target.
func (m *Mapper) Apply(f telemetry.Frame) Result {
	var res Result
	for _, col := range f.Columns {
		b, ok := m.bySource[col.Name]
		if !ok {
			res.Unmapped++
			continue
		}
		if col.Kind != telemetry.KindNumber {
			res.Malformed++
			continue
		}
		last, ok := col.Last()
		if !ok {
			res.Malformed++
			continue
		}
		v, ok := telemetry.AsNumber(last)
		if !ok {
			res.Malformed++
			continue
		}
		if m.state.Set(b.Joint, v*b.Scale*b.Sign) {
			res.Writes++
		}
	}
	return res
}
