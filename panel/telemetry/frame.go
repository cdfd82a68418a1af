// Package telemetry holds the decoded data frames the panel consumes and the
// sources that produce them.
package telemetry

import (
	"math"
	"time"
)

// Kind is the declared type of a column.
type Kind uint8

const (
	KindOther Kind = iota
	KindNumber
	KindString
	KindBoolean
	KindTime
)

var kindNames = [...]string{"other", "number", "string", "boolean", "time"}

func (k Kind) String() string {
	if int(k) >= len(kindNames) {
		return "other"
	}
	return kindNames[k]
}

// ParseKind maps a declared field type name to a Kind.
func ParseKind(name string) Kind {
	for i, n := range kindNames {
		if n == name {
			return Kind(i)
		}
	}
	return KindOther
}

// Column is a named, typed sequence of samples.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Last returns the most recent sample.
func (c Column) Last() (any, bool) {
	if len(c.Values) == 0 {
		return nil, false
	}
	return c.Values[len(c.Values)-1], true
}

// Frame is one delivery of decoded telemetry.
type Frame struct {
	Columns []Column
	At      time.Time
}

// NumberColumn is a convenience constructor for numeric columns.
func NumberColumn(name string, values ...float64) Column {
	c := Column{Name: name, Kind: KindNumber, Values: make([]any, len(values))}
	for i, v := range values {
		c.Values[i] = v
	}
	return c
}

// AsNumber coerces a sample of any Go numeric kind to a finite float64.
// Strings and other types are rejected.
func AsNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
