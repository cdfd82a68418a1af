package telemetry

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var ErrInvalidPayload = errors.New("telemetry: invalid payload")

// DecodeJSON decodes one frame from a JSON payload.
//
// Two layouts are accepted. A data-frame document carries typed columns:
//
//	{"fields":[{"name":"base","type":"number","values":[0.1,0.2]}]}
//
// A flat object maps column names to a single sample each, the column kind
// following the JSON type:
//
//	{"base":0.2,"shoulder":-1.1}
func DecodeJSON(payload []byte) (Frame, error) {
	if !gjson.ValidBytes(payload) {
		return Frame{}, ErrInvalidPayload
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsObject() {
		return Frame{}, fmt.Errorf("%w: want object, got %s", ErrInvalidPayload, doc.Type)
	}
	if fields := doc.Get("fields"); fields.IsArray() {
		return decodeFields(fields)
	}
	var f Frame
	doc.ForEach(func(key, value gjson.Result) bool {
		f.Columns = append(f.Columns, Column{
			Name:   key.String(),
			Kind:   kindOf(value),
			Values: []any{sampleOf(value)},
		})
		return true
	})
	return f, nil
}

func decodeFields(fields gjson.Result) (Frame, error) {
	var f Frame
	var err error
	fields.ForEach(func(_, field gjson.Result) bool {
		name := field.Get("name")
		if name.Type != gjson.String {
			err = fmt.Errorf("%w: field without name", ErrInvalidPayload)
			return false
		}
		col := Column{Name: name.String(), Kind: ParseKind(field.Get("type").String())}
		field.Get("values").ForEach(func(_, v gjson.Result) bool {
			col.Values = append(col.Values, sampleOf(v))
			return true
		})
		f.Columns = append(f.Columns, col)
		return true
	})
	return f, err
}

func kindOf(v gjson.Result) Kind {
	switch v.Type {
	case gjson.Number:
		return KindNumber
	case gjson.String:
		return KindString
	case gjson.True, gjson.False:
		return KindBoolean
	}
	return KindOther
}

func sampleOf(v gjson.Result) any {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return v.String()
	case gjson.True, gjson.False:
		return v.Bool()
	case gjson.Null:
		return nil
	}
	return v.Raw
}
