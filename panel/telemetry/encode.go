package telemetry

import "github.com/tidwall/sjson"

// EncodeJSON writes f in the data-frame layout DecodeJSON reads.
func EncodeJSON(f Frame) ([]byte, error) {
	out := []byte(`{"fields":[]}`)
	for _, c := range f.Columns {
		field, err := sjson.SetBytes([]byte(`{}`), "name", c.Name)
		if err != nil {
			return nil, err
		}
		if field, err = sjson.SetBytes(field, "type", c.Kind.String()); err != nil {
			return nil, err
		}
		values := c.Values
		if values == nil {
			values = []any{}
		}
		if field, err = sjson.SetBytes(field, "values", values); err != nil {
			return nil, err
		}
		if out, err = sjson.SetRawBytes(out, "fields.-1", field); err != nil {
			return nil, err
		}
	}
	return out, nil
}
