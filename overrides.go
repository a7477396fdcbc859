package fixgate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when an override body is not a JSON object.
var ErrInvalidJSON = errors.New("invalid JSON")

// ErrInvalidOverride is returned for an override that cannot be parsed.
var ErrInvalidOverride = errors.New("invalid override")

// Override replaces one field of a built template. Field is a dictionary name
// ("ClOrdID") or a numeric tag ("11"); Value is the wire form.
type Override struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Overrides are applied in order; a later override of the same field wins.
type Overrides []Override

// ParseOverrides parses "ClOrdID=X1,38=100". Whitespace around keys and
// values is trimmed and empty entries are skipped. Values cannot contain
// commas; use ParseOverridesJSON for those.
func ParseOverrides(s string) (Overrides, error) {
	var out Overrides
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOverride, part)
		}
		out = append(out, Override{Field: k, Value: v})
	}
	return out, nil
}

// ParseOverridesJSON parses a flat JSON object such as
// {"ClOrdID": "X1", "OrderQty": 100}. Key order is preserved. Numbers keep
// their literal text so "755.930" is not reformatted.
func ParseOverridesJSON(raw []byte) (Overrides, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	obj := gjson.ParseBytes(raw)
	if !obj.IsObject() {
		return nil, ErrInvalidJSON
	}
	var out Overrides
	var err error
	obj.ForEach(func(key, value gjson.Result) bool {
		var v string
		switch value.Type {
		case gjson.String:
			v = value.String()
		case gjson.Number:
			v = value.Raw
		default:
			err = fmt.Errorf("%w: %s must be a string or number", ErrInvalidOverride, key.String())
			return false
		}
		if key.String() == "" || v == "" {
			err = fmt.Errorf("%w: %s=%q", ErrInvalidOverride, key.String(), v)
			return false
		}
		out = append(out, Override{Field: key.String(), Value: v})
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o Overrides) String() string {
	parts := make([]string, len(o))
	for i, x := range o {
		parts[i] = x.Field + "=" + x.Value
	}
	return strings.Join(parts, ",")
}
