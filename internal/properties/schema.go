package properties

import (
	"sort"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

// Option is one choice of an enumerated list.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Descriptor describes one property of a source type.
type Descriptor struct {
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Label   string   `json:"label,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Options []Option `json:"options,omitempty"`
	Default any      `json:"default,omitempty"`
}

// Schema is the ordered property list of a source type.
type Schema []Descriptor

// Lookup finds a descriptor by name.
func (s Schema) Lookup(name string) (Descriptor, bool) {
	for _, d := range s {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Names returns the property names in schema order.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s))
	for _, d := range s {
		out = append(out, d.Name)
	}
	return out
}

// Validate checks a typed value against the descriptor.
func (d Descriptor) Validate(v Value) error {
	const op = "properties.validate"
	if v == nil {
		return apperr.New(apperr.InvalidValue, op, "property %q: missing value", d.Name)
	}
	if v.Kind() != d.Kind {
		return apperr.New(apperr.InvalidValue, op, "property %q is %s, got %s", d.Name, d.Kind, v.Kind())
	}
	switch t := v.(type) {
	case Int:
		return d.checkRange(float64(t))
	case Float:
		return d.checkRange(float64(t))
	case Enum:
		if len(d.Options) == 0 {
			return nil
		}
		for _, o := range d.Options {
			if o.Value == string(t) {
				return nil
			}
		}
		return apperr.New(apperr.InvalidValue, op, "property %q: %q is not one of the options", d.Name, string(t))
	}
	return nil
}

func (d Descriptor) checkRange(f float64) error {
	if d.Min != nil && f < *d.Min {
		return apperr.New(apperr.InvalidValue, "properties.validate", "property %q: %v below minimum %v", d.Name, f, *d.Min)
	}
	if d.Max != nil && f > *d.Max {
		return apperr.New(apperr.InvalidValue, "properties.validate", "property %q: %v above maximum %v", d.Name, f, *d.Max)
	}
	return nil
}

// Parse converts a raw settings value for the named property and validates it.
// Unknown names fail with UnknownProperty.
func (s Schema) Parse(name string, raw any) (Value, error) {
	d, ok := s.Lookup(name)
	if !ok {
		return nil, apperr.New(apperr.UnknownProperty, "properties.parse", "unknown property %q", name)
	}
	v, err := FromRaw(d.Kind, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidValue, "properties.parse", err)
	}
	if err := d.Validate(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateSettings checks a whole settings bag. Keys are checked in sorted
// order so the reported error is deterministic.
func (s Schema) ValidateSettings(settings map[string]any) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := s.Parse(k, settings[k]); err != nil {
			return err
		}
	}
	return nil
}

// Defaults returns the settings bag of every descriptor that declares a default.
func (s Schema) Defaults() map[string]any {
	out := map[string]any{}
	for _, d := range s {
		if d.Default != nil {
			out[d.Name] = d.Default
		}
	}
	return out
}

// Range is a helper for building descriptors.
func Range(min, max float64) (*float64, *float64) {
	return &min, &max
}
