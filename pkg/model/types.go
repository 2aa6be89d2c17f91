package model

import "strings"

// ObjectiveKind is the optimization direction of an objective.
type ObjectiveKind string

const (
	Minimize ObjectiveKind = "Minimize"
	Maximize ObjectiveKind = "Maximize"
)

// ParseObjectiveKind maps a free-form direction onto Minimize or Maximize.
// Matching is case-insensitive and accepts the short forms "min" and "max".
// Anything else is returned verbatim so placeholders survive.
func ParseObjectiveKind(s string) ObjectiveKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimize", "minimise", "min":
		return Minimize
	case "maximize", "maximise", "max":
		return Maximize
	default:
		return ObjectiveKind(strings.TrimSpace(s))
	}
}

// Objective holds the objective function.
type Objective struct {
	Kind       ObjectiveKind
	Expression string
}

// IsZero reports whether neither the kind nor the expression is set.
func (o *Objective) IsZero() bool {
	return o == nil || (o.Kind == "" && o.Expression == "")
}

// Entry is a single key/value pair of an ordered mapping.
type Entry struct {
	Key   string
	Value string
}

// Mapping is a string-to-string mapping that preserves insertion order.
type Mapping []Entry

// Get returns the value stored under key.
func (m Mapping) Get(key string) (string, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Set replaces the value under key, or appends a new entry.
func (m Mapping) Set(key, value string) Mapping {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = value
			return m
		}
	}
	return append(m, Entry{Key: key, Value: value})
}

// Keys returns the keys in order.
func (m Mapping) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	return keys
}

// ValueKind discriminates the shape of a data value.
type ValueKind int

const (
	ScalarValue ValueKind = iota
	ListValue
	MapValue
)

// Value is a data value: a scalar, an ordered sequence of scalars, or an
// index-to-scalar mapping. Scalars are held in their display form.
type Value struct {
	Kind   ValueKind
	Scalar string
	List   []string
	Map    Mapping
}

// Scalar returns a scalar Value.
func Scalar(s string) Value { return Value{Kind: ScalarValue, Scalar: s} }

// List returns a sequence Value.
func List(items ...string) Value { return Value{Kind: ListValue, List: items} }

// Map returns a mapping Value.
func Map(m Mapping) Value { return Value{Kind: MapValue, Map: m} }

// String renders the value as plain text: scalars verbatim, lists as
// "[a, b]" and mappings as "{k: v, k2: v2}".
func (v Value) String() string {
	switch v.Kind {
	case ListValue:
		return "[" + strings.Join(v.List, ", ") + "]"
	case MapValue:
		parts := make([]string, len(v.Map))
		for i, e := range v.Map {
			parts[i] = e.Key + ": " + e.Value
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.Scalar
	}
}

// DataEntry is a named data value.
type DataEntry struct {
	Key   string
	Value Value
}

// Model is the structured optimization model. The zero value is a valid,
// empty model.
type Model struct {
	Sets        []string
	Parameters  Mapping
	Variables   Mapping
	Objective   *Objective
	Constraints []string
	Data        []DataEntry

	// Error marks the model as a failure. When set, renderers ignore every
	// other field.
	Error string

	// RawOutput carries the unparsed source text for diagnostics when
	// Error is set.
	RawOutput string
}

// HasError reports whether the model is an error marker.
func (m *Model) HasError() bool {
	return m != nil && m.Error != ""
}

// IsEmpty reports whether no renderable section is populated.
func (m *Model) IsEmpty() bool {
	if m == nil {
		return true
	}
	return len(m.Sets) == 0 &&
		len(m.Parameters) == 0 &&
		len(m.Variables) == 0 &&
		m.Objective.IsZero() &&
		len(m.Constraints) == 0 &&
		len(m.Data) == 0
}

// DataValue returns the data value stored under key.
func (m *Model) DataValue(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	for _, d := range m.Data {
		if d.Key == key {
			return d.Value, true
		}
	}
	return Value{}, false
}
