package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNotObject is returned by Parse when the document is valid JSON but its
// top-level value is not an object.
var ErrNotObject = errors.New("top-level value is not an object")

// Parse decodes a JSON document into a Model, preserving key order.
//
// The document is validated strictly first so the returned error carries the
// position of the syntax problem. Once valid, the shape is trusted but coerced
// leniently: unknown keys are ignored, a scalar where a sequence is expected
// becomes a one-element sequence, and non-string values are rendered in their
// JSON text form.
func Parse(text string) (*Model, error) {
	var probe any
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	root := gjson.Parse(text)
	if !root.IsObject() {
		return nil, ErrNotObject
	}

	m := &Model{}
	root.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "sets":
			m.Sets = stringList(value)
		case "parameters":
			m.Parameters = stringMapping(value)
		case "variables":
			m.Variables = stringMapping(value)
		case "objective":
			m.Objective = objective(value)
		case "constraints":
			m.Constraints = stringList(value)
		case "data":
			m.Data = dataEntries(value)
		case "error":
			m.Error = display(value)
		case "raw_output":
			m.RawOutput = display(value)
		}
		return true
	})
	return m, nil
}

// UnmarshalJSON implements json.Unmarshaler with ordered decoding.
func (m *Model) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

// display returns the text form of a JSON value: strings unquoted, other
// scalars as written, containers compacted.
func display(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return "null"
	case gjson.JSON:
		return v.Get("@ugly").Raw
	default:
		return v.Raw
	}
}

func stringList(v gjson.Result) []string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	if !v.IsArray() {
		return []string{display(v)}
	}
	var out []string
	v.ForEach(func(_, item gjson.Result) bool {
		out = append(out, display(item))
		return true
	})
	return out
}

func stringMapping(v gjson.Result) Mapping {
	if !v.IsObject() {
		return nil
	}
	var out Mapping
	v.ForEach(func(key, value gjson.Result) bool {
		out = out.Set(key.String(), display(value))
		return true
	})
	return out
}

func objective(v gjson.Result) *Objective {
	switch {
	case v.IsObject():
		kind := v.Get("type")
		if !kind.Exists() {
			kind = v.Get("kind")
		}
		obj := &Objective{}
		if kind.Exists() && kind.Type != gjson.Null {
			obj.Kind = ParseObjectiveKind(display(kind))
		}
		if expr := v.Get("expression"); expr.Exists() && expr.Type != gjson.Null {
			obj.Expression = display(expr)
		}
		if obj.IsZero() {
			return nil
		}
		return obj
	case v.Type == gjson.String && v.Str != "":
		return &Objective{Expression: v.Str}
	default:
		return nil
	}
}

func dataEntries(v gjson.Result) []DataEntry {
	if !v.IsObject() {
		return nil
	}
	var out []DataEntry
	v.ForEach(func(key, value gjson.Result) bool {
		entry := DataEntry{Key: key.String(), Value: dataValue(value)}
		for i := range out {
			if out[i].Key == entry.Key {
				out[i] = entry
				return true
			}
		}
		out = append(out, entry)
		return true
	})
	return out
}

func dataValue(v gjson.Result) Value {
	switch {
	case v.IsObject():
		return Map(stringMapping(v))
	case v.IsArray():
		items := stringList(v)
		if items == nil {
			items = []string{}
		}
		return List(items...)
	default:
		return Scalar(display(v))
	}
}

// MarshalJSON implements json.Marshaler. Keys are written in model order;
// absent fields are omitted.
func (m *Model) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	w := objectWriter{buf: &buf}
	buf.WriteByte('{')
	if len(m.Sets) > 0 {
		w.key("sets")
		writeStringList(&buf, m.Sets)
	}
	if len(m.Parameters) > 0 {
		w.key("parameters")
		writeMapping(&buf, m.Parameters, false)
	}
	if len(m.Variables) > 0 {
		w.key("variables")
		writeMapping(&buf, m.Variables, false)
	}
	if !m.Objective.IsZero() {
		w.key("objective")
		buf.WriteString(`{"type":`)
		writeString(&buf, string(m.Objective.Kind))
		buf.WriteString(`,"expression":`)
		writeString(&buf, m.Objective.Expression)
		buf.WriteByte('}')
	}
	if len(m.Constraints) > 0 {
		w.key("constraints")
		writeStringList(&buf, m.Constraints)
	}
	if len(m.Data) > 0 {
		w.key("data")
		inner := objectWriter{buf: &buf}
		buf.WriteByte('{')
		for _, d := range m.Data {
			inner.key(d.Key)
			writeValue(&buf, d.Value)
		}
		buf.WriteByte('}')
	}
	if m.Error != "" {
		w.key("error")
		writeString(&buf, m.Error)
	}
	if m.RawOutput != "" {
		w.key("raw_output")
		writeString(&buf, m.RawOutput)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type objectWriter struct {
	buf   *bytes.Buffer
	count int
}

func (w *objectWriter) key(k string) {
	if w.count > 0 {
		w.buf.WriteByte(',')
	}
	w.count++
	writeString(w.buf, k)
	w.buf.WriteByte(':')
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1) // drop the encoder's trailing newline
}

func writeStringList(buf *bytes.Buffer, items []string) {
	buf.WriteByte('[')
	for i, s := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, s)
	}
	buf.WriteByte(']')
}

func writeMapping(buf *bytes.Buffer, m Mapping, literals bool) {
	w := objectWriter{buf: buf}
	buf.WriteByte('{')
	for _, e := range m {
		w.key(e.Key)
		if literals {
			writeScalar(buf, e.Value)
		} else {
			writeString(buf, e.Value)
		}
	}
	buf.WriteByte('}')
}

func writeValue(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case ListValue:
		buf.WriteByte('[')
		for i, s := range v.List {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeScalar(buf, s)
		}
		buf.WriteByte(']')
	case MapValue:
		writeMapping(buf, v.Map, true)
	default:
		writeScalar(buf, v.Scalar)
	}
}

// writeScalar writes s as a bare JSON literal when it already is one
// (number, boolean, null, or a compacted container) and as a string
// otherwise.
func writeScalar(buf *bytes.Buffer, s string) {
	trimmed := strings.TrimSpace(s)
	if trimmed != "" && trimmed == s && json.Valid([]byte(s)) && !strings.HasPrefix(s, `"`) {
		buf.WriteString(s)
		return
	}
	writeString(buf, s)
}
