package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Model
		wantErr bool
	}{
		{
			name:  "fenced products example",
			input: `{"sets": ["Products ($P$)"], "objective": {"type": "maximize", "expression": "$x$"}}`,
			want: &Model{
				Sets:      []string{"Products ($P$)"},
				Objective: &Objective{Kind: Maximize, Expression: "$x$"},
			},
		},
		{
			name: "order of parameters is preserved",
			input: `{"parameters": {"$s_w$": "Supply", "$d_r$": "Demand", "$c_{wr}$": "Cost"},
				"variables": {"$x_{wr}$": "Quantity"}}`,
			want: &Model{
				Parameters: Mapping{{"$s_w$", "Supply"}, {"$d_r$", "Demand"}, {"$c_{wr}$", "Cost"}},
				Variables:  Mapping{{"$x_{wr}$", "Quantity"}},
			},
		},
		{
			name: "data shapes",
			input: `{"data": {"$W$": ["W1", "W2"], "$s$": {"W1": 100, "W2": 150.5}, "$B$": 42, "$flag$": true}}`,
			want: &Model{
				Data: []DataEntry{
					{Key: "$W$", Value: List("W1", "W2")},
					{Key: "$s$", Value: Map(Mapping{{"W1", "100"}, {"W2", "150.5"}})},
					{Key: "$B$", Value: Scalar("42")},
					{Key: "$flag$", Value: Scalar("true")},
				},
			},
		},
		{
			name:  "kind alias and short form",
			input: `{"objective": {"kind": "min", "expression": "c x"}}`,
			want:  &Model{Objective: &Objective{Kind: Minimize, Expression: "c x"}},
		},
		{
			name:  "scalar where sequence expected",
			input: `{"constraints": "x <= 1"}`,
			want:  &Model{Constraints: []string{"x <= 1"}},
		},
		{
			name:  "duplicate keys keep last value in first position",
			input: `{"parameters": {"a": "1", "b": "2", "a": "3"}}`,
			want:  &Model{Parameters: Mapping{{"a", "3"}, {"b", "2"}}},
		},
		{
			name:  "error marker",
			input: `{"error": "boom", "raw_output": "text"}`,
			want:  &Model{Error: "boom", RawOutput: "text"},
		},
		{
			name:  "unknown keys ignored",
			input: `{"notes": "x", "sets": []}`,
			want:  &Model{},
		},
		{
			name:    "invalid JSON",
			input:   `{"sets": [}`,
			wantErr: true,
		},
		{
			name:    "not an object",
			input:   `["sets"]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got model %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("model mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_NotObjectError(t *testing.T) {
	_, err := Parse(`"just a string"`)
	if !errors.Is(err, ErrNotObject) {
		t.Errorf("err = %v, want ErrNotObject", err)
	}
}

func TestMarshalJSON_RoundTrip(t *testing.T) {
	m := &Model{
		Sets:        []string{"Warehouses ($W$)", "Retailers ($R$)"},
		Parameters:  Mapping{{"$s_w$", "Supply at $w$"}, {"$c_{wr}$", "Cost (\\$)"}},
		Variables:   Mapping{{"$x_{wr}$", "Quantity & more"}},
		Objective:   &Objective{Kind: Minimize, Expression: `$\sum_{w} c_{wr} x_{wr}$`},
		Constraints: []string{`$\sum_r x_{wr} \leq s_w$ (Supply)`},
		Data: []DataEntry{
			{Key: "$W$", Value: List("W1", "W2")},
			{Key: "$s$", Value: Map(Mapping{{"W1", "100"}, {"W2", "150"}})},
			{Key: "$B$", Value: Scalar("budget")},
		},
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Model
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v (json: %s)", err, data)
	}
	if diff := cmp.Diff(m, &got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalJSON_KeyOrder(t *testing.T) {
	m := &Model{Parameters: Mapping{{"z", "1"}, {"a", "2"}}}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"parameters":{"z":"1","a":"2"}}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}

func TestMarshalJSON_NumbersStayNumbers(t *testing.T) {
	m := &Model{Data: []DataEntry{{Key: "d", Value: Map(Mapping{{"R1", "70"}, {"R2", "n/a"}})}}}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"data":{"d":{"R1":70,"R2":"n/a"}}}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
