package llm

import (
	"encoding/json"
	"testing"
)

func TestCleanModelOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain json untouched",
			in:   `[{"a":1}]`,
			want: `[{"a":1}]`,
		},
		{
			name: "json fence",
			in:   "```json\n[{\"a\":1}]\n```",
			want: `[{"a":1}]`,
		},
		{
			name: "bare fence",
			in:   "```\n[1,2]\n```",
			want: `[1,2]`,
		},
		{
			name: "surrounding whitespace",
			in:   "  \n[1]\n  ",
			want: `[1]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanModelOutput(tt.in); got != tt.want {
				t.Errorf("CleanModelOutput(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "prose around array",
			in:   "Here are the transactions:\n[{\"a\":1}]\nLet me know if you need more.",
			want: `[{"a":1}]`,
		},
		{
			name: "no array",
			in:   "sorry, I could not find any transactions",
			want: "",
		},
		{
			name: "array only",
			in:   `[1, 2, 3]`,
			want: `[1, 2, 3]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSONArray(tt.in); got != tt.want {
				t.Errorf("ExtractJSONArray(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripTrailingCommas(t *testing.T) {
	in := `[{"a": 1,}, {"b": "x,]", },]`
	got := StripTrailingCommas(in)

	var v []map[string]any
	if err := json.Unmarshal([]byte(got), &v); err != nil {
		t.Fatalf("repaired JSON still invalid: %v\nrepaired: %s", err, got)
	}
	if len(v) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(v))
	}
	// Commas inside strings must survive.
	if v[1]["b"] != "x,]" {
		t.Errorf("string content mangled: %v", v[1]["b"])
	}
}
