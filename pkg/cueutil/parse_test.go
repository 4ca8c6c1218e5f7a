// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Widget: {
	name:   string & !=""
	weight: int & >0
	tags?: [...string]
}
`

type widget struct {
	Name   string   `json:"name"`
	Weight int      `json:"weight"`
	Tags   []string `json:"tags,omitempty"`
}

func TestParseAndDecode_Valid(t *testing.T) {
	t.Parallel()

	data := []byte(`
name:   "gizmo"
weight: 3
tags: ["a", "b"]
`)

	result, err := ParseAndDecodeString[widget](testSchema, data, "#Widget")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Value.Name != "gizmo" {
		t.Errorf("Name = %q, want %q", result.Value.Name, "gizmo")
	}
	if result.Value.Weight != 3 {
		t.Errorf("Weight = %d, want 3", result.Value.Weight)
	}
	if len(result.Value.Tags) != 2 {
		t.Errorf("len(Tags) = %d, want 2", len(result.Value.Tags))
	}
}

func TestParseAndDecode_SchemaViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want string // substring expected in the error message
	}{
		{
			name: "wrong type",
			data: `{name: "x", weight: "heavy"}`,
			want: "weight",
		},
		{
			name: "empty name",
			data: `{name: "", weight: 1}`,
			want: "name",
		},
		{
			name: "syntax error",
			data: `{name: `,
			want: "forgefile.cue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseAndDecodeString[widget](testSchema, []byte(tt.data), "#Widget",
				WithFilename("forgefile.cue"))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParseAndDecode_FileSizeLimit(t *testing.T) {
	t.Parallel()

	data := []byte(`{name: "x", weight: 1}`)
	_, err := ParseAndDecodeString[widget](testSchema, data, "#Widget",
		WithFilename("big.cue"),
		WithMaxFileSize(4))
	if err == nil {
		t.Fatal("expected size limit error, got nil")
	}
	if !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("error %q does not mention size limit", err.Error())
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"steps"}, "steps"},
		{[]string{"steps", "0", "url"}, "steps[0].url"},
		{[]string{"build", "pull"}, "build.pull"},
	}

	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
