package live

import (
	"encoding/json"
	"testing"

	"google.golang.org/genai"

	"github.com/jansahayak/agent/domain/repositories"
)

func TestToFunctionDeclarations(t *testing.T) {
	decls := toFunctionDeclarations([]repositories.ToolDeclaration{{
		Name:        "search_schemes",
		Description: "search",
		Parameters: []repositories.ToolParameter{
			{Name: "category", Type: "string", Required: true},
			{Name: "age", Type: "number"},
		},
	}})

	if len(decls) != 1 {
		t.Fatalf("decls = %d, want 1", len(decls))
	}
	d := decls[0]
	if d.Name != "search_schemes" {
		t.Errorf("name = %q", d.Name)
	}
	if d.Parameters.Type != genai.TypeObject {
		t.Errorf("parameters type = %v", d.Parameters.Type)
	}
	if got := d.Parameters.Properties["category"].Type; got != genai.TypeString {
		t.Errorf("category type = %v", got)
	}
	if got := d.Parameters.Properties["age"].Type; got != genai.TypeNumber {
		t.Errorf("age type = %v", got)
	}
	if len(d.Parameters.Required) != 1 || d.Parameters.Required[0] != "category" {
		t.Errorf("required = %v", d.Parameters.Required)
	}
}

func TestToResponseMap(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantKey string
	}{
		{"object passes through", `{"url":"https://india.gov.in"}`, "url"},
		{"string wrapped", `"Language changed."`, "result"},
		{"array wrapped", `[{"id":"1-hi"}]`, "result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toResponseMap(json.RawMessage(tt.payload))
			if _, ok := got[tt.wantKey]; !ok {
				t.Errorf("toResponseMap(%s) = %v, want key %q", tt.payload, got, tt.wantKey)
			}
		})
	}

	if got := toResponseMap(nil); len(got) != 0 {
		t.Errorf("nil payload = %v, want empty map", got)
	}
}
