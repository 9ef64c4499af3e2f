package format

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type payload struct {
	ID       string            `json:"id"`
	Styles   map[string]string `json:"styles,omitempty"`
	Children []payload         `json:"children,omitempty"`
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, map[string]any{"data": payload{ID: "inst-a"}}, "", false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := buf.String(); got != "{\"data\":{\"id\":\"inst-a\"}}\n" {
		t.Fatalf("unexpected json: %q", got)
	}
}

func TestWrite_YAMLUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	v := payload{ID: "inst-a", Styles: map[string]string{"fontSize": "32px"}, Children: []payload{{ID: "inst-b"}}}
	if err := Write(&buf, v, "yaml", false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "fontSize: 32px") {
		t.Fatalf("expected json field names in yaml output:\n%s", buf.String())
	}
	var back map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("yaml output does not parse: %v", err)
	}
	kids, _ := back["children"].([]any)
	if back["id"] != "inst-a" || len(kids) != 1 {
		t.Fatalf("unexpected decoded yaml: %#v", back)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "edn", false); err == nil {
		t.Fatalf("expected error")
	}
}
