package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_HasCoreTypes(t *testing.T) {
	c := Default()
	for _, typ := range []string{"Body", "Box", "Heading", "Text", "Button", "Image"} {
		if !c.Has(typ) {
			t.Fatalf("expected built-in catalog to define %s", typ)
		}
	}
	if !c.IsContainer("Box") || c.IsContainer("Heading") || c.IsContainer("Nope") {
		t.Fatalf("unexpected container flags")
	}
	if got := c.DefaultStyles("Heading")["fontWeight"]; got != "700" {
		t.Fatalf("expected Heading default fontWeight 700, got %q", got)
	}
}

func TestNewInstance_CopiesDefaults(t *testing.T) {
	c := Default()
	a, err := c.NewInstance("Heading")
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	if a.ID != "" || a.Type != "Heading" || a.Props["tag"] != "h2" {
		t.Fatalf("unexpected instance: %#v", a)
	}
	a.Props["tag"] = "h1"
	b, _ := c.NewInstance("Heading")
	if b.Props["tag"] != "h2" {
		t.Fatalf("expected catalog defaults to stay untouched")
	}
	if _, err := c.NewInstance("Nope"); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestLoad_MergesUserEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	body := []byte(`components:
  - type: Heading
    label: Title
    defaultStyles:
      fontWeight: "900"
  - type: Card
    container: true
    propsDefinition:
      elevation:
        type: number
        default: 2
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h, _ := c.Lookup("Heading")
	if h.Label != "Title" || h.DefaultStyles["fontWeight"] != "900" {
		t.Fatalf("expected user entry to replace built-in: %#v", h)
	}
	card, ok := c.Lookup("Card")
	if !ok || !card.Container || card.Label != "Card" {
		t.Fatalf("expected Card entry with type as label: %#v", card)
	}
	if card.DefaultProps["elevation"] != 2 {
		t.Fatalf("expected prop default to seed default props, got %#v", card.DefaultProps)
	}
	if !c.Has("Box") {
		t.Fatalf("expected built-ins to survive the merge")
	}
	if Default().DefaultStyles("Heading")["fontWeight"] != "700" {
		t.Fatalf("expected built-in catalog to be unchanged")
	}
}

func TestParse_RejectsEntriesWithoutType(t *testing.T) {
	if _, err := Parse([]byte("components:\n  - label: x\n")); err == nil {
		t.Fatalf("expected error")
	}
}
