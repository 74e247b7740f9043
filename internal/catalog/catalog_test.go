package catalog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hexclash/server/internal/combatant"
	"hexclash/server/internal/pools"
)

type memorySource struct {
	path string
	data []byte
	err  error
}

func (m memorySource) Load() ([]byte, error) { return m.data, m.err }
func (m memorySource) Path() string          { return m.path }

func TestDefaultCatalogBuildsEveryTemplate(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	ids := c.TemplateIDs()
	if len(ids) == 0 {
		t.Fatalf("expected built-in templates")
	}
	for i, id := range ids {
		cfg, err := c.Build(Spec{ID: int64(i + 1), Team: "red", Template: id})
		if err != nil {
			t.Fatalf("build %s: %v", id, err)
		}
		entity, err := combatant.New(cfg)
		if err != nil {
			t.Fatalf("combatant %s: %v", id, err)
		}
		if entity.MaxHealth() <= 0 {
			t.Fatalf("template %s produced zero max health", id)
		}
		if entity.Name() == "" {
			t.Fatalf("template %s produced an unnamed combatant", id)
		}
	}
}

func TestBuildUnknownTemplateFails(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	if _, err := c.Build(Spec{ID: 1, Template: "dragon"}); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
	if err := c.Merge(Document{Templates: []Template{{ID: "ghost", Styles: []string{"missing"}}}}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, err := c.Build(Spec{ID: 1, Template: "ghost"}); !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
}

func TestYAMLOverlayReplacesEntries(t *testing.T) {
	overlay := []byte(`
weapons:
  - id: longsword
    name: Blunted Longsword
    hitBonus: 0
    potencies:
      blunt:
        reality: force
        base: [1]
statuses:
  - id: regen
    stacking: refresh
    duration: 3
    onTurn:
      hp: 4
`)
	c, err := load(memorySource{path: "overlay.yaml", data: overlay})
	if err != nil {
		t.Fatalf("load overlay: %v", err)
	}
	weapon, ok := c.Weapon("longsword")
	if !ok || weapon.Name != "Blunted Longsword" {
		t.Fatalf("expected overlay weapon, got %+v", weapon)
	}
	def, ok := c.Statuses().Get("regen")
	if !ok {
		t.Fatalf("expected regen status")
	}
	if def.OnTurn[pools.Health] != 4 {
		t.Fatalf("expected regen to heal 4, got %+v", def.OnTurn)
	}
	if _, ok := c.Style("blade"); !ok {
		t.Fatalf("built-in styles should survive the overlay")
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	if _, err := Decode([]byte(`{"weapons":[{"id":"x","sharpness":3}]}`), FormatJSON); err == nil {
		t.Fatalf("expected unknown JSON field to fail")
	}
	if _, err := Decode([]byte("weapons:\n  - id: x\n    sharpness: 3\n"), FormatYAML); err == nil {
		t.Fatalf("expected unknown YAML field to fail")
	}
}

func TestInvalidOverlayLeavesCatalogUntouched(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	err = c.Merge(Document{Templates: []Template{{ID: "knight", Styles: []string{"blade"}, Attributes: map[string]float64{"luck": 3}}}})
	if err == nil {
		t.Fatalf("expected unknown attribute to fail")
	}
	tpl, _ := c.Template("knight")
	if tpl.Weapon != "longsword" {
		t.Fatalf("failed merge must not replace the template")
	}
}

func TestLoadSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	doc := Document{Templates: []Template{{ID: "scout", Name: "Scout", Styles: []string{"blade"}, Weapon: "longsword"}}}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(filepath.Join(dir, "missing.yaml"), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := c.Template("scout"); !ok {
		t.Fatalf("expected scout template from file")
	}
}

func TestSchemaDescribesDocument(t *testing.T) {
	schema := Schema()
	if schema == nil || schema.Title == "" {
		t.Fatalf("expected titled schema")
	}
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty schema")
	}
}
