package ruleset

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleRuleset = `
types:
  - name: creature
    properties:
      perceptive: true
      max_weight: 100
  - name: npc
    parents: [creature]
    properties:
      max_weight: 150
`

func TestLoadResolvesParentDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ruleset.yaml")
	if err := os.WriteFile(path, []byte(sampleRuleset), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	types, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	npc, ok := types["npc"]
	if !ok {
		t.Fatal("expected npc type declared")
	}
	if npc.Defaults["max_weight"] != 150 {
		t.Fatalf("expected npc's own max_weight override to win, got %v", npc.Defaults["max_weight"])
	}
	if npc.Defaults["perceptive"] != true {
		t.Fatalf("expected perceptive inherited from creature, got %v", npc.Defaults["perceptive"])
	}

	creature, ok := types["creature"]
	if !ok {
		t.Fatal("expected creature type declared")
	}
	if creature.Defaults["max_weight"] != 100 {
		t.Fatalf("expected creature's own default unaffected, got %v", creature.Defaults["max_weight"])
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load("/nonexistent/ruleset.yaml"); err == nil {
		t.Fatal("expected an error for a missing ruleset file")
	}
}
