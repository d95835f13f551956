package memory

import "testing"

func TestParseExtraction(t *testing.T) {
	t.Run("parses a clean payload", func(t *testing.T) {
		out := ParseExtraction(`{
			"entities": [
				{"name": "Go", "type": "Language"},
				{"name": "channels", "type": "Concept"}
			],
			"relationships": [
				{"from": "Go", "to": "channels", "type": "PROVIDES"}
			]
		}`)

		if len(out.Entities) != 2 || len(out.Relationships) != 1 {
			t.Fatalf("unexpected extraction: %+v", out)
		}
	})

	t.Run("strips markdown fences", func(t *testing.T) {
		out := ParseExtraction("```json\n{\"entities\":[{\"name\":\"Go\",\"type\":\"Language\"}],\"relationships\":[]}\n```")

		if len(out.Entities) != 1 || out.Entities[0].Name != "Go" {
			t.Fatalf("unexpected extraction: %+v", out)
		}
	})

	t.Run("strips surrounding prose", func(t *testing.T) {
		out := ParseExtraction(`Here is what I found:
{"entities":[{"name":"Qdrant","type":"Tool"}],"relationships":[]}
Hope that helps!`)

		if len(out.Entities) != 1 || out.Entities[0].Name != "Qdrant" {
			t.Fatalf("unexpected extraction: %+v", out)
		}
	})

	t.Run("malformed payloads yield an empty extraction", func(t *testing.T) {
		for _, raw := range []string{"", "not json", "[]", `{"entities": "nope"}`} {
			out := ParseExtraction(raw)
			if !out.Empty() {
				t.Errorf("input %q: expected empty extraction, got %+v", raw, out)
			}
		}
	})

	t.Run("defaults a missing entity type", func(t *testing.T) {
		out := ParseExtraction(`{"entities":[{"name":"idempotence"}],"relationships":[]}`)

		if len(out.Entities) != 1 || out.Entities[0].Type != "Concept" {
			t.Fatalf("expected Concept default, got %+v", out)
		}
	})

	t.Run("drops duplicate entities by key", func(t *testing.T) {
		out := ParseExtraction(`{"entities":[
			{"name":"Go","type":"Language"},
			{"name":"go","type":"language"},
			{"name":"Go","type":"Mascot"}
		],"relationships":[]}`)

		if len(out.Entities) != 2 {
			t.Fatalf("expected 2 distinct entities, got %+v", out.Entities)
		}
	})

	t.Run("drops relationships naming unknown entities", func(t *testing.T) {
		out := ParseExtraction(`{"entities":[{"name":"Go","type":"Language"}],
			"relationships":[
				{"from":"Go","to":"Rust","type":"COMPETES_WITH"},
				{"from":"go","to":"GO","type":"SELF"}
			]}`)

		if len(out.Relationships) != 1 || out.Relationships[0].Type != "SELF" {
			t.Fatalf("expected only the self relationship, got %+v", out.Relationships)
		}
	})

	t.Run("drops relationships with blank fields", func(t *testing.T) {
		out := ParseExtraction(`{"entities":[{"name":"Go","type":"Language"}],
			"relationships":[{"from":"Go","to":"Go","type":""}]}`)

		if len(out.Relationships) != 0 {
			t.Fatalf("expected no relationships, got %+v", out.Relationships)
		}
	})
}

func TestEntityKey(t *testing.T) {
	a := Entity{Name: "Go", Type: "Language"}
	b := Entity{Name: " go ", Type: "LANGUAGE"}

	if a.Key() != b.Key() {
		t.Errorf("expected %q and %q to share a key", a.Key(), b.Key())
	}
	if a.Key() != "language:go" {
		t.Errorf("unexpected key %q", a.Key())
	}
}
