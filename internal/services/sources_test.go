package services

import "testing"

func TestNormalizeSourcesAliases(t *testing.T) {
	got := NormalizeSources([]map[string]any{
		{"source": "Handbook", "url": "https://x/doc", "page": 12.0, "text": "body"},
		{"title": "Policy", "identifier": "p-1", "locator": "s.3"},
		{"name": "Memo"},
		{"page": 3.0},
		nil,
	})
	if len(got) != 3 {
		t.Fatalf("len: want=3 got=%d (%+v)", len(got), got)
	}
	if got[0].Identifier != "https://x/doc" || got[0].Title != "Handbook" || *got[0].Locator != "12" || *got[0].Content != "body" {
		t.Fatalf("first: %+v", got[0])
	}
	if got[1].Identifier != "p-1" || *got[1].Locator != "s.3" || got[1].Content != nil {
		t.Fatalf("second: %+v", got[1])
	}
	if got[2].Title != "Memo" || got[2].Locator != nil {
		t.Fatalf("third: %+v", got[2])
	}
}
