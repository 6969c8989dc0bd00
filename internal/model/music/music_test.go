package music

import "testing"

func TestLoadCatalog(t *testing.T) {
	tracks, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog err: %v", err)
	}
	if len(tracks) == 0 {
		t.Fatal("expected embedded tracks")
	}

	purposes := map[Purpose]bool{}
	for _, track := range tracks {
		purposes[track.Purpose] = true
		if track.BPM <= 0 {
			t.Fatalf("track %s has no bpm", track.ID)
		}
	}
	for _, p := range []Purpose{Calm, Uplift, Focus, Sleep, Energize} {
		if !purposes[p] {
			t.Fatalf("catalog has no %s track", p)
		}
	}
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"missing id":  "tracks:\n  - title: x\n    purpose: calm\n",
		"duplicate":   "tracks:\n  - id: a\n    purpose: calm\n  - id: a\n    purpose: calm\n",
		"bad purpose": "tracks:\n  - id: a\n    purpose: party\n",
		"bad yaml":    "tracks: [",
	}
	for name, doc := range cases {
		if _, err := ParseCatalog([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
