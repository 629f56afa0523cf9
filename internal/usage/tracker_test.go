package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestTracker_TrackAggregatesAndPersists(t *testing.T) {
	ws := t.TempDir()
	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	// Avoid background autosave during the test (debounce uses AfterFunc).
	tracker.dirty = true

	tracker.Track("openai", "gpt-4o-mini", 10, 5, "query")
	tracker.Track("openai", "gpt-4o-mini", 2, 3, "query")

	stats := tracker.Stats()
	if stats.Total.Input != 12 || stats.Total.Output != 8 || stats.Total.Total != 20 {
		t.Fatalf("Total=%+v, want input=12 output=8 total=20", stats.Total)
	}
	if got := stats.ByProvider["openai"]; got.Total != 20 {
		t.Fatalf("ByProvider[openai]=%+v, want total=20", got)
	}
	if got := stats.ByModel["gpt-4o-mini"]; got.Total != 20 {
		t.Fatalf("ByModel[gpt-4o-mini]=%+v, want total=20", got)
	}
	if got := stats.ByOperation["query"]; got.Total != 20 {
		t.Fatalf("ByOperation[query]=%+v, want total=20", got)
	}

	if err := tracker.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ws, ".metropulse", "usage.json"))
	if err != nil {
		t.Fatalf("read usage.json: %v", err)
	}
	var persisted Data
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal usage.json: %v", err)
	}
	if persisted.Aggregate.Total.Total != 20 {
		t.Fatalf("persisted total=%d, want 20", persisted.Aggregate.Total.Total)
	}
}

func TestTracker_LoadExisting(t *testing.T) {
	ws := t.TempDir()
	tracker, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	tracker.dirty = true
	tracker.Track("gemini", "gemini-2.0-flash", 7, 3, "demo")
	if err := tracker.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewTracker(ws)
	if err != nil {
		t.Fatalf("NewTracker reload: %v", err)
	}
	stats := reloaded.Stats()
	if got := stats.ByOperation["demo"]; got.Total != 10 {
		t.Fatalf("ByOperation[demo]=%+v, want total=10", got)
	}
}
