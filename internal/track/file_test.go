package track

import (
	"testing"

	"github.com/NikitaSH999/AudioViz/internal/audio"
)

func TestFilePayload(t *testing.T) {
	store := NewStore()

	got := store.Update(FilePayload(audio.Metadata{Title: "Song", Artist: "Band", Album: "LP"}))
	if got.Status != StatusPlaying {
		t.Errorf("Expected status %s, got %s", StatusPlaying, got.Status)
	}
	if got.Source != SourceFile {
		t.Errorf("Expected source %s, got %s", SourceFile, got.Source)
	}
	if len(got.Artists) != 1 || got.Artists[0] != "Band" {
		t.Errorf("Expected artists [Band], got %v", got.Artists)
	}

	got = store.Update(FilePayload(audio.Metadata{Title: "untitled"}))
	if got.Artists == nil || len(got.Artists) != 0 {
		t.Errorf("Expected empty artists, got %v", got.Artists)
	}
	if got.ProgressPercent != 0 {
		t.Errorf("Expected 0 progress percent without duration, got %f", got.ProgressPercent)
	}
}
