package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
)

func TestReadMetadataFromTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: false})
	if err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}
	tag.SetTitle("  Windowlicker ")
	tag.SetArtist("Aphex Twin")
	tag.SetAlbum("Windowlicker EP")
	if err := tag.Save(); err != nil {
		t.Fatalf("Failed to save tag: %v", err)
	}
	tag.Close()

	m := ReadMetadata(path)
	if m.Title != "Windowlicker" {
		t.Errorf("Expected trimmed title, got %q", m.Title)
	}
	if m.Artist != "Aphex Twin" || m.Album != "Windowlicker EP" {
		t.Errorf("Unexpected metadata %+v", m)
	}
}

func TestReadMetadataFallsBackToFileName(t *testing.T) {
	path := writeTestWAV(t, 8000, 1, []int{1, 2, 3})

	m := ReadMetadata(path)
	if m.Title != "test" {
		t.Errorf("Expected title from file name, got %q", m.Title)
	}
	if m.Artist != "" || m.Album != "" {
		t.Errorf("Expected no artist or album, got %+v", m)
	}

	m = ReadMetadata(filepath.Join(t.TempDir(), "missing track.flac"))
	if m.Title != "missing track" {
		t.Errorf("Expected title from missing file name, got %q", m.Title)
	}
}
