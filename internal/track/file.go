package track

import "github.com/NikitaSH999/AudioViz/internal/audio"

// SourceFile is the source reported for records taken from a capture file.
const SourceFile = "file"

// FilePayload builds the record announced while a local file is the capture
// source. A userscript POST replaces it as usual.
func FilePayload(m audio.Metadata) Payload {
	p := Payload{
		Title:  m.Title,
		Album:  m.Album,
		Source: SourceFile,
	}
	if m.Artist != "" {
		p.Artists = []string{m.Artist}
	}
	return p
}
