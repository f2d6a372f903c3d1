package track

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Status values
const (
	StatusPlaying = "playing"
	StatusStopped = "stopped"
)

// NextTrack describes the upcoming queue entry when the player exposes one.
type NextTrack struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Cover  string `json:"cover"`
}

// Track is the current "now playing" record.
type Track struct {
	Status          string     `json:"status"`
	Title           string     `json:"title"`
	Artists         []string   `json:"artists"`
	Album           string     `json:"album"`
	Cover           string     `json:"cover"`
	CoverURL        string     `json:"cover_url"`
	Progress        float64    `json:"progress"` // ms
	Duration        float64    `json:"duration"` // ms
	ProgressPercent float64    `json:"progress_percent"`
	Source          string     `json:"source"`
	NextTrack       *NextTrack `json:"next_track"`
}

// Payload is a track update as sent by the userscript. Pointer fields
// distinguish a missing key from an empty value.
type Payload struct {
	Status    *string    `json:"status"`
	Title     string     `json:"title"`
	Artists   []string   `json:"artists"`
	Album     string     `json:"album"`
	Cover     *string    `json:"cover"`
	CoverURL  *string    `json:"cover_url"`
	Progress  float64    `json:"progress"`
	Duration  float64    `json:"duration"`
	Source    string     `json:"source"`
	NextTrack *NextTrack `json:"next_track"`
}

// DecodePayload parses a request body. The userscript wraps the record as
// {"data": {...}, "hostname": ..., "date": ...}; a bare record is accepted too.
func DecodePayload(body []byte) (Payload, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Payload{}, fmt.Errorf("invalid track JSON: %w", err)
	}

	inner := body
	if data, ok := envelope["data"]; ok && bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		inner = data
	}

	var p Payload
	if err := json.Unmarshal(inner, &p); err != nil {
		return Payload{}, fmt.Errorf("invalid track payload: %w", err)
	}
	return p, nil
}

// Store holds the latest track record
type Store struct {
	mu        sync.RWMutex
	current   Track
	updatedAt time.Time
	updates   uint64
}

// NewStore creates a store whose record reads "stopped"
func NewStore() *Store {
	return &Store{
		current: Track{
			Status:  StatusStopped,
			Artists: []string{},
		},
	}
}

// Get returns a copy of the current record
func (s *Store) Get() Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// Update replaces the current record with p and returns the stored result.
func (s *Store) Update(p Payload) Track {
	t := Track{
		Status:    StatusPlaying,
		Title:     p.Title,
		Artists:   p.Artists,
		Album:     p.Album,
		Progress:  p.Progress,
		Duration:  p.Duration,
		Source:    p.Source,
		NextTrack: p.NextTrack,
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if t.Artists == nil {
		t.Artists = []string{}
	}

	// cover and cover_url each fall back to the other
	switch {
	case p.Cover != nil:
		t.Cover = *p.Cover
	case p.CoverURL != nil:
		t.Cover = *p.CoverURL
	}
	switch {
	case p.CoverURL != nil:
		t.CoverURL = *p.CoverURL
	case p.Cover != nil:
		t.CoverURL = *p.Cover
	}

	if t.Duration > 0 {
		t.ProgressPercent = t.Progress / t.Duration * 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = t
	s.updatedAt = time.Now()
	s.updates++
	return t.clone()
}

// Updates returns how many records have been stored and when the last one
// arrived.
func (s *Store) Updates() (uint64, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates, s.updatedAt
}

func (t Track) clone() Track {
	t.Artists = append([]string{}, t.Artists...)
	if t.NextTrack != nil {
		next := *t.NextTrack
		t.NextTrack = &next
	}
	return t
}
