package music

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Purpose is the therapeutic intent a track is tagged with.
type Purpose string

const (
	Calm     Purpose = "calm"
	Uplift   Purpose = "uplift"
	Focus    Purpose = "focus"
	Sleep    Purpose = "sleep"
	Energize Purpose = "energize"
)

// Track is a catalog entry.
type Track struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Artist      string   `yaml:"artist" json:"artist"`
	Genre       string   `yaml:"genre" json:"genre"`
	BPM         int      `yaml:"bpm" json:"bpm"`
	Moods       []string `yaml:"moods" json:"moods"`
	Purpose     Purpose  `yaml:"purpose" json:"purpose"`
	DurationSec int      `yaml:"duration_sec" json:"durationSec"`
	URL         string   `yaml:"url" json:"url"`
}

// Session records one listening session and the mood around it.
type Session struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string     `gorm:"type:varchar(36);index;not null" json:"userId"`
	TrackID     string     `gorm:"type:varchar(64);index" json:"trackId"`
	MoodBefore  int        `json:"moodBefore"`
	MoodAfter   *int       `json:"moodAfter,omitempty"`
	DurationSec int        `json:"durationSec"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
}

// Effectiveness summarises finished sessions for one track.
type Effectiveness struct {
	TrackID       string  `json:"trackId"`
	Title         string  `json:"title,omitempty"`
	Sessions      int     `json:"sessions"`
	AvgMoodDelta  float64 `json:"avgMoodDelta"`
	TotalListened int     `json:"totalListenedSec"`
}

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Tracks []Track `yaml:"tracks"`
}

// LoadCatalog parses the embedded track catalog.
func LoadCatalog() ([]Track, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) ([]Track, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse music catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Tracks))
	for i, track := range file.Tracks {
		if track.ID == "" {
			return nil, fmt.Errorf("music catalog: track %d has no id", i)
		}
		if _, dup := seen[track.ID]; dup {
			return nil, fmt.Errorf("music catalog: duplicate track id %q", track.ID)
		}
		seen[track.ID] = struct{}{}

		switch track.Purpose {
		case Calm, Uplift, Focus, Sleep, Energize:
		default:
			return nil, fmt.Errorf("music catalog: track %q has unknown purpose %q", track.ID, track.Purpose)
		}
	}
	return file.Tracks, nil
}

// TableName overrides the gorm default.
func (Session) TableName() string { return "music_sessions" }
