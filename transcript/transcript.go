// Package transcript fetches YouTube caption tracks, either directly from
// YouTube or through the transcript service, and serves them over HTTP.
package transcript

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrNotAvailable means the video has no usable captions
	ErrNotAvailable = errors.New("transcript not available")
	// ErrVideoUnavailable means YouTube refused to play the video
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrInvalidVideoID means the id cannot be a YouTube video id
	ErrInvalidVideoID = errors.New("invalid video id")
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Segment is one timed caption line
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Join flattens segments into a single space-separated transcript
func Join(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}

// ValidVideoID reports whether id looks like a YouTube video id
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}
