package library

import (
	"strings"
	"time"
)

// Kind distinguishes movies from TV episodes.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindEpisode Kind = "episode"
)

// MediaItem is a source video file with its probed metadata. Items are
// immutable once probed except on re-scan; the transcode engine only reads
// them.
type MediaItem struct {
	ID          string
	Path        string
	Title       string
	Kind        Kind
	Container   string
	VideoCodec  string
	AudioCodec  string
	Width       int
	Height      int
	Duration    float64
	BitRate     int64
	Size        int64
	Fingerprint string
	ScannedAt   time.Time
}

// ParseKind converts a stored string into a Kind, defaulting to movie.
func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(KindEpisode):
		return KindEpisode
	default:
		return KindMovie
	}
}
