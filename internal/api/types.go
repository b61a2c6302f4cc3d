package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a transcode job in a transport-friendly format.
type Job struct {
	ID           string  `json:"id"`
	MediaID      string  `json:"mediaId"`
	MediaTitle   string  `json:"mediaTitle,omitempty"`
	Preset       string  `json:"preset"`
	Priority     int     `json:"priority"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	ChosenPath   string  `json:"chosenPath,omitempty"`
	OutputPath   string  `json:"outputPath,omitempty"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	RetryCount   int     `json:"retryCount"`
	QueuedAt     string  `json:"queuedAt,omitempty"`
	StartedAt    string  `json:"startedAt,omitempty"`
	EndedAt      string  `json:"endedAt,omitempty"`
}

// Media describes a library entry.
type Media struct {
	ID         string  `json:"id"`
	Path       string  `json:"path"`
	Title      string  `json:"title"`
	Kind       string  `json:"kind"`
	Container  string  `json:"container"`
	VideoCodec string  `json:"videoCodec"`
	AudioCodec string  `json:"audioCodec"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Duration   float64 `json:"duration"`
	Size       int64   `json:"size"`
}

// Capability reports one acceleration backend probe outcome.
type Capability struct {
	Backend  string `json:"backend"`
	Device   string `json:"device,omitempty"`
	Working  bool   `json:"working"`
	Detail   string `json:"detail,omitempty"`
	ProbedAt string `json:"probedAt,omitempty"`
}

// HardwareReport aggregates backend capabilities from one probe cycle.
type HardwareReport struct {
	Capabilities []Capability `json:"capabilities"`
	ProbedAt     string       `json:"probedAt,omitempty"`
}

// JobEvent is one entry in the job progress feed.
type JobEvent struct {
	JobID      string  `json:"jobId"`
	Status     string  `json:"status"`
	Progress   float64 `json:"progress"`
	ChosenPath string  `json:"chosenPath,omitempty"`
}

// QueueStats provides a normalized per-status count payload.
type QueueStats struct {
	Counts map[string]int `json:"counts"`
}
