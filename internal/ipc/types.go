package ipc

import "squish/internal/api"

// Job mirrors the shared job DTO for IPC callers.
type Job = api.Job

// Media mirrors the shared media DTO.
type Media = api.Media

// HardwareReport mirrors the shared capability DTO.
type HardwareReport = api.HardwareReport

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	PID         int            `json:"pid"`
	QueueDBPath string         `json:"queue_db_path"`
	LockPath    string         `json:"lock_path"`
	QueueStats  map[string]int `json:"queue_stats"`
	Hardware    HardwareReport `json:"hardware"`
	Presets     []string       `json:"presets"`
}

// SubmitRequest enqueues a transcode job.
type SubmitRequest struct {
	MediaID  string `json:"media_id"`
	Preset   string `json:"preset"`
	Priority int    `json:"priority"`
}

// SubmitResponse returns the enqueued job.
type SubmitResponse struct {
	Job Job `json:"job"`
}

// CancelRequest cancels a job by id.
type CancelRequest struct {
	ID string `json:"id"`
}

// CancelResponse returns the job after the cancel was applied or initiated.
type CancelResponse struct {
	Job Job `json:"job"`
}

// RetryRequest requeues a failed job.
type RetryRequest struct {
	ID string `json:"id"`
}

// RetryResponse returns the requeued job.
type RetryResponse struct {
	Job Job `json:"job"`
}

// ReorderRequest changes a queued job's priority.
type ReorderRequest struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
}

// ReorderResponse returns the reprioritized job.
type ReorderResponse struct {
	Job Job `json:"job"`
}

// PauseRequest suspends a running job.
type PauseRequest struct {
	ID string `json:"id"`
}

// PauseResponse returns the paused job.
type PauseResponse struct {
	Job Job `json:"job"`
}

// ResumeRequest continues a paused job.
type ResumeRequest struct {
	ID string `json:"id"`
}

// ResumeResponse returns the resumed job.
type ResumeResponse struct {
	Job Job `json:"job"`
}

// ListRequest filters job listing by status.
type ListRequest struct {
	Statuses []string `json:"statuses"`
}

// ListResponse contains job entries.
type ListResponse struct {
	Jobs []Job `json:"jobs"`
}

// DescribeRequest fetches a single job by id.
type DescribeRequest struct {
	ID string `json:"id"`
}

// DescribeResponse contains a single job.
type DescribeResponse struct {
	Job Job `json:"job"`
}

// RemoveJobRequest deletes a finished or queued job row.
type RemoveJobRequest struct {
	ID string `json:"id"`
}

// RemoveJobResponse reports whether a row was deleted.
type RemoveJobResponse struct {
	Removed bool `json:"removed"`
}

// ClearFinishedRequest removes completed, failed, and cancelled jobs.
type ClearFinishedRequest struct{}

// ClearFinishedResponse reports number of removed entries.
type ClearFinishedResponse struct {
	Removed int64 `json:"removed"`
}

// HardwareRequest fetches the current capability snapshot.
type HardwareRequest struct{}

// HardwareResponse reports backend capabilities.
type HardwareResponse struct {
	Report HardwareReport `json:"report"`
}

// RefreshHardwareRequest forces a capability re-probe.
type RefreshHardwareRequest struct{}

// RefreshHardwareResponse reports the fresh capabilities.
type RefreshHardwareResponse struct {
	Report HardwareReport `json:"report"`
}

// ScanRequest walks the media root for new files.
type ScanRequest struct{}

// ScanResponse reports how many items were added.
type ScanResponse struct {
	Added int `json:"added"`
}

// AddFileRequest ingests a single file into the library.
type AddFileRequest struct {
	Path string `json:"path"`
}

// AddFileResponse returns the ingested media item.
type AddFileResponse struct {
	Media Media `json:"media"`
}

// MediaListRequest fetches all library items.
type MediaListRequest struct{}

// MediaListResponse contains library entries.
type MediaListResponse struct {
	Items []Media `json:"items"`
}

// Event is one entry in the polling feed, tagged with its journal sequence.
type Event struct {
	Seq int64 `json:"seq"`
	api.JobEvent
}

// EventsRequest asks for feed entries at or after the cursor. A zero cursor
// starts from the oldest retained entry.
type EventsRequest struct {
	Cursor int64 `json:"cursor"`
	Limit  int   `json:"limit,omitempty"`
}

// EventsResponse carries feed entries plus the cursor for the next poll.
type EventsResponse struct {
	Events []Event `json:"events"`
	Cursor int64   `json:"cursor"`
}

// MediaRemoveRequest deletes a library item.
type MediaRemoveRequest struct {
	ID string `json:"id"`
}

// MediaRemoveResponse reports whether a row was deleted.
type MediaRemoveResponse struct {
	Removed bool `json:"removed"`
}
