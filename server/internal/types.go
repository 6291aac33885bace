package internal

import "time"

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal states never transition again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Live states own a process handle.
func (s Status) IsLive() bool {
	return s == StatusRunning || s == StatusPaused
}

// Job is a point in time copy of a download job. The authoritative record
// lives in the kv.Store.
type Job struct {
	Id       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Quality  string `json:"quality"`

	Status   Status  `json:"status"`
	Progress string  `json:"progress"`
	Percent  float64 `json:"percent"`

	File          string `json:"file,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
	FileSize      string `json:"file_size,omitempty"`
	FileFormat    string `json:"file_format,omitempty"`

	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Used to unmarshall download requests
type DownloadRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Quality  string `json:"quality"`
}

// A single available quality/format variant of a source video
type Rendition struct {
	FormatId    string  `json:"format_id"`
	Resolution  string  `json:"resolution"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Ext         string  `json:"ext"`
	Filesize    int64   `json:"filesize"`
	FilesizeStr string  `json:"filesize_str"`
	FPS         float64 `json:"fps"`
	VCodec      string  `json:"vcodec"`
	ACodec      string  `json:"acodec"`
}

type FormatsResult struct {
	Title    string      `json:"title"`
	Duration float64     `json:"duration"`
	Formats  []Rendition `json:"formats"`
}
