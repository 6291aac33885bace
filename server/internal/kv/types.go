package kv

// Controller is the live side of a running job, usually a *process.Handle.
type Controller interface {
	Terminate() error
	Pause() error
	Resume() error
}

// Result describes the file produced by a successful download.
type Result struct {
	File      string
	SizeBytes int64
	Size      string
	Format    string
}

// Published on TopicJobUpdate after every mutation, carries an internal.Job.
const TopicJobUpdate = "job:update"
