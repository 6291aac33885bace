package kv

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal/progress"
)

type record struct {
	mu     sync.Mutex
	job    internal.Job
	handle Controller
}

// In-Memory Thread-Safe job registry.
//
// The table lock only guards the map, each record carries its own lock so
// transitions are serialized per job while different jobs proceed in
// parallel.
type Store struct {
	table map[string]*record
	mu    sync.RWMutex
	bus   EventBus.Bus
}

func NewStore(bus EventBus.Bus) *Store {
	return &Store{
		table: make(map[string]*record),
		bus:   bus,
	}
}

// Create a queued job and return a snapshot of it
func (m *Store) Create(req internal.DownloadRequest) internal.Job {
	now := time.Now()

	r := &record{
		job: internal.Job{
			Id:        uuid.NewString(),
			URL:       req.URL,
			Filename:  req.Filename,
			Quality:   req.Quality,
			Status:    internal.StatusQueued,
			Progress:  "Queued...",
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	m.mu.Lock()
	m.table[r.job.Id] = r
	m.mu.Unlock()

	m.publish(r.job)
	return r.job
}

func (m *Store) lookup(id string) (*record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.table[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, internal.ErrNotFound)
	}
	return r, nil
}

// Get a job snapshot given its id
func (m *Store) Get(id string) (internal.Job, error) {
	r, err := m.lookup(id)
	if err != nil {
		return internal.Job{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job, nil
}

func (m *Store) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.table))
	for id := range m.table {
		keys = append(keys, id)
	}
	return keys
}

// Returns a snapshot of every job, oldest first
func (m *Store) All() []internal.Job {
	m.mu.RLock()
	records := make([]*record, 0, len(m.table))
	for _, r := range m.table {
		records = append(records, r)
	}
	m.mu.RUnlock()

	jobs := make([]internal.Job, 0, len(records))
	for _, r := range records {
		r.mu.Lock()
		jobs = append(jobs, r.job)
		r.mu.Unlock()
	}

	slices.SortFunc(jobs, func(a, b internal.Job) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})

	return jobs
}

// update runs fn with the record lock held and publishes the resulting
// snapshot when fn succeeds.
func (m *Store) update(id string, fn func(r *record) error) error {
	r, err := m.lookup(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if err := fn(r); err != nil {
		r.mu.Unlock()
		return err
	}
	r.job.UpdatedAt = time.Now()
	snap := r.job
	r.mu.Unlock()

	m.publish(snap)
	return nil
}

func invalid(job internal.Job, to internal.Status) error {
	return fmt.Errorf("job %s: %s -> %s: %w", job.Id, job.Status, to, internal.ErrInvalidTransition)
}

// MarkRunning attaches the process handle of a freshly launched job. It fails
// when the job left the queued state in the meantime (i.e. it got cancelled);
// the caller then owns h and must terminate it.
func (m *Store) MarkRunning(id string, h Controller) error {
	return m.update(id, func(r *record) error {
		if r.job.Status != internal.StatusQueued || r.handle != nil {
			return invalid(r.job, internal.StatusRunning)
		}
		r.handle = h
		r.job.Status = internal.StatusRunning
		r.job.Progress = "Starting download..."
		return nil
	})
}

// ApplyProgress records a parsed output line. Updates reaching a job that is
// no longer live are dropped.
func (m *Store) ApplyProgress(id string, u progress.Update) error {
	if u.Empty() {
		return nil
	}
	return m.update(id, func(r *record) error {
		if !r.job.Status.IsLive() {
			return invalid(r.job, r.job.Status)
		}
		r.job.Progress = u.Message
		if u.HasPercent {
			r.job.Percent = u.Percent
		}
		return nil
	})
}

// Complete records a successful exit. A paused job is accepted as well: a
// pause can land on a process that already exited but was not reaped yet,
// and its output is final.
func (m *Store) Complete(id string, res Result) error {
	return m.update(id, func(r *record) error {
		if r.job.Status != internal.StatusRunning && r.job.Status != internal.StatusPaused {
			return invalid(r.job, internal.StatusCompleted)
		}
		r.handle = nil
		r.job.Status = internal.StatusCompleted
		r.job.File = res.File
		r.job.FileSizeBytes = res.SizeBytes
		r.job.FileSize = res.Size
		r.job.FileFormat = res.Format
		r.job.Progress = fmt.Sprintf("Download completed! (%s, %s)", res.Size, res.Format)
		return nil
	})
}

// Fail moves a non terminal job to the error state. A cancelled job stays
// cancelled.
func (m *Store) Fail(id string, detail string) error {
	return m.update(id, func(r *record) error {
		if r.job.Status.IsTerminal() {
			return invalid(r.job, internal.StatusError)
		}
		r.handle = nil
		r.job.Status = internal.StatusError
		r.job.Error = detail
		r.job.Progress = detail
		return nil
	})
}

// Cancel moves a non terminal job to cancelled and terminates its process.
// The handle is detached under the record lock and terminated outside of it.
func (m *Store) Cancel(id string) error {
	var h Controller

	err := m.update(id, func(r *record) error {
		if r.job.Status.IsTerminal() {
			return invalid(r.job, internal.StatusCancelled)
		}
		h = r.handle
		r.handle = nil
		r.job.Status = internal.StatusCancelled
		r.job.Progress = "Download cancelled by user"
		return nil
	})
	if err != nil {
		return err
	}

	if h != nil {
		if err := h.Terminate(); err != nil {
			slog.Warn("failed terminating cancelled job", slog.String("id", id), slog.Any("err", err))
		}
	}

	return nil
}

func (m *Store) Pause(id string) error {
	return m.update(id, func(r *record) error {
		if r.job.Status != internal.StatusRunning || r.handle == nil {
			return invalid(r.job, internal.StatusPaused)
		}
		if err := r.handle.Pause(); err != nil {
			return fmt.Errorf("job %s: pause: %w", id, err)
		}
		r.job.Status = internal.StatusPaused
		return nil
	})
}

func (m *Store) Resume(id string) error {
	return m.update(id, func(r *record) error {
		if r.job.Status != internal.StatusPaused || r.handle == nil {
			return invalid(r.job, internal.StatusRunning)
		}
		if err := r.handle.Resume(); err != nil {
			return fmt.Errorf("job %s: resume: %w", id, err)
		}
		r.job.Status = internal.StatusRunning
		return nil
	})
}

// Removes a terminal job from the registry
func (m *Store) Delete(id string) error {
	r, err := m.lookup(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.job.Status.IsTerminal() {
		return invalid(r.job, r.job.Status)
	}

	m.mu.Lock()
	delete(m.table, id)
	m.mu.Unlock()

	return nil
}

// CancelAll cancels every non terminal job, used on shutdown.
func (m *Store) CancelAll() {
	for _, id := range m.Keys() {
		if err := m.Cancel(id); err == nil {
			slog.Info("cancelled job", slog.String("id", id))
		}
	}
}

// HasHandle reports whether a process handle is attached to the job.
func (m *Store) HasHandle(id string) bool {
	r, err := m.lookup(id)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle != nil
}

func (m *Store) publish(job internal.Job) {
	if m.bus != nil {
		m.bus.Publish(TopicJobUpdate, job)
	}
}
