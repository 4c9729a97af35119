package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/vietstart-api/internal/middleware"
	"github.com/arturoeanton/vietstart-api/internal/port"
	"github.com/arturoeanton/vietstart-api/internal/service"
)

// Job states.
const (
	JobRunning  = "running"
	JobComplete = "complete"
	JobError    = "error"
)

// JobStatus is the state of a background re-embedding job.
type JobStatus struct {
	ID          string               `json:"id"`
	Kind        string               `json:"kind"`
	Status      string               `json:"status"`
	Progress    int                  `json:"progress"`
	Total       int                  `json:"total"`
	Report      *service.BatchReport `json:"report,omitempty"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at,omitzero"`
}

func (j *JobStatus) done() bool {
	return j.Status == JobComplete || j.Status == JobError
}

// JobTracker keeps jobs in memory and fans out updates to SSE subscribers.
// Jobs do not survive a restart.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
	subs map[string][]chan JobStatus
}

// NewJobTracker creates a new job tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{
		jobs: make(map[string]*JobStatus),
		subs: make(map[string][]chan JobStatus),
	}
}

// CreateJob registers a running job.
func (t *JobTracker) CreateJob(id, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[id] = &JobStatus{
		ID:        id,
		Kind:      kind,
		Status:    JobRunning,
		StartedAt: time.Now(),
	}
}

// UpdateProgress records progress and notifies subscribers.
func (t *JobTracker) UpdateProgress(id string, done, total int) {
	t.update(id, func(job *JobStatus) {
		job.Progress = done
		job.Total = total
	})
}

// Finish marks the job complete, or failed when err is non-nil.
func (t *JobTracker) Finish(id string, report service.BatchReport, err error) {
	t.update(id, func(job *JobStatus) {
		job.Report = &report
		job.Status = JobComplete
		if err != nil {
			job.Status = JobError
			job.Error = err.Error()
		}
		job.CompletedAt = time.Now()
	})
}

func (t *JobTracker) update(id string, apply func(*JobStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	apply(job)
	snapshot := *job

	// Sends never block. A full buffer drops its oldest update so the
	// latest one, including the final status, always gets through.
	for _, ch := range t.subs[id] {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// GetJob returns a snapshot of a job.
func (t *JobTracker) GetJob(id string) (*JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// Subscribe returns a channel that receives job updates.
func (t *JobTracker) Subscribe(id string) chan JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan JobStatus, 10)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (t *JobTracker) Unsubscribe(id string, ch chan JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(t.subs[id]) == 0 {
		delete(t.subs, id)
	}
	close(ch)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	tracker    *JobTracker
	sseTimeout time.Duration
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(tracker *JobTracker) *JobsHandler {
	return &JobsHandler{tracker: tracker, sseTimeout: 5 * time.Minute}
}

// Register sets up job routes.
func (h *JobsHandler) Register(router fiber.Router) {
	jobs := router.Group("/jobs", middleware.RequireAdmin())
	jobs.Get("/:id", h.GetStatus)
	jobs.Get("/:id/stream", h.StreamSSE)
}

// GetStatus returns the current job status.
func (h *JobsHandler) GetStatus(c fiber.Ctx) error {
	job, ok := h.tracker.GetJob(c.Params("id"))
	if !ok {
		return respondError(c, port.ErrJobNotFound)
	}
	return c.JSON(job)
}

// StreamSSE streams job updates as Server-Sent Events until the job ends.
func (h *JobsHandler) StreamSSE(c fiber.Ctx) error {
	id := c.Params("id")

	// Subscribe before the snapshot so no update is lost in between.
	ch := h.tracker.Subscribe(id)
	job, ok := h.tracker.GetJob(id)
	if !ok {
		h.tracker.Unsubscribe(id, ch)
		return respondError(c, port.ErrJobNotFound)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	if job.done() {
		h.tracker.Unsubscribe(id, ch)
		return c.SendString(sseEvent(job.Status, job))
	}

	timeout := h.sseTimeout
	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.tracker.Unsubscribe(id, ch)

		fmt.Fprint(w, sseEvent("progress", job))
		if err := w.Flush(); err != nil {
			return
		}

		deadline := time.After(timeout)
		for {
			select {
			case update := <-ch:
				event := "progress"
				if update.done() {
					event = update.Status
				}
				fmt.Fprint(w, sseEvent(event, &update))
				if err := w.Flush(); err != nil {
					return
				}
				if update.done() {
					return
				}
			case <-deadline:
				slog.Warn("SSE timeout", "job_id", id)
				return
			}
		}
	})
}

func sseEvent(event string, job *JobStatus) string {
	data, _ := json.Marshal(job)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}
