package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/interviewdesk/internal/process"
)

// Hooks let a running job report progress and diagnostic output.
type Hooks struct {
	Progress func(percent int, message string)
	Log      func(line string)
}

// Runner executes one job and returns its transcript.
type Runner interface {
	Run(ctx context.Context, job Job, hooks Hooks) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job Job, hooks Hooks) (string, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, job Job, hooks Hooks) (string, error) {
	return f(ctx, job, hooks)
}

// Options configure a Manager.
type Options struct {
	Workers      int    // execution contexts, default 1
	LogTailLines int    // lines kept per job, default 80
	Store        *Store // optional record store
}

// orphanMessage is the error of a job whose worker died under it.
const orphanMessage = "worker restarted; job orphaned"

// Manager is the sole owner and mutator of the job table.
type Manager struct {
	runner Runner
	opts   Options

	mu      sync.RWMutex
	jobs    map[string]*Job
	tails   map[string]*process.Tail
	queue   []string       // queued ids, oldest first
	running map[int]string // worker slot -> job id
	wake    chan struct{}

	persistMu sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewManager creates a manager that runs jobs through runner.
func NewManager(runner Runner, opts Options) *Manager {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.LogTailLines < 1 {
		opts.LogTailLines = 80
	}
	return &Manager{
		runner:  runner,
		opts:    opts,
		jobs:    make(map[string]*Job),
		tails:   make(map[string]*process.Tail),
		running: make(map[int]string),
		wake:    make(chan struct{}, 1),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Submit enqueues a job for inputRef and returns its id immediately.
func (m *Manager) Submit(inputRef string, mode Mode) (string, error) {
	switch mode {
	case ModeLocal, ModeAPI:
	default:
		return "", ErrInvalidMode
	}

	m.mu.Lock()
	job := &Job{
		ID:        m.newID(),
		Status:    StatusQueued,
		Mode:      mode,
		InputRef:  inputRef,
		Message:   "queued",
		CreatedAt: m.now(),
	}
	m.jobs[job.ID] = job
	m.tails[job.ID] = process.NewTail(m.opts.LogTailLines)
	m.queue = append(m.queue, job.ID)
	m.mu.Unlock()

	m.persist(job.ID)
	m.signal()
	slog.Info("job submitted", "job_id", job.ID, "mode", mode)
	return job.ID, nil
}

// Get returns a snapshot of a job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job.clone(), nil
}

// Counts returns the number of jobs per status.
func (m *Manager) Counts() map[Status]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[Status]int, 4)
	for _, j := range m.jobs {
		counts[j.Status]++
	}
	return counts
}

// Run starts the workers and blocks until ctx is done and every in-flight
// job has reached a terminal state. Stale records of a previous process are
// failed first.
func (m *Manager) Run(ctx context.Context) error {
	if m.opts.Store != nil {
		n, err := m.opts.Store.FailStale(m.now(), func(id string) bool {
			_, err := m.Get(id)
			return err == nil
		})
		if err != nil {
			slog.Warn("recovering stale job records", "error", err)
		} else if n > 0 {
			slog.Warn("failed stale jobs from a previous run", "count", n)
		}
	}

	slog.Info("job workers starting", "workers", m.opts.Workers)
	var wg sync.WaitGroup
	for slot := 0; slot < m.opts.Workers; slot++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.supervise(ctx, slot)
		}()
	}
	wg.Wait()
	slog.Info("job workers stopped")
	return nil
}

// supervise keeps one worker slot alive, restarting it after a panic.
func (m *Manager) supervise(ctx context.Context, slot int) {
	for {
		if !m.work(ctx, slot) {
			return
		}
		m.failSlot(slot)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("restarting job worker", "worker", slot)
	}
}

// work processes jobs until ctx is done. It reports whether it stopped
// because of a panic.
func (m *Manager) work(ctx context.Context, slot int) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job worker panicked", "worker", slot, "panic", r)
			panicked = true
		}
	}()

	for {
		id, ok := m.claim(slot)
		if !ok {
			select {
			case <-ctx.Done():
				return false
			case <-m.wake:
				continue
			}
		}
		m.execute(ctx, slot, id)
		if ctx.Err() != nil {
			return false
		}
	}
}

// claim pops the oldest queued job and marks it running under slot.
func (m *Manager) claim(slot int) (string, bool) {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return "", false
	}
	id := m.queue[0]
	m.queue = m.queue[1:]
	more := len(m.queue) > 0

	job := m.jobs[id]
	started := m.now()
	job.Status = StatusRunning
	job.StartedAt = &started
	job.Message = "running"
	m.running[slot] = id
	m.mu.Unlock()

	if more {
		m.signal()
	}
	m.persist(id)
	return id, true
}

func (m *Manager) execute(ctx context.Context, slot int, id string) {
	job, _ := m.Get(id)
	logger := slog.With("job_id", id, "mode", job.Mode, "worker", slot)
	logger.Info("job started")

	start := time.Now()
	text, err := m.runner.Run(ctx, job, Hooks{
		Progress: func(percent int, message string) { m.progress(id, percent, message) },
		Log:      func(line string) { m.log(id, line) },
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("transcription produced no text")
	}
	if err != nil {
		logger.Error("job failed", "error", err, "duration", time.Since(start))
		m.finish(slot, id, "", err)
		return
	}
	logger.Info("job succeeded", "text_length", len(text), "duration", time.Since(start))
	m.finish(slot, id, text, nil)
}

// finish applies the single terminal transition of a running job.
func (m *Manager) finish(slot int, id, text string, runErr error) {
	m.mu.Lock()
	if m.running[slot] == id {
		delete(m.running, slot)
	}
	job := m.jobs[id]
	if job.Status != StatusRunning {
		m.mu.Unlock()
		return
	}
	finished := m.now()
	job.FinishedAt = &finished
	if runErr != nil {
		job.Status = StatusFailed
		job.ErrorMessage = runErr.Error()
		if job.ErrorMessage == "" {
			job.ErrorMessage = "job failed"
		}
		job.Message = job.ErrorMessage
		job.LogTail = m.tails[id].Lines()
	} else {
		job.Status = StatusSucceeded
		job.ResultText = text
		job.Progress = 100
		job.Message = "done"
	}
	delete(m.tails, id)
	m.mu.Unlock()

	m.persist(id)
}

func (m *Manager) progress(id string, percent int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	if job == nil || job.Status != StatusRunning {
		return
	}
	if percent > job.Progress {
		job.Progress = min(percent, 100)
	}
	if message != "" {
		job.Message = message
	}
}

func (m *Manager) log(id, line string) {
	m.mu.RLock()
	tail := m.tails[id]
	m.mu.RUnlock()
	if tail != nil {
		tail.Add(line)
	}
}

// failSlot fails the job a dead worker left running.
func (m *Manager) failSlot(slot int) {
	m.mu.RLock()
	id, ok := m.running[slot]
	m.mu.RUnlock()
	if ok {
		slog.Warn("failing orphaned job", "job_id", id, "worker", slot)
		m.finish(slot, id, "", errors.New(orphanMessage))
	}
}

// RecoverOrphans fails every running job no live worker owns and returns
// how many it failed.
func (m *Manager) RecoverOrphans() int {
	m.mu.Lock()
	owned := make(map[string]bool, len(m.running))
	for _, id := range m.running {
		owned[id] = true
	}
	var orphans []string
	for id, job := range m.jobs {
		if job.Status != StatusRunning || owned[id] {
			continue
		}
		finished := m.now()
		job.Status = StatusFailed
		job.ErrorMessage = orphanMessage
		job.Message = job.ErrorMessage
		job.FinishedAt = &finished
		if tail := m.tails[id]; tail != nil {
			job.LogTail = tail.Lines()
		}
		delete(m.tails, id)
		orphans = append(orphans, id)
	}
	m.mu.Unlock()

	for _, id := range orphans {
		slog.Warn("failed orphaned job", "job_id", id)
		m.persist(id)
	}
	return len(orphans)
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// persist writes the current state of a job. Writes are serialized and
// always take a fresh snapshot, so the last write wins with the latest state.
func (m *Manager) persist(id string) {
	if m.opts.Store == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	job, err := m.Get(id)
	if err != nil {
		return
	}
	if err := m.opts.Store.Save(job); err != nil {
		slog.Warn("writing job record", "job_id", job.ID, "error", fmt.Errorf("status %s: %w", job.Status, err))
	}
}
