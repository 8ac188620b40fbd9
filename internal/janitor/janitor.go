// Package janitor periodically removes the working directories of finished
// jobs and fails jobs whose worker slot no longer owns them.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nadzzz/interviewdesk/internal/jobs"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// JobTable is the part of the job manager the janitor needs.
type JobTable interface {
	Get(id string) (jobs.Job, error)
	RecoverOrphans() int
}

// Report summarises one sweep.
type Report struct {
	Removed    int
	Kept       int
	Orphaned   int
	Unreadable int
}

// Janitor sweeps a job store.
type Janitor struct {
	store     *jobs.Store
	table     JobTable
	retention time.Duration
	now       func() time.Time
}

// New creates a janitor removing terminal job directories older than retention.
func New(store *jobs.Store, table JobTable, retention time.Duration) *Janitor {
	return &Janitor{store: store, table: table, retention: retention, now: time.Now}
}

// ParseSchedule validates a 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("janitor schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Run sweeps on the given schedule until ctx is cancelled. An empty
// schedule disables the janitor.
func (j *Janitor) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		slog.Info("janitor disabled")
		<-ctx.Done()
		return nil
	}
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(sched, cron.FuncJob(func() { j.Sweep() }))
	c.Start()
	slog.Info("janitor started", "schedule", schedule, "retention", j.retention)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Sweep runs one pass. Directories of jobs still live in this process are
// only removed once the job is terminal.
func (j *Janitor) Sweep() Report {
	var rep Report
	if j.table != nil {
		rep.Orphaned = j.table.RecoverOrphans()
	}

	ids, err := j.store.IDs()
	if err != nil {
		slog.Error("janitor listing failed", "error", err)
		return rep
	}

	cutoff := j.now().Add(-j.retention)
	for _, id := range ids {
		job, err := j.lookup(id)
		if err != nil {
			if !errors.Is(err, jobs.ErrNotFound) {
				slog.Warn("janitor skipping unreadable record", "job_id", id, "error", err)
			}
			rep.Unreadable++
			continue
		}
		if !job.Status.Terminal() || job.FinishedAt == nil || job.FinishedAt.After(cutoff) {
			rep.Kept++
			continue
		}
		if err := j.store.Remove(id); err != nil {
			slog.Warn("janitor remove failed", "job_id", id, "error", err)
			continue
		}
		rep.Removed++
	}

	if rep.Removed > 0 || rep.Orphaned > 0 {
		slog.Info("janitor sweep", "removed", rep.Removed, "kept", rep.Kept, "orphaned", rep.Orphaned)
	}
	return rep
}

// lookup prefers the in-memory job over its record file.
func (j *Janitor) lookup(id string) (jobs.Job, error) {
	if j.table != nil {
		if job, err := j.table.Get(id); err == nil {
			return job, nil
		}
	}
	return j.store.Load(id)
}
