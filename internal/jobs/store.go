package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// RecordFile is the per-job record written inside the job directory.
const RecordFile = "job.yaml"

// Store writes job records under <dir>/<id>/job.yaml. Records are a
// diagnostic trail; the in-memory table remains authoritative.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// JobDir returns the working directory of a job.
func (s *Store) JobDir(id string) string {
	return filepath.Join(s.dir, id)
}

// Save writes the record atomically.
func (s *Store) Save(job Job) error {
	dir := s.JobDir(job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating job dir: %w", err)
	}

	data, err := yaml.Marshal(&job)
	if err != nil {
		return fmt.Errorf("marshalling job record: %w", err)
	}

	tmp, err := os.CreateTemp(dir, RecordFile+".*")
	if err != nil {
		return fmt.Errorf("creating job record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing job record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing job record: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, RecordFile)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming job record: %w", err)
	}
	return nil
}

// Load reads a job record.
func (s *Store) Load(id string) (Job, error) {
	data, err := os.ReadFile(filepath.Join(s.JobDir(id), RecordFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("reading job record: %w", err)
	}
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("decoding job record %s: %w", id, err)
	}
	return job, nil
}

// FailStale rewrites every record still queued or running, which a previous
// process left behind, as failed. Records for which live reports true are
// left alone. It returns the number of records rewritten.
func (s *Store) FailStale(now time.Time, live func(id string) bool) (int, error) {
	ids, err := s.IDs()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		if live != nil && live(id) {
			continue
		}
		job, err := s.Load(id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				slog.Warn("skipping unreadable job record", "job_id", id, "error", err)
			}
			continue
		}
		if job.Status.Terminal() {
			continue
		}

		job.Status = StatusFailed
		job.ErrorMessage = "process restarted; job orphaned"
		job.Message = job.ErrorMessage
		finished := now
		job.FinishedAt = &finished
		if err := s.Save(job); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// IDs lists the job directories under the store root.
func (s *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing work dir: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Remove deletes a job directory and everything in it.
func (s *Store) Remove(id string) error {
	if id == "" || id != filepath.Base(id) {
		return fmt.Errorf("invalid job id %q", id)
	}
	if err := os.RemoveAll(s.JobDir(id)); err != nil {
		return fmt.Errorf("removing job dir: %w", err)
	}
	return nil
}
