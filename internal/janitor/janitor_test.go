package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nadzzz/interviewdesk/internal/jobs"
)

type fakeTable struct {
	live      map[string]jobs.Job
	recovered int
	calls     int
}

func (f *fakeTable) Get(id string) (jobs.Job, error) {
	j, ok := f.live[id]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return j, nil
}

func (f *fakeTable) RecoverOrphans() int {
	f.calls++
	return f.recovered
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	old := now.Add(-8 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	store := jobs.NewStore(t.TempDir())
	save := func(id string, status jobs.Status, finished *time.Time) {
		t.Helper()
		if err := store.Save(jobs.Job{ID: id, Status: status, FinishedAt: finished}); err != nil {
			t.Fatal(err)
		}
		os.WriteFile(filepath.Join(store.JobDir(id), "audio.wav"), []byte("RIFF"), 0o644)
	}
	save("old-done", jobs.StatusSucceeded, &old)
	save("old-failed", jobs.StatusFailed, &old)
	save("recent-done", jobs.StatusSucceeded, &recent)
	save("stale-running", jobs.StatusRunning, nil)
	// The record says terminal but this process still runs it.
	save("live-running", jobs.StatusSucceeded, &old)
	os.MkdirAll(store.JobDir("no-record"), 0o755)

	table := &fakeTable{
		live:      map[string]jobs.Job{"live-running": {ID: "live-running", Status: jobs.StatusRunning}},
		recovered: 2,
	}
	j := New(store, table, 7*24*time.Hour)
	j.now = func() time.Time { return now }

	rep := j.Sweep()
	if rep.Removed != 2 || rep.Kept != 3 || rep.Unreadable != 1 || rep.Orphaned != 2 {
		t.Errorf("report = %+v", rep)
	}
	if table.calls != 1 {
		t.Errorf("RecoverOrphans called %d times", table.calls)
	}

	for id, want := range map[string]bool{
		"old-done":      false,
		"old-failed":    false,
		"recent-done":   true,
		"stale-running": true,
		"live-running":  true,
		"no-record":     true,
	} {
		_, err := os.Stat(store.JobDir(id))
		if exists := err == nil; exists != want {
			t.Errorf("%s exists = %v, want %v", id, exists, want)
		}
	}
}

func TestSweepMissingWorkDir(t *testing.T) {
	j := New(jobs.NewStore(filepath.Join(t.TempDir(), "absent")), nil, time.Hour)
	if rep := j.Sweep(); rep != (Report{}) {
		t.Errorf("report = %+v", rep)
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/15 * * * *", false},
		{"0 3 * * 1", false},
		{"* * * * * *", true},
		{"every hour", true},
	}
	for _, tt := range tests {
		if _, err := ParseSchedule(tt.expr); (err != nil) != tt.wantErr {
			t.Errorf("ParseSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	j := New(jobs.NewStore(t.TempDir()), nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- j.Run(ctx, "* * * * *") }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if err := j.Run(context.Background(), "bogus"); err == nil {
		t.Error("Run accepted an invalid schedule")
	}
}
