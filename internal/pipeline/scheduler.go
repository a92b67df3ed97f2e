package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	defaultIntervalMinutes = 30

	// pollTick bounds how stale a force_run request can get.
	pollTick = 5 * time.Second
)

// ScheduleState is the persisted scheduler state. Operators and the ops
// API edit the same file, so it is re-read on every decision.
// last_run_timestamp is epoch seconds.
type ScheduleState struct {
	IntervalMinutes  int   `json:"interval_minutes"`
	ForceRun         bool  `json:"force_run"`
	LastRunTimestamp int64 `json:"last_run_timestamp,omitempty"`
}

// Scheduler decides when the pipeline runs, backed by a JSON state file.
type Scheduler struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewScheduler(path string) *Scheduler {
	return &Scheduler{path: path, now: time.Now}
}

// ShouldRun reports whether a run is due, either because the interval
// elapsed or because a force_run was requested. A consumed force_run is
// written back immediately so it fires exactly once.
func (s *Scheduler) ShouldRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()

	if state.ForceRun {
		state.ForceRun = false
		if err := s.save(state); err != nil {
			slog.Error("failed to consume force_run", "error", err)
			// Not consumed, so do not run: a failed write would re-trigger
			// the run on every tick.
			return false
		}
		slog.Info("force run requested")
		return true
	}

	if state.LastRunTimestamp <= 0 {
		return true
	}
	lastRun := time.Unix(state.LastRunTimestamp, 0)

	return s.now().Sub(lastRun) >= time.Duration(state.IntervalMinutes)*time.Minute
}

// MarkRun records that a run just finished, successful or not.
func (s *Scheduler) MarkRun() {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	state.LastRunTimestamp = s.now().Unix()
	if err := s.save(state); err != nil {
		slog.Error("failed to record run timestamp", "error", err)
	}
}

// ForceRun requests an immediate run on the next tick.
func (s *Scheduler) ForceRun() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	state.ForceRun = true
	return s.save(state)
}

// SetInterval changes the run interval in minutes.
func (s *Scheduler) SetInterval(minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	state.IntervalMinutes = minutes
	return s.save(state)
}

// State returns the current persisted schedule.
func (s *Scheduler) State() ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Tick returns the poll granularity of the scheduler loop.
func (s *Scheduler) Tick() time.Duration {
	return pollTick
}

// load reads the state file, normalizing a missing or broken file and a
// non-positive interval to defaults.
func (s *Scheduler) load() ScheduleState {
	state := ScheduleState{IntervalMinutes: defaultIntervalMinutes}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("schedule state unreadable, using defaults", "path", s.path, "error", err)
		}
		return state
	}
	if err := json.Unmarshal(data, &state); err != nil {
		slog.Warn("schedule state malformed, using defaults", "path", s.path, "error", err)
		return ScheduleState{IntervalMinutes: defaultIntervalMinutes}
	}
	if state.IntervalMinutes <= 0 {
		state.IntervalMinutes = defaultIntervalMinutes
	}
	return state
}

func (s *Scheduler) save(state ScheduleState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schedule state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create schedule state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write schedule state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace schedule state: %w", err)
	}
	return nil
}
