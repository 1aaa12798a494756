// Package schedule implements a process-wide job scheduler backing the
// `schedule.add` / `schedule.list` / `schedule.remove` tools. Jobs run
// in one of two modes: Reminder (deliver a message via a Notifier) or
// Agent (re-enter the agent loop via an AgentRunner callback).
package schedule

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode distinguishes a simple reminder job from one that re-enters the
// agent loop when it fires.
type Mode string

const (
	Reminder Mode = "reminder"
	Agent    Mode = "agent"
)

// Notifier delivers a fired reminder's message back to the originating
// channel.
type Notifier func(message string)

// AgentRunner re-enters the full agent pipeline with message as the
// synthesized user input, used for Agent-mode jobs. It returns the final
// assistant text produced by that turn, which is then delivered via the
// job's Notifier. This is the re-entrancy point that lets a scheduled job
// drive a whole agent loop turn before anything reaches the channel.
type AgentRunner func(message string) string

// Job is one scheduled reminder or agent re-entry.
type Job struct {
	ID        string
	Message   string
	CreatedAt time.Time
	After     *time.Duration
	Interval  *time.Duration
	Mode      Mode
	cancelled bool
	stop      chan struct{}
}

// ScheduleDescription renders a short human-readable schedule summary.
func (j *Job) ScheduleDescription() string {
	switch {
	case j.After != nil:
		return fmt.Sprintf("once in %ds", int(j.After.Seconds()))
	case j.Interval != nil:
		return fmt.Sprintf("every %ds", int(j.Interval.Seconds()))
	default:
		return "unknown"
	}
}

// Scheduler owns the process-wide job table.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

var (
	globalOnce sync.Once
	global     *Scheduler
)

// Global returns the process-wide Scheduler singleton.
func Global() *Scheduler {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// New creates a standalone Scheduler (used by tests that don't want to
// share the process-wide singleton).
func New() *Scheduler {
	return &Scheduler{jobs: make(map[string]*Job)}
}

// generateJobID returns a short, collision-resistant job ID: the first
// 8 hex characters of a random UUIDv4, which is plenty of entropy for a
// single process's in-memory job table and reads far shorter in tool
// output than a full UUID.
func generateJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// AddJob schedules a new job and returns a status string like
// "scheduled: abc12345 fires=once in 60s". At least one of
// afterSeconds/intervalSeconds must be non-nil. mode selects Reminder vs
// Agent dispatch; the matching callback (notifier or agentRunner) is
// invoked when the job fires.
func (s *Scheduler) AddJob(message string, afterSeconds, intervalSeconds *uint64, mode Mode, notifier Notifier, agentRunner AgentRunner) string {
	if afterSeconds == nil && intervalSeconds == nil {
		return "Error: must specify either 'after_seconds' or 'interval_seconds'"
	}

	job := &Job{
		ID:        generateJobID(),
		Message:   message,
		CreatedAt: time.Now(),
		Mode:      mode,
		stop:      make(chan struct{}),
	}
	if afterSeconds != nil {
		d := time.Duration(*afterSeconds) * time.Second
		job.After = &d
	}
	if intervalSeconds != nil {
		d := time.Duration(*intervalSeconds) * time.Second
		job.Interval = &d
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.run(job, notifier, agentRunner)

	return fmt.Sprintf("scheduled: %s fires=%s", job.ID, job.ScheduleDescription())
}

func (s *Scheduler) fire(job *Job, notifier Notifier, agentRunner AgentRunner) {
	switch job.Mode {
	case Agent:
		if agentRunner == nil {
			return
		}
		result := agentRunner(job.Message)
		if notifier != nil {
			notifier(result)
		}
	default:
		if notifier != nil {
			notifier(job.Message)
		}
	}
}

func (s *Scheduler) run(job *Job, notifier Notifier, agentRunner AgentRunner) {
	if job.After != nil {
		timer := time.NewTimer(*job.After)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.mu.Lock()
			cancelled := job.cancelled
			s.mu.Unlock()
			if !cancelled {
				s.fire(job, notifier, agentRunner)
			}
		case <-job.stop:
		}
		s.mu.Lock()
		delete(s.jobs, job.ID)
		s.mu.Unlock()
		return
	}

	ticker := time.NewTicker(*job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			cancelled := job.cancelled
			s.mu.Unlock()
			if cancelled {
				return
			}
			s.fire(job, notifier, agentRunner)
		case <-job.stop:
			return
		}
	}
}

// ListJobs renders all non-cancelled jobs, sorted by ID.
func (s *Scheduler) ListJobs() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return "(no scheduled jobs)"
	}
	var rows []string
	for _, j := range s.jobs {
		if j.cancelled {
			continue
		}
		rows = append(rows, fmt.Sprintf("%s schedule=%s msg=%s", j.ID, j.ScheduleDescription(), j.Message))
	}
	if len(rows) == 0 {
		return "(no scheduled jobs)"
	}
	sort.Strings(rows)
	return strings.Join(rows, "\n")
}

// RemoveJob cancels and removes a job by ID.
func (s *Scheduler) RemoveJob(id string) string {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		job.cancelled = true
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Sprintf("Error: job not found: %s", id)
	}
	close(job.stop)
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
	return fmt.Sprintf("removed: %s", id)
}

// ActiveCount returns the number of non-cancelled jobs.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, j := range s.jobs {
		if !j.cancelled {
			count++
		}
	}
	return count
}
