package cron

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/google/uuid"
	cronparser "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service manages scheduled jobs: it persists them as JSON, wakes for
// the nearest due job, and hands due jobs to the OnJob callback.
type Service struct {
	StorePath string
	OnJob     func(Job)
	store     *Store
	running   bool
	stopChan  chan struct{}
	mu        sync.RWMutex
}

// NewService creates a cron service persisting to storePath.
func NewService(storePath string, onJob func(Job)) *Service {
	return &Service{
		StorePath: storePath,
		OnJob:     onJob,
		stopChan:  make(chan struct{}),
	}
}

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// ComputeNextRun returns the next fire time in epoch milliseconds, or 0
// when the schedule cannot fire again.
func ComputeNextRun(schedule Schedule, fromMs int64) int64 {
	switch schedule.Kind {
	case "at":
		return schedule.AtMs
	case "every":
		if schedule.EveryMs <= 0 {
			return 0
		}
		return fromMs + schedule.EveryMs
	case "cron":
		if schedule.Expr == "" {
			return 0
		}
		parser := cronparser.NewParser(cronparser.Minute | cronparser.Hour | cronparser.Dom | cronparser.Month | cronparser.Dow)
		sched, err := parser.Parse(schedule.Expr)
		if err != nil {
			logrus.Warnf("Cron: bad expression %q: %v", schedule.Expr, err)
			return 0
		}
		from := time.Unix(0, fromMs*int64(time.Millisecond))
		return sched.Next(from).UnixNano() / int64(time.Millisecond)
	}
	return 0
}

func (s *Service) loadStore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return
	}
	s.store = &Store{Version: 1, Jobs: []Job{}}

	data, err := os.ReadFile(s.StorePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.Warnf("Cron: load store: %v", err)
		}
		return
	}
	if err := json.Unmarshal(data, s.store); err != nil {
		logrus.Warnf("Cron: parse store: %v", err)
	}
}

func (s *Service) saveStoreLocked() {
	if s.store == nil {
		return
	}
	os.MkdirAll(filepath.Dir(s.StorePath), 0755)
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		logrus.Warnf("Cron: marshal store: %v", err)
		return
	}
	if err := os.WriteFile(s.StorePath, data, 0644); err != nil {
		logrus.Warnf("Cron: save store: %v", err)
	}
}

// Start loads the store and begins the scheduling loop.
func (s *Service) Start() {
	s.loadStore()

	s.mu.Lock()
	now := nowMs()
	for i := range s.store.Jobs {
		if s.store.Jobs[i].Enabled {
			s.store.Jobs[i].State.NextRunAtMs = ComputeNextRun(s.store.Jobs[i].Schedule, now)
		}
	}
	s.running = true
	count := len(s.store.Jobs)
	s.saveStoreLocked()
	s.mu.Unlock()

	go s.loop()
	logrus.Infof("Cron service started with %d jobs", count)
}

// Stop stops the scheduling loop.
func (s *Service) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	close(s.stopChan)
}

func (s *Service) nextWakeMs() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var minNext int64
	for _, job := range s.store.Jobs {
		if job.Enabled && job.State.NextRunAtMs > 0 {
			if minNext == 0 || job.State.NextRunAtMs < minNext {
				minNext = job.State.NextRunAtMs
			}
		}
	}
	return minNext
}

func (s *Service) loop() {
	for {
		nextWake := s.nextWakeMs()
		now := nowMs()

		delay := 10 * time.Second
		if nextWake > 0 && nextWake > now {
			delay = time.Duration(nextWake-now) * time.Millisecond
		} else if nextWake > 0 {
			delay = 0
		}
		// Wake periodically anyway so newly added jobs are noticed.
		if delay > 10*time.Second {
			delay = 10 * time.Second
		}

		select {
		case <-s.stopChan:
			return
		case <-time.After(delay):
			s.processDue()
		}
	}
}

func (s *Service) processDue() {
	s.mu.Lock()
	now := nowMs()
	var due []Job
	for _, job := range s.store.Jobs {
		if job.Enabled && job.State.NextRunAtMs > 0 && now >= job.State.NextRunAtMs {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.executeJob(&job)

		s.mu.Lock()
		idx := -1
		for i, j := range s.store.Jobs {
			if j.ID == job.ID {
				idx = i
				break
			}
		}
		if idx != -1 {
			s.store.Jobs[idx] = job
			if job.Schedule.Kind == "at" {
				if job.DeleteAfterRun {
					s.store.Jobs = append(s.store.Jobs[:idx], s.store.Jobs[idx+1:]...)
				} else {
					s.store.Jobs[idx].Enabled = false
					s.store.Jobs[idx].State.NextRunAtMs = 0
				}
			} else {
				s.store.Jobs[idx].State.NextRunAtMs = ComputeNextRun(job.Schedule, nowMs())
			}
		}
		s.mu.Unlock()
	}

	if len(due) > 0 {
		s.mu.Lock()
		s.saveStoreLocked()
		s.mu.Unlock()
	}
}

func (s *Service) executeJob(job *Job) {
	logrus.Infof("Cron: executing job %q (%s)", job.Name, job.ID)
	startMs := nowMs()

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Cron: panic executing job %s: %v", job.ID, r)
			job.State.LastStatus = "error"
			job.State.LastError = fmt.Sprintf("panic: %v", r)
		}
	}()

	if s.OnJob != nil {
		s.OnJob(*job)
	}

	job.State.LastStatus = "ok"
	job.State.LastError = ""
	job.State.LastRunAtMs = startMs
	job.UpdatedAtMs = nowMs()
}

// ListJobs returns all jobs sorted by next run time.
func (s *Service) ListJobs() []Job {
	s.loadStore()

	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, len(s.store.Jobs))
	copy(jobs, s.store.Jobs)
	sort.Slice(jobs, func(i, j int) bool {
		n1, n2 := jobs[i].State.NextRunAtMs, jobs[j].State.NextRunAtMs
		if n1 == 0 {
			return false
		}
		if n2 == 0 {
			return true
		}
		return n1 < n2
	})
	return jobs
}

// AddJob creates, schedules and persists a new job.
func (s *Service) AddJob(name string, schedule Schedule, message string, deliver bool, key session.Key, deleteAfterRun bool) Job {
	s.loadStore()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowMs()
	job := Job{
		ID:       uuid.New().String()[:8],
		Name:     name,
		Enabled:  true,
		Schedule: schedule,
		Payload: Payload{
			Kind:       "agent_turn",
			Message:    message,
			Deliver:    deliver,
			SessionKey: key,
		},
		State: JobState{
			NextRunAtMs: ComputeNextRun(schedule, now),
		},
		CreatedAtMs:    now,
		UpdatedAtMs:    now,
		DeleteAfterRun: deleteAfterRun,
	}

	s.store.Jobs = append(s.store.Jobs, job)
	s.saveStoreLocked()
	return job
}

// RemoveJob deletes a job by id.
func (s *Service) RemoveJob(jobID string) bool {
	s.loadStore()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Job, 0, len(s.store.Jobs))
	found := false
	for _, job := range s.store.Jobs {
		if job.ID == jobID {
			found = true
			continue
		}
		kept = append(kept, job)
	}
	if found {
		s.store.Jobs = kept
		s.saveStoreLocked()
	}
	return found
}
