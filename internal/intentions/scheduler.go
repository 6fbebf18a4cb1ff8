package intentions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rookmemory/rook/pkg/types"
)

// FireFunc receives a FiredIntention record as soon as a scheduled trigger
// fires.
type FireFunc func(types.FiredIntention)

type scheduledJob struct {
	entryID cron.EntryID
	timer   *time.Timer
}

// Scheduler drives TimeElapsed and ScheduledTime triggers. Cron-spec and
// recurring "@every" jobs run on a github.com/robfig/cron/v3 Cron instance;
// one-shot jobs (a fixed elapsed duration, or a single timestamp with no cron
// expression) run on a time.AfterFunc timer, since robfig/cron has no native
// one-shot concept. KeywordMention and TopicDiscussed triggers are evaluated
// by Checker, not Scheduler, and Schedule is a no-op for them.
type Scheduler struct {
	cron   *cron.Cron
	onFire FireFunc

	mu      sync.Mutex
	jobs    map[string]scheduledJob
	running bool
}

// NewScheduler builds a Scheduler that invokes onFire for every trigger.
func NewScheduler(onFire FireFunc) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		onFire: onFire,
		jobs:   make(map[string]scheduledJob),
	}
}

// Start begins running registered cron jobs. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.cron.Start()
		s.running = true
	}
}

// Stop halts the cron scheduler and cancels any pending one-shot timers.
// Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	for _, job := range s.jobs {
		if job.timer != nil {
			job.timer.Stop()
		}
	}
	s.running = false
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// JobCount returns the number of currently scheduled jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Schedule registers intention's time-based trigger, if it has one.
func (s *Scheduler) Schedule(intention *types.Intention) error {
	switch intention.Trigger.Kind {
	case types.TriggerTimeElapsed:
		return s.scheduleTimeElapsed(intention)
	case types.TriggerScheduledTime:
		if intention.Trigger.Cron != "" {
			return s.scheduleCron(intention)
		}
		return s.scheduleOneShot(intention)
	default:
		return nil
	}
}

// Unschedule cancels intentionID's job, if any.
func (s *Scheduler) Unschedule(intentionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[intentionID]
	if !ok {
		return
	}
	if job.timer != nil {
		job.timer.Stop()
	} else {
		s.cron.Remove(job.entryID)
	}
	delete(s.jobs, intentionID)
}

func (s *Scheduler) scheduleTimeElapsed(intention *types.Intention) error {
	duration := time.Duration(intention.Trigger.DurationSecs) * time.Second
	fire := func() {
		reason := TriggerReason{Kind: ReasonTimeElapsed, ElapsedSecs: intention.Trigger.DurationSecs}
		s.onFire(Fire(intention.ID, reason, SuccessResult()))
	}

	if intention.Trigger.Recurring {
		entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", duration), fire)
		if err != nil {
			return fmt.Errorf("intentions: schedule recurring time_elapsed: %w", err)
		}
		s.putJob(intention.ID, scheduledJob{entryID: entryID})
		return nil
	}

	timer := time.AfterFunc(duration, func() {
		fire()
		s.removeJob(intention.ID)
	})
	s.putJob(intention.ID, scheduledJob{timer: timer})
	return nil
}

func (s *Scheduler) scheduleOneShot(intention *types.Intention) error {
	at := intention.Trigger.At
	if at == nil {
		return fmt.Errorf("intentions: scheduled_time trigger missing At")
	}

	fire := func() {
		reason := TriggerReason{Kind: ReasonScheduledTime, ScheduledAt: *at}
		s.onFire(Fire(intention.ID, reason, SuccessResult()))
	}

	now := time.Now()
	if !at.After(now) {
		fire()
		return nil
	}

	timer := time.AfterFunc(at.Sub(now), func() {
		fire()
		s.removeJob(intention.ID)
	})
	s.putJob(intention.ID, scheduledJob{timer: timer})
	return nil
}

func (s *Scheduler) scheduleCron(intention *types.Intention) error {
	entryID, err := s.cron.AddFunc(intention.Trigger.Cron, func() {
		reason := TriggerReason{Kind: ReasonScheduledTime, ScheduledAt: time.Now()}
		s.onFire(Fire(intention.ID, reason, SuccessResult()))
	})
	if err != nil {
		return fmt.Errorf("intentions: schedule cron: %w", err)
	}
	s.putJob(intention.ID, scheduledJob{entryID: entryID})
	return nil
}

func (s *Scheduler) putJob(intentionID string, job scheduledJob) {
	s.mu.Lock()
	s.jobs[intentionID] = job
	s.mu.Unlock()
}

func (s *Scheduler) removeJob(intentionID string) {
	s.mu.Lock()
	delete(s.jobs, intentionID)
	s.mu.Unlock()
}

// LoadFromStore schedules every still-firable TimeElapsed and ScheduledTime
// intention currently in store.
func (s *Scheduler) LoadFromStore(ctx context.Context, store Store) (int, error) {
	count := 0
	for _, kind := range []types.IntentionTriggerKind{types.TriggerTimeElapsed, types.TriggerScheduledTime} {
		intentions, err := store.GetByTriggerKind(ctx, kind)
		if err != nil {
			return count, err
		}
		for _, intention := range intentions {
			if !intention.CanFire(time.Now()) {
				continue
			}
			if err := s.Schedule(intention); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}
