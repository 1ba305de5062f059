// Package schedule maintains one recurring daily trigger per user, firing a
// delivery callback at that user's configured local time. Jobs are keyed by
// user id and replaced atomically, so there is never a window with two live
// triggers for the same user.
package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dailydsa/internal/prefs"
	logx "dailydsa/pkg/logx"
)

// FireFunc is invoked at the scheduled instant. It must contain its own error
// handling; the scheduler only logs and moves on, and the next daily
// occurrence is the retry boundary.
type FireFunc func(ctx context.Context, userID int64)

type Scheduler struct {
	log  logx.Logger
	loc  *time.Location
	fire FireFunc

	mu      sync.Mutex
	c       *cron.Cron
	jobs    map[int64]cron.EntryID
	baseCtx context.Context
	started bool
}

// New creates a scheduler for the given IANA timezone. An invalid zone is a
// startup error; all users' delivery times are interpreted in this one zone.
func New(timezone string, fire FireFunc, log logx.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid timezone %q: %w", timezone, err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		log:  log,
		loc:  loc,
		fire: fire,
		c:    cron.New(cron.WithLocation(loc)),
		jobs: map[int64]cron.EntryID{},
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.baseCtx = ctx
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()))
}

// Stop cancels all pending jobs without firing them, waiting for in-flight
// fires bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stop := s.c.Stop()
	s.mu.Unlock()

	select {
	case <-stop.Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with fires in flight")
	}
}

// InstallOrReplace (re)creates the user's daily job at the given time. An
// existing job is removed before the new one is added, both under the job
// table lock, so no fire can slip through from a replaced schedule. The new
// time takes effect at its next occurrence.
func (s *Scheduler) InstallOrReplace(userID int64, at prefs.Clock) error {
	spec := fmt.Sprintf("%d %d * * *", at.Minute, at.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[userID]; ok {
		s.c.Remove(old)
		delete(s.jobs, userID)
	}
	id, err := s.c.AddFunc(spec, func() { s.run(userID) })
	if err != nil {
		return fmt.Errorf("schedule user %d: %w", userID, err)
	}
	s.jobs[userID] = id
	s.log.Debug("daily job installed",
		logx.Int64("user_id", userID),
		logx.String("at", at.String()))
	return nil
}

// Remove deletes the user's job if present. Absence is not an error.
func (s *Scheduler) Remove(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.jobs[userID]
	if !ok {
		return false
	}
	s.c.Remove(id)
	delete(s.jobs, userID)
	return true
}

// Jobs returns the number of live jobs.
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// NextFire reports the next scheduled fire for the user, if a job exists.
func (s *Scheduler) NextFire(userID int64) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobs[userID]
	c := s.c
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	e := c.Entry(id)
	if e.ID == 0 {
		return time.Time{}, false
	}
	return e.Next, true
}

// run executes one fire. cron runs each job in its own goroutine, so a slow
// or failing delivery for one user cannot delay another user's trigger; we
// only add panic containment here.
func (s *Scheduler) run(userID int64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("delivery fire panicked",
				logx.Int64("user_id", userID),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
		}
	}()

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	s.fire(ctx, userID)
}
