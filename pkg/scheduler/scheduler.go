// Package scheduler runs the single cooperative worker (C8) that walks the
// job registry on every tick and dispatches enabled jobs by action prefix:
// snapshot, replicate:<host>, purge:<pattern>, synchronize:<h1,h2,...>.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/anybox/buttervolume/pkg/driver"
	"github.com/anybox/buttervolume/pkg/metrics"
	"github.com/anybox/buttervolume/pkg/registry"
	"github.com/anybox/buttervolume/pkg/types"
)

// Scheduler is the daemon's single scheduling worker.
type Scheduler struct {
	Registry *registry.Registry
	Pause    *registry.PauseMarker
	Driver   *driver.Driver
	Interval time.Duration
	Log      zerolog.Logger

	mu          sync.Mutex
	scheduleLog map[string]map[string]time.Time
	stopCh      chan struct{}
	wg          sync.WaitGroup
	wasPaused   bool

	now func() time.Time
}

// New returns a Scheduler that ticks every interval.
func New(reg *registry.Registry, pause *registry.PauseMarker, d *driver.Driver, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Registry:    reg,
		Pause:       pause,
		Driver:      d,
		Interval:    interval,
		Log:         log,
		scheduleLog: make(map[string]map[string]time.Time),
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}
}

// Start runs the scheduler loop in a new goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

// Stop cancels the loop. It does not forcibly interrupt an in-flight
// action; the loop finishes the current tick before exiting, and Stop
// returns once it has.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-s.stopCh:
			return
		}
	}
}

// Tick runs exactly one scheduling pass. It never panics: every per-job
// failure is logged and isolated so the loop keeps running. Exported so
// tests can drive it deterministically without waiting on a ticker.
func (s *Scheduler) Tick() {
	metrics.SchedulerTicksTotal.Inc()

	if s.Pause.Paused() {
		metrics.SchedulerPaused.Set(1)
		if !s.wasPaused {
			s.Log.Info().Msg("scheduler paused, skipping tick")
			s.wasPaused = true
		}
		return
	}
	metrics.SchedulerPaused.Set(0)
	s.wasPaused = false

	if !s.Registry.Exists() {
		s.Log.Debug().Msg("no schedule registry present, skipping tick")
		return
	}

	jobs, err := s.Registry.List()
	if err != nil {
		s.Log.Error().Err(err).Msg("reading schedule registry")
		return
	}

	now := s.clock()
	for _, job := range jobs {
		if !job.Active {
			continue
		}
		s.runJob(job, now)
	}
}

func (s *Scheduler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// lastRun returns the recorded last-run time for (action, name), seeding it
// to now - 24h on first sight so a freshly added job is eligible to run on
// its very first tick whenever its timer is under a day.
func (s *Scheduler) lastRun(action, name string, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.scheduleLog[action]
	if !ok {
		byName = make(map[string]time.Time)
		s.scheduleLog[action] = byName
	}
	last, ok := byName[name]
	if !ok {
		last = now.Add(-24 * time.Hour)
		byName[name] = last
	}
	return last
}

func (s *Scheduler) markRun(action, name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName, ok := s.scheduleLog[action]
	if !ok {
		byName = make(map[string]time.Time)
		s.scheduleLog[action] = byName
	}
	byName[name] = at
}

func (s *Scheduler) runJob(job types.ScheduledJob, now time.Time) {
	last := s.lastRun(job.Action, job.Name, now)
	if now.Before(last.Add(time.Duration(job.Timer) * time.Minute)) {
		return
	}

	ctx := context.Background()
	jobLog := s.Log.With().Str("volume", job.Name).Str("action", job.Action).Int("timer", job.Timer).Logger()
	kind, _, _ := strings.Cut(job.Action, ":")

	defer func() {
		if r := recover(); r != nil {
			metrics.ScheduledJobsTotal.WithLabelValues(kind, "error").Inc()
			jobLog.Error().Interface("panic", r).Msg("scheduled job panicked")
		}
	}()

	if err := s.dispatch(ctx, job); err != nil {
		metrics.ScheduledJobsTotal.WithLabelValues(kind, "error").Inc()
		jobLog.Error().Err(err).Msg("scheduled job failed")
		return
	}
	metrics.ScheduledJobsTotal.WithLabelValues(kind, "success").Inc()
	s.markRun(job.Action, job.Name, now)
}

func (s *Scheduler) dispatch(ctx context.Context, job types.ScheduledJob) error {
	switch {
	case job.Action == types.ActionSnapshot:
		_, err := s.Driver.SnapshotVolume(ctx, job.Name)
		return err

	case strings.HasPrefix(job.Action, types.ActionReplicate+":"):
		host := strings.TrimPrefix(job.Action, types.ActionReplicate+":")
		return s.doReplicate(ctx, job.Name, host)

	case strings.HasPrefix(job.Action, types.ActionPurge+":"):
		pattern := strings.TrimPrefix(job.Action, types.ActionPurge+":")
		return s.Driver.PurgeVolume(ctx, job.Name, pattern)

	case strings.HasPrefix(job.Action, types.ActionSynchronize+":"):
		hostList := strings.TrimPrefix(job.Action, types.ActionSynchronize+":")
		// Pre-pull checkpoint: a failed pull never undoes this snapshot.
		if _, err := s.Driver.SnapshotVolume(ctx, job.Name); err != nil {
			return err
		}
		return s.Driver.SyncVolumes(ctx, []string{job.Name}, strings.Split(hostList, ","))

	default:
		s.Log.Warn().Str("action", job.Action).Msg("unknown scheduled action prefix")
		return nil
	}
}

// doReplicate snapshots then sends the fresh snapshot to host, matching the
// "replicate" shorthand: a snapshot job followed by a send of its result.
func (s *Scheduler) doReplicate(ctx context.Context, name, host string) error {
	snapName, err := s.Driver.SnapshotVolume(ctx, name)
	if err != nil {
		return err
	}
	return s.Driver.SendSnapshot(ctx, snapName, host)
}
