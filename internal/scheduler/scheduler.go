package scheduler

import (
	"time"

	"grain-backend/internal/services"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs housekeeping jobs
type Scheduler struct {
	cron     *cron.Cron
	forms    *services.FormService
	schedule string
	idle     time.Duration
	jobs     []scheduledJob
	logger   *zap.Logger
}

type scheduledJob struct {
	spec string
	run  func()
}

// NewScheduler sweeps form sessions idle for longer than idle on the given cron schedule
func NewScheduler(forms *services.FormService, schedule string, idle time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		forms:    forms,
		schedule: schedule,
		idle:     idle,
		logger:   logger,
	}
}

// AddJob registers an extra housekeeping job. Must be called before Start.
func (s *Scheduler) AddJob(spec string, job func()) {
	s.jobs = append(s.jobs, scheduledJob{spec: spec, run: job})
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	for _, j := range s.jobs {
		if _, err := s.cron.AddFunc(j.spec, j.run); err != nil {
			return err
		}
	}
	if _, err := s.cron.AddFunc(s.schedule, s.sweepSessions); err != nil {
		return err
	}
	s.logger.Info("starting scheduler", zap.String("sweep_schedule", s.schedule), zap.Duration("session_idle", s.idle))
	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweepSessions() {
	removed := s.forms.Sweep(s.idle)
	if removed > 0 {
		s.logger.Info("discarded idle form sessions", zap.Int("count", removed))
	}
}
