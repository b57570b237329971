// Package scheduler runs the daily rain check at a configured UTC time of
// day. A failed cycle is reported and the next one still runs; the process
// never terminates because one check went wrong.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mskaar/rain-alert-bot/internal/client"
	"github.com/mskaar/rain-alert-bot/internal/notify"
	"github.com/mskaar/rain-alert-bot/internal/observability"
	"github.com/mskaar/rain-alert-bot/internal/service"
	"github.com/mskaar/rain-alert-bot/internal/timeutil"
)

// Scheduler triggers the daily rain check.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	service      *service.AlertService
	notifier     notify.Notifier
	at           timeutil.TimeOfDay
	cycleTimeout time.Duration
	logger       *zap.Logger
}

// New creates a Scheduler that fires once a day at the given UTC time of
// day.
func New(svc *service.AlertService, notifier notify.Notifier, at timeutil.TimeOfDay, cycleTimeout time.Duration, logger *zap.Logger) *Scheduler {
	if cycleTimeout <= 0 {
		cycleTimeout = 2 * time.Minute
	}
	return &Scheduler{
		scheduler:    gocron.NewScheduler(time.UTC),
		service:      svc,
		notifier:     notifier,
		at:           at,
		cycleTimeout: cycleTimeout,
		logger:       logger,
	}
}

// Start registers the daily job and starts the scheduler asynchronously.
func (s *Scheduler) Start() error {
	s.logger.Info("scheduling daily rain check", zap.String("at_utc", s.at.String()))
	_, err := s.scheduler.Every(1).Day().At(s.at.String()).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cycleTimeout)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			observability.SchedulerCyclesTotal.WithLabelValues("error").Inc()
			return
		}
		observability.SchedulerCyclesTotal.WithLabelValues("ok").Inc()
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// RunOnce executes a single rain-check cycle: evaluate tomorrow, notify when
// rainy, stay quiet when dry.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	logger := s.logger.With(zap.String("cycle_id", uuid.New().String()))
	logger.Info("executing daily rain check")

	report, err := s.service.CheckRainTomorrow(ctx)
	if err != nil {
		logger.Error("rain check failed",
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err))
		return err
	}
	if report.Rainy == nil {
		logger.Info("no rain tomorrow, skipping notification",
			zap.String("date", report.Date.Format("2006-01-02")))
		return nil
	}

	msg := notify.BuildRainAlert(report.Rainy, report.Symbol, s.service.Location())
	if err := s.notifier.Send(ctx, msg); err != nil {
		logger.Error("notification failed", zap.Error(err))
		return err
	}
	logger.Info("rain alert delivered",
		zap.String("date", report.Date.Format("2006-01-02")),
		zap.Int("rainy_hours", len(report.Rainy.Hours)))
	return nil
}

// Stop stops the scheduler and cancels future jobs. Call during shutdown.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
