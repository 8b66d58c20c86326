package scheduler

import (
	"context"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/phillip/localhub-go/metrics"
)

// Maintenance is the store surface the scheduled jobs need.
type Maintenance interface {
	ResetMonthlySponsorViews(ctx context.Context) (int64, error)
	DeactivateExpired(ctx context.Context, now time.Time) (events, jobs int64, err error)
}

const (
	SponsorResetSpec = "0 0 1 * *"
	ExpirySpec       = "@hourly"

	jobTimeout = time.Minute
)

// Scheduler runs periodic housekeeping jobs in UTC.
type Scheduler struct {
	cron  *cron.Cron
	store Maintenance
	log   logrus.FieldLogger
	now   func() time.Time
}

func New(store Maintenance, log logrus.FieldLogger) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		store: store,
		log:   log.WithField("component", "scheduler"),
		now:   time.Now,
	}

	if _, err := s.cron.AddFunc(SponsorResetSpec, func() { s.run("sponsor_monthly_reset", s.ResetSponsorViews) }); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(ExpirySpec, func() { s.run("deactivate_expired", s.DeactivateExpired) }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("jobs", len(s.cron.Entries())).Info("scheduler started")
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stopped before jobs finished")
	}
}

// Entries lists the scheduled jobs' next run times.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := s.now()
	err := job(ctx)
	metrics.CronRuns.WithLabelValues(name, strconv.FormatBool(err == nil)).Inc()

	entry := s.log.WithFields(logrus.Fields{"job": name, "duration_ms": time.Since(start).Milliseconds()})
	if err != nil {
		entry.WithError(err).Error("scheduled job failed")
		return
	}
	entry.Info("scheduled job finished")
}

// ResetSponsorViews zeroes the monthly sponsor view counters.
func (s *Scheduler) ResetSponsorViews(ctx context.Context) error {
	n, err := s.store.ResetMonthlySponsorViews(ctx)
	if err != nil {
		return err
	}
	s.log.WithField("sponsors", n).Info("monthly sponsor views reset")
	return nil
}

// DeactivateExpired hides ended events and expired jobs.
func (s *Scheduler) DeactivateExpired(ctx context.Context) error {
	events, jobs, err := s.store.DeactivateExpired(ctx, s.now())
	if err != nil {
		return err
	}
	if events > 0 || jobs > 0 {
		s.log.WithFields(logrus.Fields{"events": events, "jobs": jobs}).Info("expired listings deactivated")
	}
	return nil
}
