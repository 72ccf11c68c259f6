package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tourneyhost/internal/events"
	"tourneyhost/internal/metrics"
	"tourneyhost/internal/store"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultSweepInterval = 30 * time.Second
	urgentDelay          = 100 * time.Millisecond
)

type Store interface {
	StartDue(ctx context.Context, now time.Time, ttlAfterStart time.Duration) ([]string, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
	NextTTL(ctx context.Context, now time.Time) (*time.Time, error)
}

type Reconciler interface {
	Run(ctx context.Context) error
}

type AuditLogger interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type Options struct {
	Interval      time.Duration
	ReconcileCron string
	Reconciler    Reconciler
	Audit         AuditLogger
	AuditDB       store.Execer
	Publisher     events.Publisher
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

type SweepResult struct {
	Started []string
	Expired []string
}

// Sweeper is the server-side tournament clock. It starts tournaments whose
// start date has passed and deletes tournaments whose ttl has been reached.
type Sweeper struct {
	store     Store
	opts      Options
	scheduler gocron.Scheduler

	sweepMu sync.Mutex
	mu      sync.Mutex
	urgent  map[int64]struct{}
}

func NewSweeper(st Store, opts Options) (*Sweeper, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSweepInterval
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Sweeper{
		store:     st,
		opts:      opts,
		scheduler: scheduler,
		urgent:    map[int64]struct{}{},
	}, nil
}

// Start registers the periodic sweep and the reconcile job, then starts the
// scheduler.
func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.opts.Interval),
		gocron.NewTask(func() {
			_, _ = s.Sweep(context.Background(), "interval")
		}),
		gocron.WithName("tournament-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	if s.opts.Reconciler != nil && s.opts.ReconcileCron != "" {
		_, err = s.scheduler.NewJob(
			gocron.CronJob(s.opts.ReconcileCron, false),
			gocron.NewTask(func() {
				if err := s.opts.Reconciler.Run(context.Background()); err != nil {
					log.WithError(err).Error("scheduled reconciliation failed")
				}
			}),
			gocron.WithName("wallet-reconcile"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("schedule reconcile %q: %w", s.opts.ReconcileCron, err)
		}
	}
	s.scheduler.Start()
	log.WithFields(log.Fields{
		"interval":       s.opts.Interval.String(),
		"reconcile_cron": s.opts.ReconcileCron,
	}).Info("tournament sweeper started")
	return nil
}

func (s *Sweeper) Shutdown() error {
	return s.scheduler.Shutdown()
}

// Sweep runs one pass. trigger labels the run in logs and metrics.
func (s *Sweeper) Sweep(ctx context.Context, trigger string) (SweepResult, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	began := time.Now()
	now := s.opts.Now()
	started, err := s.store.StartDue(ctx, now, StartTTL)
	if err != nil {
		s.opts.Metrics.Sweep(trigger, "error", time.Since(began).Seconds(), 0, 0)
		log.WithError(err).WithField("trigger", trigger).Error("failed to start due tournaments")
		return SweepResult{}, err
	}
	expired, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		s.opts.Metrics.Sweep(trigger, "error", time.Since(began).Seconds(), len(started), 0)
		log.WithError(err).WithField("trigger", trigger).Error("failed to delete expired tournaments")
		return SweepResult{Started: started}, err
	}

	for _, id := range started {
		s.publish(ctx, events.SubjectTournamentStatus, map[string]string{
			"tournament_id": id,
			"status":        "ongoing",
			"trigger":       trigger,
		})
	}
	for _, id := range expired {
		s.recordExpiry(ctx, id, trigger)
	}
	s.opts.Metrics.Sweep(trigger, "ok", time.Since(began).Seconds(), len(started), len(expired))
	if len(started) > 0 || len(expired) > 0 {
		log.WithFields(log.Fields{
			"trigger": trigger,
			"started": len(started),
			"expired": len(expired),
		}).Info("tournament sweep applied changes")
	}

	s.scheduleUrgent(ctx, now)
	return SweepResult{Started: started, Expired: expired}, nil
}

func (s *Sweeper) recordExpiry(ctx context.Context, id, trigger string) {
	if s.opts.Audit != nil && s.opts.AuditDB != nil {
		data, _ := json.Marshal(map[string]string{"trigger": trigger})
		if err := s.opts.Audit.Log(ctx, s.opts.AuditDB, "", "tournament.expired", "tournament", id, string(data)); err != nil {
			log.WithError(err).WithField("tournament_id", id).Warn("failed to audit tournament expiry")
		}
	}
	s.publish(ctx, events.SubjectTournamentExpired, map[string]string{"tournament_id": id, "trigger": trigger})
}

func (s *Sweeper) publish(ctx context.Context, subject string, payload any) {
	if err := s.opts.Publisher.Publish(ctx, subject, payload); err != nil {
		s.opts.Metrics.SideEffectFailed("event")
		log.WithError(err).WithField("subject", subject).Warn("failed to publish tournament event")
	}
}

// scheduleUrgent adds a one-shot sweep at the nearest ttl once it is inside
// the ultra-aggressive or immediate threshold. Each ttl is scheduled once.
func (s *Sweeper) scheduleUrgent(ctx context.Context, now time.Time) {
	next, err := s.store.NextTTL(ctx, now)
	if err != nil {
		log.WithError(err).Warn("failed to read next tournament ttl")
		return
	}
	urgency := Urgency(next, now)
	if urgency == "" {
		return
	}
	key := next.UnixNano()
	s.mu.Lock()
	if _, ok := s.urgent[key]; ok {
		s.mu.Unlock()
		return
	}
	s.urgent[key] = struct{}{}
	s.mu.Unlock()

	at := next.Add(urgentDelay)
	startAt := gocron.OneTimeJobStartDateTime(at)
	if !at.After(time.Now().Add(urgentDelay)) {
		startAt = gocron.OneTimeJobStartImmediately()
	}
	_, err = s.scheduler.NewJob(
		gocron.OneTimeJob(startAt),
		gocron.NewTask(func() {
			s.mu.Lock()
			delete(s.urgent, key)
			s.mu.Unlock()
			_, _ = s.Sweep(context.Background(), urgency)
		}),
		gocron.WithName("tournament-sweep-"+urgency),
	)
	if err != nil {
		s.mu.Lock()
		delete(s.urgent, key)
		s.mu.Unlock()
		log.WithError(err).WithField("urgency", urgency).Warn("failed to schedule urgent sweep")
		return
	}
	log.WithFields(log.Fields{
		"urgency": urgency,
		"ttl":     next.UTC().Format(time.RFC3339),
	}).Debug("scheduled urgent tournament sweep")
}

// PendingUrgent reports how many one-shot sweeps are waiting to run.
func (s *Sweeper) PendingUrgent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urgent)
}
