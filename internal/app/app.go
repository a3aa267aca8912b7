package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"govreminder/internal/config"
	"govreminder/internal/eventbus"
	"govreminder/internal/governance"
	"govreminder/internal/metrics"
	"govreminder/internal/notifier"
	"govreminder/internal/notifier/telegram"
	"govreminder/internal/observability/debugsrv"
	"govreminder/internal/reminder"
	"govreminder/internal/runtime/supervisor"
	"govreminder/internal/storage"
	"govreminder/internal/task/scheduler"
	logx "govreminder/pkg/logx"
)

// App wires one reminder run (fetch, decide, notify, snapshot) and, in
// resident mode, the scheduler and hot reload around it.
type App struct {
	cfgm *config.Manager
	root logx.Logger
	log  logx.Logger
	logs *logx.Service

	bus     eventbus.Bus
	store   storage.Store
	notif   *notifier.Service
	metrics *metrics.Metrics
	now     func() time.Time

	// swapped on config reload
	mu          sync.RWMutex
	gov         *governance.Client
	eval        *reminder.Evaluator
	initMissing bool

	health health

	// resident mode only
	sup   *supervisor.Supervisor
	sched *scheduler.Service
	debug *debugsrv.Server
}

// Option customizes an App (tests).
type Option func(*App)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(a *App) { a.now = now } }

// WithLogger replaces the configured logger. The logging config is then ignored.
func WithLogger(log logx.Logger) Option { return func(a *App) { a.log = log } }

// NewApp loads the config at cfgPath (a missing file means defaults plus
// environment) and opens storage.
func NewApp(cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load(context.Background())
	if err != nil {
		return nil, err
	}

	a := &App{cfgm: cfgm, now: time.Now, bus: eventbus.New(), metrics: metrics.New()}
	for _, o := range opts {
		o(a)
	}
	if a.log.IsZero() {
		var log logx.Logger
		a.logs, log = logx.New(mapLogConfig(cfg))
		a.log = log
	}
	log := a.log
	a.root = log
	a.log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	if err := a.applyRunConfig(cfg); err != nil {
		return nil, err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.notif = notifier.New(ncfg, log.With(logx.String("comp", "notifier")), a.bus)
	if err := a.applyMirror(cfg); err != nil {
		return nil, err
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	a.store = st

	a.log.Debug("app initialized",
		logx.String("config", cfgm.Path()),
		logx.String("storage.driver", sc.Driver),
		logx.Bool("dry_run", ncfg.DryRun),
	)
	return a, nil
}

// Resident reports whether the config asks for a long-running process.
func (a *App) Resident() bool {
	return a.cfgm.Get().Scheduler.Enabled
}

// applyRunConfig rebuilds the per-run dependencies that hot reload may change.
func (a *App) applyRunConfig(cfg *config.Config) error {
	gcfg, err := mapGovernanceConfig(cfg)
	if err != nil {
		return err
	}
	windows, err := mapWindows(cfg)
	if err != nil {
		return err
	}
	log := a.root
	gov := governance.NewClient(gcfg, log.With(logx.String("comp", "governance")))
	eval := reminder.NewEvaluator(windows, log.With(logx.String("comp", "reminder")))

	a.mu.Lock()
	a.gov = gov
	a.eval = eval
	a.initMissing = cfg.Storage.InitMissing
	a.mu.Unlock()
	return nil
}

func (a *App) applyMirror(cfg *config.Config) error {
	tcfg, ok := mapTelegramConfig(cfg)
	if !ok {
		a.notif.SetMirror(nil)
		return nil
	}
	m, err := telegram.New(tcfg, a.root.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram mirror: %w", err)
	}
	a.notif.SetMirror(m)
	return nil
}

// Report summarizes one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	Took       time.Duration
	Outcome    string
	Events     []reminder.Event
	Deliveries []notifier.Delivery
	Snapshot   storage.Snapshot
	Err        string
}

// RunOnce performs a single run. Fetch and storage failures abort the run
// and leave the previous snapshot in place; failed webhook posts do not.
func (a *App) RunOnce(ctx context.Context) (Report, error) {
	a.mu.RLock()
	gov, eval, initMissing := a.gov, a.eval, a.initMissing
	a.mu.RUnlock()

	start := time.Now()
	rep := Report{RunID: uuid.NewString(), StartedAt: a.now()}
	log := a.log.With(logx.String("run_id", rep.RunID))
	log.Info("run started")
	eventbus.Emit(a.bus, eventbus.TypeRunStarted, rep.RunID)

	err := a.run(ctx, log, gov, eval, initMissing, &rep)
	rep.Took = time.Since(start)
	if err != nil {
		rep.Err = err.Error()
		log.Error("run failed", logx.String("outcome", rep.Outcome), logx.Err(err))
	} else {
		log.Info("run finished",
			logx.Int("events", len(rep.Events)),
			logx.Int("period_count", rep.Snapshot.PeriodCount),
			logx.Duration("took", rep.Took),
		)
	}
	a.health.record(rep)
	eventbus.Emit(a.bus, eventbus.TypeRunFinished, rep)
	return rep, err
}

func (a *App) run(ctx context.Context, log logx.Logger, gov *governance.Client, eval *reminder.Evaluator, initMissing bool, rep *Report) error {
	prev, err := a.store.LoadSnapshot(ctx)
	switch {
	case errors.Is(err, storage.ErrNoSnapshot) && initMissing:
		log.Warn("no snapshot yet; starting from zero")
	case err != nil:
		rep.Outcome = metrics.OutcomeStoreErr
		return fmt.Errorf("load snapshot: %w", err)
	}

	active, err := gov.Active(ctx)
	if err != nil {
		rep.Outcome = outcomeFor(ctx, metrics.OutcomeFetchErr)
		return fmt.Errorf("fetch active period: %w", err)
	}
	periods, err := gov.Periods(ctx)
	if err != nil {
		rep.Outcome = outcomeFor(ctx, metrics.OutcomeFetchErr)
		return fmt.Errorf("fetch periods: %w", err)
	}
	log.Debug("governance fetched",
		logx.String("active", active.Slug),
		logx.Int("voting_sessions", len(active.VotingSessions)),
		logx.Int("period_count", periods.Count),
		logx.Int("previous_period", prev.PreviousPeriod()),
	)

	now := a.now()
	d := eval.Evaluate(reminder.Input{
		Now:            now,
		PreviousPeriod: prev.PreviousPeriod(),
		Active:         active,
		Periods:        periods,
	})
	rep.Events = d.Events

	rep.Deliveries = a.notif.SendAll(ctx, rep.RunID, d.Events)
	for _, dl := range rep.Deliveries {
		if err := a.store.AppendDelivery(ctx, deliveryRecord(dl)); err != nil {
			log.Warn("delivery log append failed", logx.String("event", dl.Event), logx.Err(err))
		}
	}

	rep.Snapshot = storage.NewSnapshot(d.PeriodCount, d.CurrentPeriod, d.HasCurrentPeriod, a.now())
	if err := a.store.SaveSnapshot(ctx, rep.Snapshot); err != nil {
		rep.Outcome = outcomeFor(ctx, metrics.OutcomeStoreErr)
		return fmt.Errorf("save snapshot: %w", err)
	}
	rep.Outcome = metrics.OutcomeOK
	return nil
}

func outcomeFor(ctx context.Context, fallback string) string {
	if ctx.Err() != nil {
		return metrics.OutcomeCancelled
	}
	return fallback
}

func deliveryRecord(d notifier.Delivery) storage.DeliveryRecord {
	return storage.DeliveryRecord{
		At:     d.At,
		RunID:  d.RunID,
		Event:  d.Event,
		Value1: d.Payload.Value1,
		Value2: d.Payload.Value2,
		Value3: d.Payload.Value3,
		Status: d.Status,
		DryRun: d.DryRun,
		Error:  d.Error,
		TookMS: d.Duration.Milliseconds(),
	}
}

// Close releases storage and log sinks. Use it after RunOnce; resident
// mode calls it from Stop.
func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}
