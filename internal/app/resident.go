package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"govreminder/internal/config"
	"govreminder/internal/eventbus"
	"govreminder/internal/metrics"
	"govreminder/internal/notifier"
	"govreminder/internal/observability/debugsrv"
	"govreminder/internal/runtime/supervisor"
	"govreminder/internal/task/scheduler"
	logx "govreminder/pkg/logx"
)

// Done is closed when the resident context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the scheduler, config hot reload and, when enabled, the debug
// server until ctx is cancelled or Stop is called.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	a.sup = supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(a.root.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	a.startObservers()

	a.sched = scheduler.New(mapSchedulerConfig(cfg), func(c context.Context) error {
		_, err := a.RunOnce(c)
		return err
	}, a.root.With(logx.String("comp", "scheduler")))
	if err := a.sched.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("start scheduler: %w", err)
	}

	if dcfg, ok := mapDebugConfig(cfg); ok {
		a.debug = debugsrv.New(dcfg, a.metrics.Registry(), a.healthz, a.root.With(logx.String("comp", "debugsrv")))
		a.sup.GoRestart("debugsrv", a.debug.Run,
			supervisor.WithRestartBackoff(time.Second, 30*time.Second),
			supervisor.WithMaxRestarts(5),
		)
	}

	a.startReload()
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.notifySystemd()
	a.log.Info("app started",
		logx.String("spec", cfg.Scheduler.Spec),
		logx.Time("next", a.sched.Next()),
	)
	return nil
}

func (a *App) healthz() debugsrv.Health {
	if a.sched == nil {
		return a.health.snapshot(time.Time{})
	}
	h := a.health.snapshot(a.sched.Next())
	st := a.sched.Stats()
	h.Runs, h.Skipped, h.Failed = st.Runs, st.Skipped, st.Failed
	return h
}

// startObservers turns bus events into metrics and debug logs.
func (a *App) startObservers() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.observe", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				a.observe(e)
			}
		}
	})
}

func (a *App) observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.TypeNotifierSent, eventbus.TypeNotifierFailed, eventbus.TypeNotifierDryRun:
		d, ok := e.Data.(notifier.Delivery)
		if !ok {
			return
		}
		a.metrics.ObserveSend(sendStatus(e.Type), d.Duration)
	case eventbus.TypeRunFinished:
		rep, ok := e.Data.(Report)
		if !ok {
			return
		}
		names := make([]string, 0, len(rep.Events))
		for _, ev := range rep.Events {
			names = append(names, ev.Name)
		}
		a.metrics.ObserveRun(rep.Outcome, rep.Took, rep.StartedAt, names)
	}
}

func sendStatus(typ string) string {
	switch typ {
	case eventbus.TypeNotifierSent:
		return metrics.StatusSent
	case eventbus.TypeNotifierDryRun:
		return metrics.StatusDryRun
	default:
		return metrics.StatusFailed
	}
}

// startReload applies validated config updates published by the watcher.
func (a *App) startReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts; only the latest config matters
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyReload(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

func (a *App) applyReload(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	if pending := config.RestartRequired(sections); len(pending) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(pending, ",")))
	}

	if a.logs != nil {
		a.logs.Apply(mapLogConfig(newCfg))
	}
	if err := a.applyRunConfig(newCfg); err != nil {
		a.log.Warn("invalid run config; keeping previous", logx.Err(err))
	}
	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}
	if err := a.applyMirror(newCfg); err != nil {
		a.log.Warn("telegram mirror not updated", logx.Err(err))
	}
	switch {
	case a.sched == nil:
		// one-shot: nothing scheduled
	case !newCfg.Scheduler.Enabled:
		a.log.Warn("scheduler.enabled=false only takes effect on restart")
	default:
		if err := a.sched.Apply(mapSchedulerConfig(newCfg)); err != nil {
			a.log.Warn("invalid schedule; keeping previous", logx.Err(err))
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
	eventbus.Emit(a.bus, eventbus.TypeConfigReloaded, sections)
}

// notifySystemd reports readiness and, under WatchdogSec=, keeps the
// watchdog fed. Both are no-ops outside systemd.
func (a *App) notifySystemd() {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
}

// Stop shuts resident mode down in order: scheduler (waiting for a run in
// flight), supervised goroutines, storage, logs.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	_ = a.step(ctx, "scheduler", 5*time.Second, func(c context.Context) error {
		if a.sched != nil {
			a.sched.Stop(c)
		}
		return nil
	})
	a.sup.Cancel()
	_ = a.step(ctx, "supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	err := a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store == nil {
			return nil
		}
		return a.store.Close()
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

// step runs one shutdown step with an upper bound so a stuck component
// cannot stall the whole stop. The caller's deadline is never extended.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	stepCtx, cancel := context.WithTimeout(ctx, max(limit, 0))
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		return err
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
		return stepCtx.Err()
	}
}
