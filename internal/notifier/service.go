package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"govreminder/internal/eventbus"
	"govreminder/internal/reminder"
	logx "govreminder/pkg/logx"
)

var ErrNoKey = errors.New("ifttt key is not configured")

// Mirror receives a copy of every delivered event.
type Mirror interface {
	Mirror(ctx context.Context, ev reminder.Event) error
}

// Service posts events to the webhook. It is safe for concurrent use; Apply
// may be called while a send is in flight.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	http    *http.Client
	mirror  Mirror

	log logx.Logger
	bus eventbus.Bus
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

// SetMirror installs (or, with nil, removes) the mirror.
func (s *Service) SetMirror(m Mirror) {
	s.mu.Lock()
	s.mirror = m
	s.mu.Unlock()
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RatePerSec < 0 {
		cfg.RatePerSec = 0
	}
	s.cfg = cfg
	s.http = &http.Client{Timeout: cfg.Timeout}
	if cfg.RatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	} else {
		s.limiter = nil
	}
}

// SendAll delivers events in order. Every event is attempted even when an
// earlier one fails.
func (s *Service) SendAll(ctx context.Context, runID string, events []reminder.Event) []Delivery {
	out := make([]Delivery, 0, len(events))
	for _, ev := range events {
		out = append(out, s.Send(ctx, runID, ev))
	}
	return out
}

// Send delivers one event. Failures are reported in the returned Delivery.
func (s *Service) Send(ctx context.Context, runID string, ev reminder.Event) Delivery {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	client := s.http
	mirror := s.mirror
	s.mu.Unlock()

	log := s.log.With(logx.String("event", ev.Name), logx.String("run_id", runID))
	d := Delivery{RunID: runID, Event: ev.Name, Payload: ev.Payload, At: time.Now()}

	if cfg.DryRun {
		d.DryRun = true
		log.Info("dry run: event not sent",
			logx.String("value1", ev.Payload.Value1),
			logx.String("value2", ev.Payload.Value2),
			logx.String("value3", ev.Payload.Value3),
		)
		eventbus.Emit(s.bus, eventbus.TypeNotifierDryRun, d)
		return d
	}

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return s.fail(log, d, err)
		}
	}

	status, err := s.post(ctx, client, cfg, ev)
	d.Status = status
	d.Duration = time.Since(d.At)
	if err != nil {
		return s.fail(log, d, err)
	}

	log.Info("event sent", logx.Int("status", status), logx.Duration("took", d.Duration))
	eventbus.Emit(s.bus, eventbus.TypeNotifierSent, d)

	if mirror != nil {
		if err := mirror.Mirror(ctx, ev); err != nil {
			log.Warn("mirror send failed", logx.Err(err))
		}
	}
	return d
}

func (s *Service) fail(log logx.Logger, d Delivery, err error) Delivery {
	d.Error = err.Error()
	if d.Duration == 0 {
		d.Duration = time.Since(d.At)
	}
	log.Warn("event send failed", logx.Int("status", d.Status), logx.Err(err))
	eventbus.Emit(s.bus, eventbus.TypeNotifierFailed, d)
	return d
}

func (s *Service) post(ctx context.Context, client *http.Client, cfg Config, ev reminder.Event) (int, error) {
	if strings.TrimSpace(cfg.Key) == "" {
		return 0, ErrNoKey
	}
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	endpoint := cfg.BaseURL + "/trigger/" + url.PathEscape(ev.Name) + "/with/key/" + url.PathEscape(cfg.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", redact(err, cfg.Key))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", ev.Name, redact(err, cfg.Key))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("post %s: status %d: %s", ev.Name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// redact keeps the key out of errors that embed the request URL.
func redact(err error, key string) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	if key != "" && strings.Contains(err.Error(), key) {
		return errors.New(strings.ReplaceAll(err.Error(), key, "***"))
	}
	return err
}
