package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "govreminder/pkg/logx"
)

const userAgent = "govreminder/1.0"

// Config configures the API client.
type Config struct {
	BaseURL string // e.g. https://governance.algorand.foundation/api
	Timeout time.Duration
}

// Client issues the two read-only requests a reminder run needs.
type Client struct {
	baseURL string
	http    *http.Client
	log     logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Active fetches the current period and its voting sessions.
func (c *Client) Active(ctx context.Context) (ActivePeriod, error) {
	var out ActivePeriod
	if err := c.getJSON(ctx, "/periods/active", &out); err != nil {
		return ActivePeriod{}, err
	}
	return out, nil
}

// Periods fetches the period list (first page, as served).
func (c *Client) Periods(ctx context.Context) (PeriodList, error) {
	var out PeriodList
	if err := c.getJSON(ctx, "/periods/", &out); err != nil {
		return PeriodList{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build governance request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("governance response",
		logx.String("path", path),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("get %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
