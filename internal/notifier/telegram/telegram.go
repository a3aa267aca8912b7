// Package telegram mirrors delivered reminder events into a Telegram chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"govreminder/internal/reminder"
	logx "govreminder/pkg/logx"
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// APIURL overrides the Bot API endpoint (tests).
	APIURL string
}

// Mirror sends a short text per event. It never polls for updates.
type Mirror struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
	log      logx.Logger
}

func New(cfg Config, log logx.Logger) (*Mirror, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: 10 * time.Second},
		OnError: func(err error, _ tele.Context) {
			log.Warn("telegram error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Mirror{bot: b, chat: &tele.Chat{ID: cfg.ChatID}, threadID: cfg.ThreadID, log: log}, nil
}

// Mirror implements notifier.Mirror.
func (m *Mirror) Mirror(ctx context.Context, ev reminder.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.bot.Send(m.chat, Format(ev), &tele.SendOptions{
		ThreadID:              m.threadID,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	m.log.Debug("event mirrored", logx.String("event", ev.Name), logx.Int64("chat_id", m.chat.ID))
	return nil
}

// Format renders an event for humans.
func Format(ev reminder.Event) string {
	p := ev.Payload
	switch ev.Name {
	case reminder.EventVoteReminder:
		return fmt.Sprintf("Governance period %s: voting is open (%s to %s).", orDash(p.Value1), p.Value2, p.Value3)
	case reminder.EventNewPeriod:
		return fmt.Sprintf("Governance period %s announced: starts %s, sign up by %s.", p.Value1, p.Value2, p.Value3)
	case reminder.EventSignupReminder:
		return fmt.Sprintf("Governance signup reminder (period %s): starts %s, sign up by %s.", p.Value1, p.Value2, p.Value3)
	default:
		return fmt.Sprintf("%s: %s | %s | %s", ev.Name, p.Value1, p.Value2, p.Value3)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
