package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreminder/internal/reminder"
	logx "govreminder/pkg/logx"
)

func TestFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ev   reminder.Event
		want string
	}{
		{
			ev:   reminder.Event{Name: reminder.EventVoteReminder, Payload: reminder.Payload{Value2: "2021-10-08 15:00:00", Value3: "2021-10-22 15:00:00"}},
			want: "Governance period -: voting is open (2021-10-08 15:00:00 to 2021-10-22 15:00:00).",
		},
		{
			ev:   reminder.Event{Name: reminder.EventNewPeriod, Payload: reminder.Payload{Value1: "5", Value2: "Oct 01", Value3: "Oct 15"}},
			want: "Governance period 5 announced: starts Oct 01, sign up by Oct 15.",
		},
		{
			ev:   reminder.Event{Name: "custom", Payload: reminder.Payload{Value1: "a", Value2: "b", Value3: "c"}},
			want: "custom: a | b | c",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.ev))
	}
}

func TestNewRequiresTokenAndChat(t *testing.T) {
	t.Parallel()
	_, err := New(Config{ChatID: 1}, logx.Nop())
	require.Error(t, err)
	_, err = New(Config{Token: "t"}, logx.Nop())
	require.Error(t, err)
}

func TestMirrorSendsMessage(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/bot123:abc/sendMessage"), r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		body.Store(string(b))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"group"}}}`)
	}))
	defer srv.Close()

	m, err := New(Config{Token: "123:abc", ChatID: 42, APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)

	ev := reminder.Event{Name: reminder.EventNewPeriod, Payload: reminder.Payload{Value1: "5", Value2: "Oct 01", Value3: "Oct 15"}}
	require.NoError(t, m.Mirror(context.Background(), ev))
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, body.Load().(string), "Governance period 5 announced")
}
