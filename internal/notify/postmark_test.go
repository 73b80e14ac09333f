package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("Asia/Kolkata", 10*time.Minute)
	require.NoError(t, err)
	return r
}

func testPostmark(t *testing.T, handler http.HandlerFunc) *Postmark {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewPostmark(PostmarkConfig{
		ServerToken:  "server-token",
		AccountToken: "account-token",
		SenderEmail:  "reminders@example.com",
		SupportEmail: "support@example.com",
	}, testRenderer(t))
	require.NoError(t, err)
	p.client.BaseURL = srv.URL
	return p
}

func TestPostmark_Send(t *testing.T) {
	t.Parallel()

	var (
		got map[string]any
		raw string
	)
	p := testPostmark(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "server-token", r.Header.Get("X-Postmark-Server-Token"))
		body, _ := io.ReadAll(r.Body)
		raw = string(body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"user@example.com","MessageID":"abc","ErrorCode":0,"Message":"OK"}`))
	})

	b := domain.TimeBlock{ID: "b1", StartAt: time.Date(2025, time.May, 6, 15, 30, 0, 0, time.UTC)}
	require.NoError(t, p.Send(context.Background(), "user@example.com", b))

	assert.Equal(t, "user@example.com", got["To"])
	assert.Equal(t, "reminders@example.com", got["From"])
	assert.Equal(t, "⏰ Quiet hour starts in 10 minutes", got["Subject"])
	assert.Contains(t, raw, "21:00 IST")
}

func TestPostmark_SendRejected(t *testing.T) {
	t.Parallel()

	p := testPostmark(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid 'To' address"}`))
	})

	err := p.Send(context.Background(), "user@example.com", domain.TimeBlock{ID: "b1", StartAt: time.Now()})
	assert.ErrorIs(t, err, ErrSendFailed)
}

func TestPostmark_InvalidRecipient(t *testing.T) {
	t.Parallel()

	p := testPostmark(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	})

	err := p.Send(context.Background(), "not-an-email", domain.TimeBlock{ID: "b1", StartAt: time.Now()})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestNewPostmark_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  PostmarkConfig
		msg  string
	}{
		{"missing server token", PostmarkConfig{SenderEmail: "a@example.com"}, "POSTMARK_SERVER_TOKEN is required"},
		{"bad sender", PostmarkConfig{ServerToken: "x", SenderEmail: "nope"}, "SENDER_EMAIL"},
		{"bad support", PostmarkConfig{ServerToken: "x", SenderEmail: "a@example.com", SupportEmail: "nope"}, "SUPPORT_EMAIL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := NewPostmark(tt.cfg, testRenderer(t))
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
