package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/config"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/dispatch"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/store"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type cycleFunc func(ctx context.Context) (dispatch.Report, error)

func (f cycleFunc) Run(ctx context.Context) (dispatch.Report, error) { return f(ctx) }

func TestHealthz(t *testing.T) {
	tests := []struct {
		name string
		ping error
		want int
	}{
		{"store up", nil, http.StatusOK},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Router(pingFunc(func(context.Context) error { return tt.ping }), nil, zap.NewNop())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDispatchEndpoint(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })

	t.Run("success", func(t *testing.T) {
		cycle := cycleFunc(func(context.Context) (dispatch.Report, error) {
			return dispatch.Report{Status: dispatch.StatusSuccess, Processed: 2, Delivered: 2}, nil
		})
		rec := httptest.NewRecorder()
		Router(up, cycle, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dispatch", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "success", got["status"])
		assert.EqualValues(t, 2, got["delivered"])
	})

	t.Run("fetch error", func(t *testing.T) {
		cycle := cycleFunc(func(context.Context) (dispatch.Report, error) {
			return dispatch.Report{Status: dispatch.StatusFetchError}, errors.New("db down")
		})
		rec := httptest.NewRecorder()
		Router(up, cycle, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dispatch", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"fetch_error"`)
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Router(up, nil, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dispatch", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		LogLevel:            "info",
		HTTPAddr:            "127.0.0.1:0",
		RunMode:             "once",
		StoreDriver:         "sqlite",
		DBPath:              filepath.Join(dir, "app.db"),
		Notifier:            "file",
		OutboxDir:           filepath.Join(dir, "outbox"),
		DisplayTZ:           "Asia/Kolkata",
		ReminderLead:        10 * time.Minute,
		ReminderEarly:       time.Minute,
		ReminderLate:        time.Minute,
		DispatchPeriod:      time.Minute,
		DispatchConcurrency: 2,
	}
}

func TestRunOnce_DeliversDueBlock(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	// Seed through a separate handle; the app closes its own on return.
	seed, err := store.OpenSQLite(ctx, cfg.DBPath)
	require.NoError(t, err)
	b := domain.NewTimeBlock("alice@example.com", time.Now().Add(10*time.Minute), time.Now().Add(70*time.Minute))
	require.NoError(t, seed.InsertBlock(ctx, &b))
	require.NoError(t, seed.Close())

	a, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Run(ctx))

	check, err := store.OpenSQLite(ctx, cfg.DBPath)
	require.NoError(t, err)
	defer check.Close()
	got, err := check.GetBlock(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)

	outbox, err := filepath.Glob(filepath.Join(cfg.OutboxDir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, outbox, 1)
}

func TestNew_UnknownNotifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifier = "carrier-pigeon"
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
