package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

func TestFileOutbox_Send(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "outbox")
	f := NewFileOutbox(dir, testRenderer(t))

	b := domain.TimeBlock{ID: "0b5e-Block/1", StartAt: time.Date(2025, time.May, 6, 15, 30, 0, 0, time.UTC)}
	require.NoError(t, f.Send(context.Background(), "user@example.com", b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var meta outboxMetadata
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "/")
		if strings.HasSuffix(e.Name(), ".json") {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, &meta))
		}
	}
	assert.Equal(t, "user@example.com", meta.SendTo)
	assert.Equal(t, "0b5e-Block/1", meta.BlockID)
	assert.Equal(t, "2025-05-06T15:30:00Z", meta.StartAt)
	assert.Contains(t, meta.Text, "21:00 IST")
}

func TestFileOutbox_EmptyRecipient(t *testing.T) {
	t.Parallel()

	f := NewFileOutbox(t.TempDir(), testRenderer(t))
	err := f.Send(context.Background(), " ", domain.TimeBlock{ID: "b1", StartAt: time.Now()})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
