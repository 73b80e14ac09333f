package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

// FileOutbox writes each reminder as an HTML file plus JSON metadata instead
// of sending it. Used for local development.
type FileOutbox struct {
	dir      string
	renderer *Renderer
}

var _ Notifier = (*FileOutbox)(nil)

// NewFileOutbox creates a file-backed notifier. The directory is created on first send.
func NewFileOutbox(dir string, renderer *Renderer) *FileOutbox {
	return &FileOutbox{dir: dir, renderer: renderer}
}

type outboxMetadata struct {
	Timestamp string `json:"timestamp"`
	SendTo    string `json:"send_to"`
	Subject   string `json:"subject"`
	BlockID   string `json:"block_id"`
	StartAt   string `json:"start_at"`
	Text      string `json:"text"`
}

func (f *FileOutbox) Send(_ context.Context, recipient string, b domain.TimeBlock) error {
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("%w: empty recipient", ErrInvalidAddress)
	}
	msg, err := f.renderer.Render(b)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create outbox: %v", ErrSendFailed, err)
	}

	now := time.Now().UTC()
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405.000"), sanitizeFilename(b.ID))

	if err := os.WriteFile(filepath.Join(f.dir, base+".html"), []byte(msg.HTML), 0o644); err != nil {
		return fmt.Errorf("%w: write html: %v", ErrSendFailed, err)
	}

	meta, err := json.MarshalIndent(outboxMetadata{
		Timestamp: now.Format(time.RFC3339),
		SendTo:    recipient,
		Subject:   msg.Subject,
		BlockID:   b.ID,
		StartAt:   b.StartAt.UTC().Format(time.RFC3339),
		Text:      msg.Text,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", ErrSendFailed, err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, base+".json"), meta, 0o644); err != nil {
		return fmt.Errorf("%w: write metadata: %v", ErrSendFailed, err)
	}
	return nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = sanitizeRegex.ReplaceAllString(s, "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "reminder"
	}
	return strings.ToLower(s)
}
