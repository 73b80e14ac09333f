package notify

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

var htmlTmpl = template.Must(template.New("reminder.html").Parse(
	`<p>Your quiet block starts at <strong>{{.Start}}</strong>, {{.Lead}} from now.</p>` +
		`{{if .End}}<p>It ends at <strong>{{.End}}</strong>.</p>{{end}}`,
))

var textTmpl = texttemplate.Must(texttemplate.New("reminder.txt").Parse(
	`Your quiet block starts at {{.Start}}, {{.Lead}} from now.` +
		`{{if .End}} It ends at {{.End}}.{{end}}`,
))

// Renderer turns a block into a human-readable message. Times are shown in
// the display location; the stored instant is never modified.
type Renderer struct {
	loc  *time.Location
	lead time.Duration
}

// NewRenderer loads the display timezone. lead is the advance notice named in the text.
func NewRenderer(tz string, lead time.Duration) (*Renderer, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, tz, err)
	}
	return &Renderer{loc: loc, lead: lead}, nil
}

type renderData struct {
	Start string
	End   string
	Lead  string
}

// Render builds the subject and bodies for b.
func (r *Renderer) Render(b domain.TimeBlock) (Message, error) {
	data := renderData{
		Start: domain.LocalizeTime(b.StartAt, r.loc),
		Lead:  domain.HumanLead(r.lead),
	}
	if !b.EndAt.IsZero() {
		data.End = domain.LocalizeClock(b.EndAt, r.loc)
	}

	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{
		Subject: "⏰ Quiet hour starts in " + data.Lead,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
