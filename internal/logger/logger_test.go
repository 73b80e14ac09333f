package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range cases {
		log, err := New(in)
		if err != nil {
			t.Fatalf("New(%q): %v", in, err)
		}
		if got := log.Level(); got != want {
			t.Errorf("New(%q) level = %s, want %s", in, got, want)
		}
	}

	if _, err := New("verbose"); err == nil {
		t.Error("New(verbose): expected error")
	}
}
