package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/labstack/gommon/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]log.Lvl{
		"debug":   log.DEBUG,
		"WARN":    log.WARN,
		"error":   log.ERROR,
		"":        log.INFO,
		"verbose": log.INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("api", "warn", &buf)

	l.Infof("skipped %d", 1)
	l.Warnf("kept %d", 2)

	out := buf.String()
	if strings.Contains(out, "skipped") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "kept 2") || !strings.Contains(out, `"prefix":"api"`) {
		t.Errorf("warn line missing or malformed: %q", out)
	}
}
