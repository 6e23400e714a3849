package perf

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

func TestStartLogsSlowHandlers(t *testing.T) {
	tests := []struct {
		name      string
		threshold time.Duration
		took      time.Duration
		logged    bool
	}{
		{"slow", 200 * time.Millisecond, 350 * time.Millisecond, true},
		{"fast", 200 * time.Millisecond, 50 * time.Millisecond, false},
		{"disabled", 0, time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			clock := &stepClock{t: time.Unix(0, 0), step: tt.took}

			done := start(tt.threshold, clock.now, logger, " member_update ", slog.String("guild_id", "g1"))
			done()

			out := buf.String()
			if got := strings.Contains(out, "slow gateway event handler"); got != tt.logged {
				t.Fatalf("logged = %v, want %v (%q)", got, tt.logged, out)
			}
			if tt.logged && (!strings.Contains(out, "event=member_update") || !strings.Contains(out, "guild_id=g1")) {
				t.Fatalf("missing attrs in %q", out)
			}
		})
	}
}
