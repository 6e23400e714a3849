// Package perf reports gateway handlers that take too long.
package perf

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/small-frappuccino/zealox/pkg/log"
	"github.com/small-frappuccino/zealox/pkg/util"
)

const (
	envGatewayPerfThresholdMs     = "ZEALOX_GATEWAY_PERF_THRESHOLD_MS"
	defaultGatewayPerfThresholdMs = int64(200)
)

var (
	gatewayThresholdOnce sync.Once
	gatewayThreshold     time.Duration
)

func gatewayPerfThreshold() time.Duration {
	gatewayThresholdOnce.Do(func() {
		ms := util.EnvInt64(envGatewayPerfThresholdMs, defaultGatewayPerfThresholdMs)
		if ms <= 0 {
			gatewayThreshold = 0
			return
		}
		gatewayThreshold = time.Duration(ms) * time.Millisecond
	})
	return gatewayThreshold
}

// StartGatewayEvent tracks how long dispatching a gateway event to the
// loaded modules takes and logs only when slow.
// Set ZEALOX_GATEWAY_PERF_THRESHOLD_MS to 0 to disable.
func StartGatewayEvent(event string, attrs ...slog.Attr) func() {
	return start(gatewayPerfThreshold(), time.Now, log.DiscordLogger(), event, attrs...)
}

func start(threshold time.Duration, now func() time.Time, logger *slog.Logger, event string, attrs ...slog.Attr) func() {
	if threshold <= 0 {
		return func() {}
	}

	begin := now()
	return func() {
		duration := now().Sub(begin)
		if duration < threshold {
			return
		}
		name := strings.TrimSpace(event)
		if name == "" {
			name = "unknown"
		}
		args := make([]any, 0, len(attrs)+3)
		args = append(args,
			slog.String("event", name),
			slog.Duration("duration", duration),
			slog.Int64("duration_ms", duration.Milliseconds()),
		)
		for _, attr := range attrs {
			args = append(args, attr)
		}
		logger.Warn("slow gateway event handler", args...)
	}
}
