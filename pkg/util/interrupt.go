package util

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/small-frappuccino/zealox/pkg/log"
)

// ShutdownReason tells why WaitForShutdown returned.
type ShutdownReason string

const (
	ShutdownSignal    ShutdownReason = "signal"
	ShutdownRequested ShutdownReason = "requested"
	ShutdownCanceled  ShutdownReason = "canceled"
)

// WaitForShutdown blocks until an interrupt signal arrives, requested is
// closed or receives a value, or parent is canceled.
func WaitForShutdown(parent context.Context, requested <-chan struct{}) ShutdownReason {
	return waitForInterruptContext(parent, requested)
}

func waitForInterruptContext(parent context.Context, requested <-chan struct{}) ShutdownReason {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-requested:
		log.ApplicationLogger().Info("🛑 Shutdown requested")
		return ShutdownRequested
	case <-ctx.Done():
		if parent.Err() != nil {
			return ShutdownCanceled
		}
		log.ApplicationLogger().Info("🛑 Received interrupt signal")
		return ShutdownSignal
	}
}
