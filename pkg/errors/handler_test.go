package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
)

func noSleep(context.Context, time.Duration) error { return nil }

func restError(status int) *discordgo.RESTError {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: 0, Message: http.StatusText(status)},
	}
}

func TestRetryStrategyDelay(t *testing.T) {
	s := RetryStrategy{BaseDelay: 5 * time.Second, Multiplier: 2, MaxDelay: 30 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := s.Delay(tt.attempt); got != tt.want {
			t.Fatalf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestHandleWithRetryStopsAfterStrategyAttempts(t *testing.T) {
	eh := NewErrorHandler()
	eh.sleep = noSleep

	calls := 0
	err := eh.HandleWithRetry(context.Background(), "sync", "commands", func() error {
		calls++
		return restError(http.StatusBadGateway)
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts for discord category, got %d", calls)
	}
	var se *ServiceError
	if !stderrors.As(err, &se) || se.Component != "commands" || se.Operation != "sync" {
		t.Fatalf("expected ServiceError with component/operation, got %#v", err)
	}
}

func TestHandleWithRetryDoesNotRetryUnrecoverable(t *testing.T) {
	eh := NewErrorHandler()
	eh.sleep = noSleep

	calls := 0
	_ = eh.HandleWithRetry(context.Background(), "open", "session", func() error {
		calls++
		return stderrors.New("invalid token provided")
	})
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestHandleWithRetrySucceedsEventually(t *testing.T) {
	eh := NewErrorHandler()
	eh.sleep = noSleep

	calls := 0
	err := eh.HandleWithRetry(context.Background(), "fetch", "imaging", func() error {
		calls++
		if calls < 2 {
			return stderrors.New("connection reset")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, err=%v calls=%d", err, calls)
	}
}

func TestIsAuthenticationError(t *testing.T) {
	if !IsAuthenticationError(restError(http.StatusUnauthorized)) {
		t.Fatalf("401 should be an authentication error")
	}
	if IsAuthenticationError(restError(http.StatusInternalServerError)) {
		t.Fatalf("500 should not be an authentication error")
	}
	if !IsAuthenticationError(fmt.Errorf("open: %w", &websocket.CloseError{Code: 4004, Text: "Authentication failed."})) {
		t.Fatalf("gateway close 4004 should be an authentication error")
	}
	if IsAuthenticationError(&websocket.CloseError{Code: 4000}) {
		t.Fatalf("gateway close 4000 should not be an authentication error")
	}
	if !IsRecoverableDiscordError(restError(http.StatusTooManyRequests)) {
		t.Fatalf("429 should be recoverable")
	}
}

func TestHandleConfigErrorWraps(t *testing.T) {
	cause := stderrors.New("disk full")
	err := HandleConfigError("save", "config.json", func() error { return cause })
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
