package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
	"github.com/small-frappuccino/zealox/pkg/log"
)

// ErrorCategory represents different types of errors in the system
type ErrorCategory string

const (
	CategoryModule     ErrorCategory = "module"
	CategoryDiscord    ErrorCategory = "discord"
	CategoryConfig     ErrorCategory = "config"
	CategoryStorage    ErrorCategory = "storage"
	CategoryCommand    ErrorCategory = "command"
	CategoryImage      ErrorCategory = "image"
	CategoryValidation ErrorCategory = "validation"
	CategoryNetwork    ErrorCategory = "network"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity represents the severity level of errors
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// ServiceError represents a standardized error in the system
type ServiceError struct {
	Category    ErrorCategory  `json:"category"`
	Severity    ErrorSeverity  `json:"severity"`
	Message     string         `json:"message"`
	Operation   string         `json:"operation"`
	Component   string         `json:"component"`
	Cause       error          `json:"-"`
	Context     map[string]any `json:"context,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Recoverable bool           `json:"recoverable"`
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s in %s.%s: %v", e.Category, e.Severity, e.Message, e.Component, e.Operation, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s in %s.%s", e.Category, e.Severity, e.Message, e.Component, e.Operation)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error with the specified parameters
func NewServiceError(category ErrorCategory, severity ErrorSeverity, component, operation, message string, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Severity:    severity,
		Message:     message,
		Operation:   operation,
		Component:   component,
		Cause:       cause,
		Timestamp:   time.Now(),
		Recoverable: true,
		Context:     make(map[string]any),
	}
}

// RetryStrategy defines retry behavior for different error categories
type RetryStrategy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// Delay returns the wait before the attempt following attempt (1-based).
func (s RetryStrategy) Delay(attempt int) time.Duration {
	delay := float64(s.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= s.Multiplier
	}
	d := time.Duration(delay)
	if s.MaxDelay > 0 && d > s.MaxDelay {
		d = s.MaxDelay
	}
	return d
}

// ErrorHandler provides centralized error handling for the entire system
type ErrorHandler struct {
	retryStrategies map[ErrorCategory]RetryStrategy
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewErrorHandler creates a new unified error handler
func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{
		retryStrategies: map[ErrorCategory]RetryStrategy{
			CategoryDiscord: {
				MaxAttempts: 3,
				BaseDelay:   1 * time.Second,
				MaxDelay:    10 * time.Second,
				Multiplier:  2.0,
			},
			CategoryNetwork: {
				MaxAttempts: 5,
				BaseDelay:   500 * time.Millisecond,
				MaxDelay:    30 * time.Second,
				Multiplier:  2.0,
			},
			CategoryStorage: {
				MaxAttempts: 2,
				BaseDelay:   250 * time.Millisecond,
				MaxDelay:    2 * time.Second,
				Multiplier:  2.0,
			},
		},
		sleep: sleepContext,
	}
}

// SetStrategy overrides the retry strategy of a category.
func (eh *ErrorHandler) SetStrategy(category ErrorCategory, strategy RetryStrategy) {
	eh.retryStrategies[category] = strategy
}

// Handle normalizes and logs an error. It returns the normalized *ServiceError.
func (eh *ErrorHandler) Handle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	serviceErr := eh.normalizeError(err)
	eh.logError(serviceErr)
	return serviceErr
}

// HandleWithRetry executes an operation, retrying recoverable failures with the
// strategy of the error's category.
func (eh *ErrorHandler) HandleWithRetry(ctx context.Context, operation string, component string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		serviceErr := eh.normalizeError(err)
		serviceErr.Component = component
		serviceErr.Operation = operation

		if !serviceErr.Recoverable {
			return eh.Handle(ctx, serviceErr)
		}

		strategy, hasStrategy := eh.retryStrategies[serviceErr.Category]
		if !hasStrategy || attempt >= strategy.MaxAttempts {
			return eh.Handle(ctx, serviceErr)
		}

		delay := strategy.Delay(attempt)
		log.ApplicationLogger().Warn("Operation failed, retrying", "attempt", attempt, "delay", delay, "component", component, "operation", operation, "err", err)

		if sleepErr := eh.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

// HandleDiscordError wraps a Discord API failure with REST details.
func (eh *ErrorHandler) HandleDiscordError(ctx context.Context, operation string, component string, err error) error {
	if err == nil {
		return nil
	}

	serviceErr := NewServiceError(CategoryDiscord, SeverityMedium, component, operation, "Discord API operation failed", err)
	serviceErr.Recoverable = IsRecoverableDiscordError(err)

	var restErr *discordgo.RESTError
	if stderrors.As(err, &restErr) && restErr.Response != nil {
		serviceErr.Context["http_status"] = restErr.Response.StatusCode
		if restErr.Message != nil {
			serviceErr.Context["discord_code"] = restErr.Message.Code
			serviceErr.Context["discord_message"] = restErr.Message.Message
		}
		serviceErr.Severity = discordSeverity(restErr.Response.StatusCode)
	}

	return eh.Handle(ctx, serviceErr)
}

// closeAuthenticationFailed is the gateway close code for a rejected token.
const closeAuthenticationFailed = 4004

// IsAuthenticationError reports whether err is a rejected bot token.
func IsAuthenticationError(err error) bool {
	var restErr *discordgo.RESTError
	if stderrors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusUnauthorized
	}
	var closeErr *websocket.CloseError
	if stderrors.As(err, &closeErr) {
		return closeErr.Code == closeAuthenticationFailed
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication failed") || strings.Contains(msg, "invalid token") || strings.Contains(msg, "4004")
}

// IsRecoverableDiscordError reports whether a Discord failure may succeed on retry.
func IsRecoverableDiscordError(err error) bool {
	var restErr *discordgo.RESTError
	if stderrors.As(err, &restErr) && restErr.Response != nil {
		code := restErr.Response.StatusCode
		return code == http.StatusTooManyRequests || code >= 500
	}
	return !IsAuthenticationError(err)
}

// normalizeError converts any error into a ServiceError
func (eh *ErrorHandler) normalizeError(err error) *ServiceError {
	var serviceErr *ServiceError
	if stderrors.As(err, &serviceErr) {
		return serviceErr
	}

	category := categorizeError(err)
	return &ServiceError{
		Category:    category,
		Severity:    severityForCategory(category),
		Message:     err.Error(),
		Operation:   "unknown",
		Component:   "unknown",
		Cause:       err,
		Timestamp:   time.Now(),
		Recoverable: isErrorRecoverable(err),
		Context:     make(map[string]any),
	}
}

// categorizeError attempts to categorize an error based on its type and message
func categorizeError(err error) ErrorCategory {
	var restErr *discordgo.RESTError
	if stderrors.As(err, &restErr) {
		return CategoryDiscord
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "discord") || strings.Contains(errStr, "gateway") || strings.Contains(errStr, "websocket"):
		return CategoryDiscord
	case strings.Contains(errStr, "module") || strings.Contains(errStr, "cog"):
		return CategoryModule
	case strings.Contains(errStr, "config"):
		return CategoryConfig
	case strings.Contains(errStr, "sql") || strings.Contains(errStr, "database") || strings.Contains(errStr, "store"):
		return CategoryStorage
	case strings.Contains(errStr, "image") || strings.Contains(errStr, "font"):
		return CategoryImage
	case strings.Contains(errStr, "command") || strings.Contains(errStr, "interaction"):
		return CategoryCommand
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") || strings.Contains(errStr, "timeout"):
		return CategoryNetwork
	case strings.Contains(errStr, "validation") || strings.Contains(errStr, "invalid"):
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func isErrorRecoverable(err error) bool {
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"permission denied", "unauthorized", "not found", "invalid token"} {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}
	return true
}

func discordSeverity(status int) ErrorSeverity {
	switch {
	case status == http.StatusTooManyRequests:
		return SeverityMedium
	case status >= 400 && status < 500:
		return SeverityHigh
	case status >= 500:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

func severityForCategory(category ErrorCategory) ErrorSeverity {
	switch category {
	case CategoryModule, CategoryStorage:
		return SeverityHigh
	case CategoryValidation, CategoryImage:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// logError logs the error using the appropriate severity level
func (eh *ErrorHandler) logError(err *ServiceError) {
	args := []any{
		"category", err.Category,
		"severity", err.Severity,
		"component", err.Component,
		"operation", err.Operation,
		"recoverable", err.Recoverable,
	}
	for k, v := range err.Context {
		args = append(args, k, v)
	}
	if err.Cause != nil {
		args = append(args, "err", err.Cause)
	}

	switch err.Severity {
	case SeverityLow, SeverityMedium:
		log.ApplicationLogger().Info(err.Message, args...)
	case SeverityHigh:
		log.ApplicationLogger().Warn(err.Message, args...)
	default:
		log.ErrorLoggerRaw().Error(err.Message, args...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HandleConfigError executes fn and wraps any failure with the operation and path.
func HandleConfigError(operation, path string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("nil function provided")
	}
	if err := fn(); err != nil {
		log.ErrorLoggerRaw().Error("Config operation failed", "operation", operation, "path", path, "err", err)
		return fmt.Errorf("config %s %s: %w", operation, path, err)
	}
	return nil
}
