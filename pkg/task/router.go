package task

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/small-frappuccino/zealox/pkg/log"
)

// TaskHandler is a function that processes a task payload.
type TaskHandler func(ctx context.Context, payload any) error

// TaskOptions configures how a task should be dispatched and executed.
type TaskOptions struct {
	// GroupKey serializes tasks that share it (per guild, per list, ...).
	// Empty means the global group.
	GroupKey string

	// IdempotencyKey coalesces tasks: while a task with the same key is
	// waiting (delayed or queued), further dispatches return ErrDuplicateTask.
	// The key is released when the task starts running or after IdempotencyTTL.
	IdempotencyKey string

	// Delay holds the task back before queueing it. Combined with an
	// IdempotencyKey this debounces bursts into one execution.
	Delay time.Duration

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	IdempotencyTTL time.Duration
}

// Task encapsulates the work to be executed by the router.
type Task struct {
	Type    string
	Payload any
	Options TaskOptions
}

// RouterConfig configures the TaskRouter behavior.
type RouterConfig struct {
	DefaultMaxAttempts int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	IdempotencyTTL     time.Duration
	GroupBuffer        int
	CleanupInterval    time.Duration
}

// Defaults returns a RouterConfig with sensible defaults.
func Defaults() RouterConfig {
	return RouterConfig{
		DefaultMaxAttempts: 3,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         30 * time.Second,
		IdempotencyTTL:     60 * time.Second,
		GroupBuffer:        64,
		CleanupInterval:    2 * time.Minute,
	}
}

// Errors returned by the router.
var (
	ErrRouterClosed    = errors.New("task router is closed")
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrDuplicateTask   = errors.New("duplicate task (idempotency key present)")
)

const globalGroup = "_global"

// TaskRouter is an in-memory dispatcher with per-group serialization,
// idempotency (dedupe/debounce) and retry with exponential backoff.
type TaskRouter struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
	groups   map[string]chan *enqueuedTask
	pending  map[string]time.Time // idempotencyKey -> expiry
	closed   bool
	cfg      RouterConfig

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	executed int64
	failed   int64
}

type enqueuedTask struct {
	task    Task
	opts    TaskOptions
	group   string
	attempt int
}

// NewRouter creates a new TaskRouter with the provided configuration.
func NewRouter(cfg RouterConfig) *TaskRouter {
	def := Defaults()
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = def.DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = def.IdempotencyTTL
	}
	if cfg.GroupBuffer <= 0 {
		cfg.GroupBuffer = def.GroupBuffer
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	tr := &TaskRouter{
		handlers: make(map[string]TaskHandler),
		groups:   make(map[string]chan *enqueuedTask),
		pending:  make(map[string]time.Time),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}

	tr.wg.Add(1)
	go tr.cleanupLoop()
	return tr
}

// RegisterHandler registers a handler for the given task type.
func (tr *TaskRouter) RegisterHandler(taskType string, handler TaskHandler) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.handlers[taskType] = handler
}

// UnregisterHandler removes a handler. Queued tasks of that type are dropped
// when they reach a worker.
func (tr *TaskRouter) UnregisterHandler(taskType string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.handlers, taskType)
}

// Dispatch enqueues a task for execution, respecting grouping, delay and idempotency.
func (tr *TaskRouter) Dispatch(ctx context.Context, t Task) error {
	tr.mu.Lock()
	if tr.closed {
		tr.mu.Unlock()
		return ErrRouterClosed
	}
	if h, ok := tr.handlers[t.Type]; !ok || h == nil {
		tr.mu.Unlock()
		return ErrUnknownTaskType
	}

	opts := tr.effectiveOptions(t.Options)
	if opts.IdempotencyKey != "" {
		if expiry, exists := tr.pending[opts.IdempotencyKey]; exists && time.Now().Before(expiry) {
			tr.mu.Unlock()
			return ErrDuplicateTask
		}
		tr.pending[opts.IdempotencyKey] = time.Now().Add(max(opts.IdempotencyTTL, opts.Delay))
	}

	group := opts.GroupKey
	if group == "" {
		group = globalGroup
	}
	ch := tr.ensureGroupLocked(group)
	tr.mu.Unlock()

	enq := &enqueuedTask{task: t, opts: opts, group: group, attempt: 1}

	if opts.Delay > 0 {
		tr.wg.Add(1)
		go func() {
			defer tr.wg.Done()
			tr.enqueueAfter(ch, enq, opts.Delay)
		}()
		return nil
	}

	select {
	case ch <- enq:
		return nil
	case <-ctx.Done():
		tr.releaseKey(opts.IdempotencyKey)
		return ctx.Err()
	case <-tr.ctx.Done():
		return ErrRouterClosed
	}
}

// Close stops the router and waits for workers to exit. Queued tasks that
// are not yet running are dropped.
func (tr *TaskRouter) Close() {
	tr.stopOnce.Do(func() {
		tr.mu.Lock()
		tr.closed = true
		tr.mu.Unlock()
		tr.cancel()
		tr.wg.Wait()
	})
}

// Stats is a snapshot for status reporting.
type Stats struct {
	GroupsCount     int
	PendingCount    int
	RouterClosed    bool
	RegisteredTypes int
	Executed        int64
	Failed          int64
}

// Stats returns counters for status output.
func (tr *TaskRouter) Stats() Stats {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return Stats{
		GroupsCount:     len(tr.groups),
		PendingCount:    len(tr.pending),
		RouterClosed:    tr.closed,
		RegisteredTypes: len(tr.handlers),
		Executed:        tr.executed,
		Failed:          tr.failed,
	}
}

func (tr *TaskRouter) effectiveOptions(opt TaskOptions) TaskOptions {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = tr.cfg.DefaultMaxAttempts
	}
	if opt.InitialBackoff <= 0 {
		opt.InitialBackoff = tr.cfg.InitialBackoff
	}
	if opt.MaxBackoff <= 0 {
		opt.MaxBackoff = tr.cfg.MaxBackoff
	}
	if opt.IdempotencyTTL <= 0 {
		opt.IdempotencyTTL = tr.cfg.IdempotencyTTL
	}
	return opt
}

func (tr *TaskRouter) ensureGroupLocked(key string) chan *enqueuedTask {
	if ch, ok := tr.groups[key]; ok {
		return ch
	}
	ch := make(chan *enqueuedTask, tr.cfg.GroupBuffer)
	tr.groups[key] = ch
	tr.wg.Add(1)
	go tr.groupLoop(key, ch)
	return ch
}

func (tr *TaskRouter) enqueueAfter(ch chan *enqueuedTask, enq *enqueuedTask, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-tr.ctx.Done():
		return
	}
	select {
	case ch <- enq:
	case <-tr.ctx.Done():
	}
}

func (tr *TaskRouter) releaseKey(key string) {
	if key == "" {
		return
	}
	tr.mu.Lock()
	delete(tr.pending, key)
	tr.mu.Unlock()
}

func (tr *TaskRouter) groupLoop(key string, ch chan *enqueuedTask) {
	defer tr.wg.Done()
	for {
		select {
		case <-tr.ctx.Done():
			return
		case enq := <-ch:
			tr.run(key, ch, enq)
		}
	}
}

func (tr *TaskRouter) run(key string, ch chan *enqueuedTask, enq *enqueuedTask) {
	if enq.attempt == 1 {
		tr.releaseKey(enq.opts.IdempotencyKey)
	}

	tr.mu.RLock()
	handler := tr.handlers[enq.task.Type]
	tr.mu.RUnlock()
	if handler == nil {
		log.ApplicationLogger().Warn("Task dropped (handler not registered)", "type", enq.task.Type, "group", key)
		return
	}

	err := handler(tr.ctx, enq.task.Payload)

	tr.mu.Lock()
	tr.executed++
	if err != nil {
		tr.failed++
	}
	tr.mu.Unlock()

	if err == nil || tr.ctx.Err() != nil {
		return
	}

	if enq.attempt < enq.opts.MaxAttempts {
		delay := computeBackoff(enq.opts.InitialBackoff, enq.opts.MaxBackoff, enq.attempt)
		enq.attempt++
		log.ApplicationLogger().Warn("Task failed, scheduling retry",
			"type", enq.task.Type,
			"group", key,
			"attempt", enq.attempt,
			"max_attempts", enq.opts.MaxAttempts,
			"backoff", delay.String(),
			"err", err,
		)
		tr.wg.Add(1)
		go func() {
			defer tr.wg.Done()
			tr.enqueueAfter(ch, enq, delay)
		}()
		return
	}

	log.ErrorLoggerRaw().Error("Task failed; max attempts reached",
		"type", enq.task.Type,
		"group", key,
		"attempts", enq.attempt,
		"err", err,
	)
}

// computeBackoff returns initial * 2^(attempt-1) with 10% jitter, clamped.
func computeBackoff(initial, maxDelay time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > maxDelay {
			backoff = maxDelay
			break
		}
	}
	var jitter time.Duration
	if delta := int64(float64(backoff) * 0.1); delta > 0 {
		jitter = time.Duration(rand.Int64N(2*delta+1) - delta)
	}
	return max(min(backoff+jitter, maxDelay), initial)
}

func (tr *TaskRouter) cleanupLoop() {
	defer tr.wg.Done()
	t := time.NewTicker(tr.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-tr.ctx.Done():
			return
		case <-t.C:
			now := time.Now()
			tr.mu.Lock()
			for k, expiry := range tr.pending {
				if now.After(expiry) {
					delete(tr.pending, k)
				}
			}
			tr.mu.Unlock()
		}
	}
}
