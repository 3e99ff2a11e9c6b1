// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/telos-ai/telos/pkg/core"
	"github.com/telos-ai/telos/pkg/errors"
)

// Defaults for the call boundary.
const (
	DefaultCallTimeout      = 5000 * time.Millisecond
	DefaultMaxRetries       = 1
	DefaultBackoffBase      = 50 * time.Millisecond
	DefaultFailureThreshold = 3
	DefaultResetWindow      = 30 * time.Second
)

// Config tunes the boundary. The authorization gate defaults to fully
// permissive: trust floor 0, all source kinds allowed.
type Config struct {
	CallTimeout      time.Duration
	MaxRetries       int
	BackoffBase      time.Duration
	FailureThreshold int
	ResetWindow      time.Duration
	MinSourceTrust   float64
	AllowedSources   []core.SourceKind
}

// DefaultConfig returns the boundary defaults: 5 s call timeout, 1 retry
// (2 attempts), 50 ms linear backoff, breaker threshold 3, 30 s reset
// window, permissive authorization.
func DefaultConfig() Config {
	return Config{
		CallTimeout:      DefaultCallTimeout,
		MaxRetries:       DefaultMaxRetries,
		BackoffBase:      DefaultBackoffBase,
		FailureThreshold: DefaultFailureThreshold,
		ResetWindow:      DefaultResetWindow,
		AllowedSources:   core.AllSourceKinds(),
	}
}

func (c Config) withDefaults() Config {
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffBase < 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.FailureThreshold < 1 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.ResetWindow <= 0 {
		c.ResetWindow = DefaultResetWindow
	}
	if len(c.AllowedSources) == 0 {
		c.AllowedSources = core.AllSourceKinds()
	}
	return c
}

// Boundary wraps role calls with the full resilience stack. The circuit
// store is injected at construction and shared across all orchestrations.
type Boundary struct {
	config  Config
	store   *CircuitStore
	metrics core.MetricsSink
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewBoundary creates a boundary over the given circuit store.
// A nil metrics sink disables metric recording.
func NewBoundary(config Config, store *CircuitStore, metrics core.MetricsSink) *Boundary {
	if store == nil {
		store = NewCircuitStore()
	}
	if metrics == nil {
		metrics = core.NoopMetrics{}
	}
	return &Boundary{
		config:  config.withDefaults(),
		store:   store,
		metrics: metrics,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Store returns the boundary's circuit store.
func (b *Boundary) Store() *CircuitStore {
	return b.store
}

// Call executes fn for the named role and operation with the boundary's
// full protection: authorization, circuit check, bounded retries, and a
// per-attempt timeout.
func Call[T any](ctx context.Context, b *Boundary, role, operation string, auth core.AuthContext, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	start := b.now()

	if err := b.authorize(role, operation, auth); err != nil {
		// Authorization failures bypass the breaker entirely: they say
		// nothing about role health.
		return zero, err
	}

	if allowed, openUntil := b.store.Gate(role, b.now()); !allowed {
		return zero, errors.New(errors.CodeCircuitOpen,
			fmt.Sprintf("circuit open for role %s operation %s until %s", role, operation, openUntil.UTC().Format(time.RFC3339)),
			nil).
			WithContext("role", role).
			WithContext("operation", operation).
			WithRecoverable(true)
	}

	attempts := b.config.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		value, err := runAttempt(ctx, b, role, operation, fn)
		if err == nil {
			b.store.Reset(role)
			b.metrics.RecordRoleExecution(role, core.OutcomeSuccess)
			b.metrics.RecordRoleLatencyMs(role, float64(b.now().Sub(start).Milliseconds()))
			return value, nil
		}
		lastErr = err

		if tripped := b.store.RecordFailure(role, b.config.FailureThreshold, b.config.ResetWindow, b.now()); tripped {
			// Do not consume remaining retries once the breaker trips.
			b.metrics.RecordRoleExecution(role, core.OutcomeFailure)
			if sink, ok := b.metrics.(interface{ RecordCircuitTrip(role string) }); ok {
				sink.RecordCircuitTrip(role)
			}
			return zero, errors.New(errors.CodeCircuitOpen,
				fmt.Sprintf("circuit tripped for role %s operation %s", role, operation),
				err).
				WithContext("role", role).
				WithContext("operation", operation).
				WithContext("failures", b.config.FailureThreshold).
				WithRecoverable(true)
		}

		if attempt < attempts-1 {
			if err := b.sleep(ctx, b.config.BackoffBase*time.Duration(attempt+1)); err != nil {
				b.metrics.RecordRoleExecution(role, core.OutcomeFailure)
				return zero, errors.New(errors.CodeInternal, "context canceled during retry backoff", err).
					WithContext("role", role).
					WithContext("operation", operation).
					WithRecoverable(false)
			}
		}
	}

	b.metrics.RecordRoleExecution(role, core.OutcomeFailure)
	return zero, errors.New(errors.CodeRetryExhausted,
		fmt.Sprintf("role %s operation %s failed after %d attempts", role, operation, attempts),
		lastErr).
		WithContext("role", role).
		WithContext("operation", operation).
		WithContext("attempts", attempts).
		WithRecoverable(false)
}

// authorize applies the allow-list and trust-floor gate.
func (b *Boundary) authorize(role, operation string, auth core.AuthContext) error {
	allowed := false
	for _, source := range b.config.AllowedSources {
		if source == auth.Source {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.New(errors.CodeUnauthorized,
			fmt.Sprintf("source %q not allowed to call role %s operation %s", auth.Source, role, operation),
			nil).
			WithContext("role", role).
			WithContext("source", string(auth.Source)).
			WithRecoverable(false)
	}
	if auth.SourceTrust < b.config.MinSourceTrust {
		return errors.New(errors.CodeUnauthorized,
			fmt.Sprintf("source trust %.2f below floor %.2f for role %s operation %s", auth.SourceTrust, b.config.MinSourceTrust, role, operation),
			nil).
			WithContext("role", role).
			WithContext("source_trust", auth.SourceTrust).
			WithRecoverable(false)
	}
	return nil
}

// runAttempt races one invocation of fn against the call timeout.
func runAttempt[T any](ctx context.Context, b *Boundary, role, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attemptCtx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(attemptCtx)
		done <- outcome{value, err}
	}()

	select {
	case <-attemptCtx.Done():
		return zero, errors.New(errors.CodeTimeout,
			fmt.Sprintf("role %s operation %s timed out after %s", role, operation, b.config.CallTimeout),
			attemptCtx.Err()).
			WithContext("role", role).
			WithContext("operation", operation).
			WithContext("timeout_ms", b.config.CallTimeout.Milliseconds()).
			WithRecoverable(true)
	case out := <-done:
		return out.value, out.err
	}
}

// sleepContext sleeps for d unless the context is canceled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
