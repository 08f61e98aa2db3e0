package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/metrics"
)

// Limiter is the process-wide pool of model call slots. Every stage shares one,
// so nested fan-out (sources, then chunks within a source) cannot exceed it.
type Limiter struct {
	sem  *semaphore.Weighted
	size int64
}

// NewLimiter returns a pool of n slots; n <= 0 means 1.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), size: int64(n)}
}

// Size returns the number of slots.
func (l *Limiter) Size() int { return int(l.size) }

// BoundedProvider runs each call inside a limiter slot with its own deadline.
// Exceeding the deadline is reported as ErrTimeout.
type BoundedProvider struct {
	next    Provider
	limiter *Limiter
	timeout time.Duration
	stage   string
}

// Bound wraps next. A zero timeout leaves only the caller's deadline in force.
func Bound(stage string, next Provider, limiter *Limiter, timeout time.Duration) *BoundedProvider {
	if limiter == nil {
		limiter = NewLimiter(1)
	}
	return &BoundedProvider{next: next, limiter: limiter, timeout: timeout, stage: stage}
}

type reply struct {
	text string
	err  error
}

func (b *BoundedProvider) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	if err := b.limiter.sem.Acquire(ctx, 1); err != nil {
		metrics.ObserveLLMCall(b.stage, "cancelled", start)
		return "", fmt.Errorf("llm[%s]: waiting for a call slot: %w", b.stage, err)
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if b.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, b.timeout)
	}
	defer cancel()

	// The slot is released when the call returns, not when we stop waiting for
	// it, so an abandoned call still counts against the pool.
	done := make(chan reply, 1)
	go func() {
		defer b.limiter.sem.Release(1)
		text, err := b.next.GenerateCompletion(callCtx, prompt)
		done <- reply{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				metrics.ObserveLLMCall(b.stage, "timeout", start)
				return "", fmt.Errorf("llm[%s]: %w after %v: %v", b.stage, ErrTimeout, b.timeout, r.err)
			}
			metrics.ObserveLLMCall(b.stage, "error", start)
			return "", r.err
		}
		metrics.ObserveLLMCall(b.stage, "ok", start)
		return r.text, nil
	case <-callCtx.Done():
		if ctx.Err() == nil {
			metrics.ObserveLLMCall(b.stage, "timeout", start)
			return "", fmt.Errorf("llm[%s]: %w after %v", b.stage, ErrTimeout, b.timeout)
		}
		metrics.ObserveLLMCall(b.stage, "cancelled", start)
		return "", ctx.Err()
	}
}

func (b *BoundedProvider) GetProviderType() string {
	return b.next.GetProviderType()
}
