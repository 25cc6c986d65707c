package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// CollectResponses fans one prompt out to every model concurrently, bounded
// by maxConcurrent, and returns one ModelResponse per model in input order.
// Each call carries its own timeout and fails alone: an errored or timed-out
// model never aborts its siblings. When ctx is cancelled, calls that have
// not been admitted yet are recorded as failed without being issued, so the
// caller gets whatever completed plus explicit markers for the rest.
func CollectResponses(ctx context.Context, invoker ModelInvoker, models []string, prompt string, timeout time.Duration, maxConcurrent int) []ModelResponse {
	if maxConcurrent <= 0 {
		maxConcurrent = len(models)
	}

	results := make([]ModelResponse, len(models))
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	// Plain errgroup, not WithContext: a sibling failure must not cancel
	// the rest, and no goroutine returns a non-nil error anyway.
	var g errgroup.Group
	for i, model := range models {
		i, model := i, model
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = ModelResponse{Model: model, Err: errorInfo(ErrKindProviderCall, err)}
				return nil
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				// Context done before this call was admitted.
				results[i] = ModelResponse{Model: model, Err: errorInfo(ErrKindProviderCall, err)}
				return nil
			}
			defer sem.Release(1)

			text, err := invoker.Invoke(ctx, model, prompt, timeout)
			if err != nil {
				log.Printf("Error querying model %s: %v", model, err)
				results[i] = ModelResponse{Model: model, Err: errorInfo(ErrKindProviderCall, err)}
				return nil
			}
			results[i] = ModelResponse{Model: model, Text: text}
			return nil
		})
	}
	g.Wait()

	return results
}

// SuccessfulResponses filters out failed entries, preserving order.
func SuccessfulResponses(responses []ModelResponse) []ModelResponse {
	ok := make([]ModelResponse, 0, len(responses))
	for _, r := range responses {
		if r.OK() {
			ok = append(ok, r)
		}
	}
	return ok
}
