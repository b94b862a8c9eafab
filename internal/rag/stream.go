package rag

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"
)

// streamWithTimeout starts the generator when the consumer begins ranging and
// re-yields its fragments, failing with ErrGenerationTimeout when no fragment
// arrives within d. The producing goroutine always exits: it selects on a
// context that is canceled when the consumer stops, times out or finishes, so
// abandoning the loop releases the underlying call deterministically.
//
// The returned sequence is single-use; ranging it a second time yields
// ErrStreamConsumed.
func streamWithTimeout(parent context.Context, d time.Duration, start func(context.Context) iter.Seq2[string, error]) iter.Seq2[string, error] {
	var consumed atomic.Bool

	return func(yield func(string, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}

		ctx, cancel := context.WithCancel(parent)
		defer cancel()

		type item struct {
			frag string
			err  error
		}
		items := make(chan item)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for frag, err := range start(ctx) {
				select {
				case items <- item{frag: frag, err: err}:
				case <-ctx.Done():
					return
				}
				if err != nil {
					return
				}
			}
		}()

		timer := time.NewTimer(d)
		defer timer.Stop()

		for {
			select {
			case it := <-items:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				if !yield(it.frag, it.err) || it.err != nil {
					return
				}
				timer.Reset(d)
			case <-done:
				return
			case <-timer.C:
				yield("", fmt.Errorf("%w (waited %v)", ErrGenerationTimeout, d))
				return
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			}
		}
	}
}
