// Package stream provides the small channel combinators the navigation
// frontends use to shape a route computation's progress feed: generate
// ticks on a producer goroutine, tap them for logging or metrics, cut the
// feed off on cancellation, and merge feeds from concurrent sources.
package stream

import "sync"

// Generate starts produce on its own goroutine and returns the feed it
// writes through emit. The feed is closed when produce returns. The feed
// is lightly buffered so a slow consumer does not immediately stall the
// producer.
func Generate[T any](produce func(emit func(T))) <-chan T {
	ch := make(chan T, 8)
	go func() {
		defer close(ch)
		produce(func(v T) { ch <- v })
	}()
	return ch
}

// Tap forwards every value from in unchanged, invoking fn on each as it
// passes. Useful for logging a progress feed on its way to the delegate.
func Tap[T any](in <-chan T, fn func(T)) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for v := range in {
			fn(v)
			out <- v
		}
	}()
	return out
}

// TakeWhile forwards values from in until keep reports false, then closes
// the output and drains the remainder of in so the producer goroutine is
// never left blocked on an abandoned feed.
func TakeWhile[T any](in <-chan T, keep func(T) bool) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for v := range in {
			if !keep(v) {
				go func() {
					for range in {
					}
				}()
				return
			}
			out <- v
		}
	}()
	return out
}

// Map converts each value from in with fn.
func Map[T, R any](in <-chan T, fn func(T) R) <-chan R {
	out := make(chan R)
	go func() {
		defer close(out)
		for v := range in {
			out <- fn(v)
		}
	}()
	return out
}

// Merge interleaves values from every input feed into one output, closed
// once all inputs are exhausted. Ordering across inputs is whatever the
// scheduler produces; ordering within one input is preserved.
func Merge[T any](ins ...<-chan T) <-chan T {
	out := make(chan T)
	var wg sync.WaitGroup
	wg.Add(len(ins))
	for _, in := range ins {
		go func(in <-chan T) {
			defer wg.Done()
			for v := range in {
				out <- v
			}
		}(in)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
