package sim

import (
	"context"
	"sync"
)

// Sample is one value of an observable at a virtual instant (milliseconds).
type Sample struct {
	Time  int64
	Value float64
}

// Values extracts the sample values in order.
func Values(samples []Sample) []float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return values
}

// Signal holds the current value of an observable and fans every change out
// to its subscribers. Publishing an unchanged value is a no-op, so subscribers
// see one sample per state transition.
//
// Publish and Close are called by the simulation goroutine; Subscribe and the
// returned streams may be used from any goroutine.
type Signal struct {
	mu     sync.Mutex
	value  float64
	time   int64
	closed bool
	subs   []*Stream
}

// NewSignal creates a signal holding initial.
func NewSignal(initial float64) *Signal {
	return &Signal{value: initial}
}

// Value returns the last published value.
func (s *Signal) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Last returns the last published value with the instant it was published at.
func (s *Signal) Last() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Sample{Time: s.time, Value: s.value}
}

// Publish sets the value at instant now and reports whether it changed.
func (s *Signal) Publish(now int64, v float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || v == s.value {
		return false
	}
	s.value = v
	s.time = now
	for _, st := range s.subs {
		st.push(Sample{Time: now, Value: v})
	}
	return true
}

// Subscribe returns a stream that first yields the current value at instant now,
// then every subsequent change. buffer <= 0 means unbounded; a bounded stream
// drops its oldest sample when full so the publisher never blocks.
func (s *Signal) Subscribe(now int64, buffer int) *Stream {
	st := newStream(buffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	st.push(Sample{Time: now, Value: s.value})
	if s.closed {
		st.finish()
		return st
	}
	st.detach = func() { s.unsubscribe(st) }
	s.subs = append(s.subs, st)
	return st
}

func (s *Signal) unsubscribe(st *Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub == st {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// Close terminates every subscriber stream. Later publishes are ignored.
func (s *Signal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, st := range s.subs {
		st.finish()
	}
	s.subs = nil
}

// Stream is one subscriber's view of a Signal.
type Stream struct {
	mu      sync.Mutex
	buf     []Sample
	limit   int
	dropped int
	closed  bool
	ready   chan struct{}
	detach  func()
}

func newStream(limit int) *Stream {
	return &Stream{
		limit: limit,
		ready: make(chan struct{}, 1),
	}
}

func (st *Stream) push(x Sample) {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	if st.limit > 0 && len(st.buf) >= st.limit {
		st.buf = st.buf[1:]
		st.dropped++
	}
	st.buf = append(st.buf, x)
	st.mu.Unlock()
	st.wake()
}

func (st *Stream) wake() {
	select {
	case st.ready <- struct{}{}:
	default:
	}
}

// finish marks the end of the sequence; buffered samples remain readable.
func (st *Stream) finish() {
	st.mu.Lock()
	st.closed = true
	st.mu.Unlock()
	st.wake()
}

// Next blocks until a sample is available. It returns ErrStreamClosed once the
// stream is closed and drained, or ctx.Err() if ctx is cancelled first.
func (st *Stream) Next(ctx context.Context) (Sample, error) {
	for {
		st.mu.Lock()
		if len(st.buf) > 0 {
			x := st.buf[0]
			st.buf = st.buf[1:]
			st.mu.Unlock()
			return x, nil
		}
		closed := st.closed
		st.mu.Unlock()
		if closed {
			return Sample{}, ErrStreamClosed
		}
		select {
		case <-st.ready:
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		}
	}
}

// Collect drains the buffered samples without blocking.
func (st *Stream) Collect() []Sample {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.buf
	st.buf = nil
	return out
}

// Dropped returns how many samples a bounded stream discarded.
func (st *Stream) Dropped() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.dropped
}

// Closed reports whether the stream stopped receiving samples.
func (st *Stream) Closed() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.closed
}

// Close unsubscribes the stream. Buffered samples remain readable.
func (st *Stream) Close() {
	if st.detach != nil {
		st.detach()
	}
	st.finish()
}
