package sim

import "errors"

var (
	// ErrContextClosed is returned by every mutation of a closed ResourceContext.
	ErrContextClosed = errors.New("sim: resource context closed")

	// ErrConsumerActive indicates that a ResourceContext already has a consumer attached.
	ErrConsumerActive = errors.New("sim: resource context already has an active consumer")

	// ErrConsumerExited is returned when adjusting a consumer that completed or was cancelled.
	ErrConsumerExited = errors.New("sim: consumer exited")

	// ErrInterpreterBusy is returned by a nested Drive on the same interpreter.
	ErrInterpreterBusy = errors.New("sim: interpreter is already driving")

	// ErrStalled indicates that Drive ran out of events before its done condition held.
	ErrStalled = errors.New("sim: no pending events")

	// ErrHorizonReached indicates that the next event lies beyond the interpreter horizon.
	ErrHorizonReached = errors.New("sim: horizon reached")

	// ErrStreamClosed is returned by Stream.Next once the stream is closed and drained.
	ErrStreamClosed = errors.New("sim: stream closed")
)
