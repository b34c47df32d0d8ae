// Package machine simulates a bare-metal machine: a set of processing units,
// an aggregate memory context and a power supply, running one workload at a
// time on a shared sim.Interpreter.
package machine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/hardware"
	"github.com/inference-sim/flowsim/sim/power"
)

var (
	// ErrAlreadyRunning is returned by Run while another run is active.
	ErrAlreadyRunning = errors.New("machine: already running")

	// ErrMachineClosed is returned by Run once the machine is closed, and by a
	// run interrupted by Close.
	ErrMachineClosed = errors.New("machine: closed")
)

// State is the lifecycle state of a Machine.
type State int

const (
	Idle State = iota
	Running
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a Machine.
type Option func(*Machine)

// WithName sets the machine name used for its resource contexts and logs.
func WithName(name string) Option {
	return func(m *Machine) {
		if name != "" {
			m.name = name
		}
	}
}

// Machine is a bare-metal machine: Idle -> Running -> Idle, or Closed from
// either. Per run it creates one resource context per processing unit
// (capacity = frequency) and one for memory (capacity = total bytes).
//
// Run blocks the calling goroutine, which drives the interpreter. State
// transitions are mutex-guarded so that a concurrent Run fails with
// ErrAlreadyRunning; all other methods belong to the driving goroutine.
type Machine struct {
	name  string
	in    *sim.Interpreter
	model hardware.MachineModel
	psu   *PSU

	usage     *sim.Signal
	speed     *sim.Signal
	unobserve func()

	mu        sync.Mutex
	state     State
	run       *runContext
	cancelRun context.CancelCauseFunc
	released  bool
}

// New creates an idle machine. It fails if the model is invalid or the
// driver's source already has a consumer attached.
func New(in *sim.Interpreter, model hardware.MachineModel, driver power.Driver, opts ...Option) (*Machine, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("creating machine: %w", err)
	}
	m := &Machine{
		name:  "machine",
		in:    in,
		model: hardware.NewMachineModel(model.CPUs, model.Memory),
		usage: sim.NewSignal(0),
		speed: sim.NewSignal(0),
	}
	for _, opt := range opts {
		opt(m)
	}
	psu, err := newPSU(in, driver)
	if err != nil {
		return nil, fmt.Errorf("creating machine %s: %w", m.name, err)
	}
	m.psu = psu
	m.unobserve = in.Observe(m.onFlush)
	in.Flush()
	return m, nil
}

func (m *Machine) Name() string {
	return m.name
}

func (m *Machine) Model() hardware.MachineModel {
	return m.model
}

func (m *Machine) PSU() *PSU {
	return m.psu
}

func (m *Machine) Interpreter() *sim.Interpreter {
	return m.in
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) current() *runContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run
}

// Speed returns the achieved speed of every core in operations per second;
// all zeros when no run is active.
func (m *Machine) Speed() []float64 {
	speeds := make([]float64, len(m.model.CPUs))
	if r := m.current(); r != nil {
		for i, cpu := range r.cpus {
			speeds[i] = cpu.Speed()
		}
	}
	return speeds
}

// Usage returns the aggregate CPU utilization in [0,1].
func (m *Machine) Usage() float64 {
	return m.usage.Value()
}

// SubscribeUsage returns the aggregate usage stream, starting with the current usage.
func (m *Machine) SubscribeUsage(buffer int) *sim.Stream {
	return m.usage.Subscribe(m.in.Now(), buffer)
}

// SubscribeSpeed returns the aggregate speed stream in operations per second.
func (m *Machine) SubscribeSpeed(buffer int) *sim.Stream {
	return m.speed.Subscribe(m.in.Now(), buffer)
}

// Run executes w until it closes its context, ctx is cancelled, the
// interpreter runs out of events or reaches its horizon, or the machine is
// closed. Per-run contexts are closed before Run returns; the machine is then
// Idle again unless it was closed.
func (m *Machine) Run(ctx context.Context, w Workload) error {
	m.mu.Lock()
	switch m.state {
	case Closed:
		m.mu.Unlock()
		return ErrMachineClosed
	case Running:
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	if ctx.Err() != nil {
		m.mu.Unlock()
		return context.Cause(ctx)
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	r := newRunContext(m.in, m.name, m.model, w)
	m.state = Running
	m.run = r
	m.cancelRun = cancel
	m.mu.Unlock()
	defer cancel(nil)

	start := m.in.Now()
	logger := logrus.WithFields(logrus.Fields{
		"machine":  m.name,
		"workload": fmt.Sprintf("%T", w),
	})
	logger.Debugf("[t %07d] run started", start)

	err := m.drive(runCtx, r, w)

	r.Close()
	m.in.Flush()

	m.mu.Lock()
	m.run = nil
	m.cancelRun = nil
	closed := m.state == Closed
	if !closed {
		m.state = Idle
	}
	m.mu.Unlock()
	if closed {
		m.release()
		if err == nil {
			err = ErrMachineClosed
		}
	}

	if err != nil {
		logger.WithError(err).Debugf("[t %07d] run ended after %d ms", m.in.Now(), m.in.Now()-start)
	} else {
		logger.Debugf("[t %07d] run completed after %d ms", m.in.Now(), m.in.Now()-start)
	}
	return err
}

func (m *Machine) drive(ctx context.Context, r *runContext, w Workload) error {
	if err := w.OnStart(r); err != nil {
		return fmt.Errorf("starting workload: %w", err)
	}
	if err := m.in.Drive(ctx, r.Closed); err != nil {
		if errors.Is(err, sim.ErrStalled) || errors.Is(err, sim.ErrHorizonReached) {
			return fmt.Errorf("machine %s: %w", m.name, err)
		}
		return err
	}
	return nil
}

// Close closes the per-run resource contexts of an active run, detaches the
// PSU from its source and terminates the machine streams before it returns.
// The interrupted Run then returns ErrMachineClosed. Closing twice is a no-op.
//
// While a run is active Close must be called on the goroutine driving it,
// typically from a timer or workload callback. To stop a run from another
// goroutine, cancel the context passed to Run.
func (m *Machine) Close() {
	m.mu.Lock()
	switch m.state {
	case Closed:
		m.mu.Unlock()
		return
	case Running:
		m.state = Closed
		r, cancel := m.run, m.cancelRun
		m.mu.Unlock()
		cancel(ErrMachineClosed)
		r.Close()
		m.in.Flush()
		m.release()
		return
	}
	m.state = Closed
	m.mu.Unlock()
	m.release()
}

func (m *Machine) release() {
	m.mu.Lock()
	if m.released {
		m.mu.Unlock()
		return
	}
	m.released = true
	m.mu.Unlock()

	m.unobserve()
	now := m.in.Now()
	m.psu.detach(now)
	m.in.Flush()
	m.usage.Publish(now, 0)
	m.speed.Publish(now, 0)
	m.usage.Close()
	m.speed.Close()
	logrus.WithField("machine", m.name).Debugf("[t %07d] machine closed", now)
}

// onFlush recomputes the aggregate usage and speed and updates the PSU.
func (m *Machine) onFlush(now int64) {
	usage, speed := 0.0, 0.0
	if r := m.current(); r != nil {
		capacity := 0.0
		for _, cpu := range r.cpus {
			speed += cpu.Speed()
			capacity += cpu.Capacity()
		}
		if capacity > 0 {
			usage = sim.Clamp(speed/capacity, 0, 1)
		}
	}
	m.usage.Publish(now, usage)
	m.speed.Publish(now, speed)
	m.psu.update(now, usage)
}
