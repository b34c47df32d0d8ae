package trace

import (
	"github.com/inference-sim/flowsim/sim"
	"github.com/inference-sim/flowsim/sim/machine"
)

// TraceLevel controls the verbosity of run tracing.
type TraceLevel string

const (
	// TraceLevelNone records run boundaries and energy only.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSamples additionally captures the usage, speed and power streams.
	TraceLevelSamples TraceLevel = "samples"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelSamples: true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level  TraceLevel
	Buffer int // per-stream sample limit; <= 0 keeps every sample
}

// SimulationTrace collects run records across a simulation.
type SimulationTrace struct {
	Config TraceConfig
	Runs   []RunRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config: config,
		Runs:   make([]RunRecord, 0),
	}
}

// RecordRun appends a run record.
func (st *SimulationTrace) RecordRun(record RunRecord) {
	st.Runs = append(st.Runs, record)
}

// Observable is the part of a machine a Recorder reads.
type Observable interface {
	Name() string
	Interpreter() *sim.Interpreter
	PSU() *machine.PSU
	SubscribeUsage(buffer int) *sim.Stream
	SubscribeSpeed(buffer int) *sim.Stream
}

// Recorder captures one run of a machine. Create it right before Run and
// call Finish with Run's result.
type Recorder struct {
	m        Observable
	workload string
	start    int64
	energy   float64

	usage, speed, power *sim.Stream
}

// NewRecorder starts recording m. Streams are only subscribed at TraceLevelSamples.
func NewRecorder(config TraceConfig, m Observable, workload string) *Recorder {
	r := &Recorder{
		m:        m,
		workload: workload,
		start:    m.Interpreter().Now(),
		energy:   m.PSU().Energy(),
	}
	if config.Level == TraceLevelSamples {
		r.usage = m.SubscribeUsage(config.Buffer)
		r.speed = m.SubscribeSpeed(config.Buffer)
		r.power = m.PSU().SubscribePowerDraw(config.Buffer)
	}
	return r
}

// Finish stops recording and returns the record of the run that ended with err.
func (r *Recorder) Finish(err error) RunRecord {
	rec := RunRecord{
		Machine:  r.m.Name(),
		Workload: r.workload,
		Start:    r.start,
		End:      r.m.Interpreter().Now(),
		Energy:   r.m.PSU().Energy() - r.energy,
	}
	if err != nil {
		rec.Err = err.Error()
	}
	if r.usage != nil {
		rec.Usage = drain(r.usage)
		rec.Speed = drain(r.speed)
		rec.Power = drain(r.power)
	}
	return rec
}

func drain(st *sim.Stream) []sim.Sample {
	st.Close()
	return st.Collect()
}
