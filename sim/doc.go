// Package sim provides the virtual-time resource-flow engine of flowsim.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - interpreter.go: the virtual clock, the flush phase and the Drive loop
//   - resource.go: ResourceContext, a capacity-bounded flow endpoint
//   - consumer.go: Consumer, the single-writer handle of a demand on a context
//   - stream.go: Signal and Stream, the usage sample sequences
//
// # Architecture
//
// The sim package defines the engine; hardware, power and workload models live
// in sub-packages:
//   - sim/hardware/: processing nodes/units, memory units, machine models
//   - sim/power/: utilization-to-watts models and power drivers
//   - sim/machine/: the bare-metal machine state machine and its PSU
//   - sim/workload/: flops, resource, runtime and trace workloads
//   - sim/trace/: run records and summaries
//   - sim/export/: Prometheus export of run records
//   - sim/scenario/: YAML scenario descriptions and a single-run driver
//
// # Time
//
// Virtual time is an int64 number of milliseconds. Rates are expressed per
// second, so a consumer running at rate r for d milliseconds consumes r*d/1000.
// Only the Interpreter advances the clock, and only between instants at which
// every context has been settled.
package sim
