// Package harness runs conformance scenarios against the cadence engine.
//
// A scenario describes a command tree, the driver that runs it, a list of
// host updates and the assertions that must hold afterwards. The harness
// builds real engine commands from the tree, records every observable effect
// into a trace and compares the trace with a golden file.
//
// # Scenario Format
//
// Scenarios are YAML, JSON or CUE files with the following structure:
//
//	name: fade_then_mark
//	description: "A duration finishes before the mark runs"
//	driver: queue            # or scheduler
//	seed: 7                  # choose_random source
//	counters: { hits: 0 }
//	commands:
//	  - duration: { label: fade, length: 1.0 }
//	  - mark: done
//	updates:
//	  - dt: 0.5
//	    count: 2
//	assertions:
//	  - type: trace_order
//	    marks: [done]
//	  - type: progress
//	    label: fade
//	    progress: 1.0
//
// Every command node has exactly one key. Leaf nodes record trace events
// (mark, incr, set, fail), act on the driver (pause, resume, update_self,
// enqueue) or wait (wait, wait_frames, duration). Composite nodes map onto
// the engine combinators: sequence, parallel, repeat, repeat_forever,
// condition, while, require, choose_random, defer, coroutine and queue.
// Branching nodes take counter predicates such as {counter: hits, ge: 3}.
//
// # Assertion Types
//
//   - trace_order: marks appear in the given order
//   - trace_count: exactly N events of a kind and label
//   - counter: final value of a counter
//   - drained: driver state after the last update
//   - elapsed: total time fed by the host
//   - ticks: number of accepted updates
//   - progress: last progress of a labelled duration
//   - error: the run failed with an error containing a substring
//
// # Determinism
//
// A run has no wall clock. Ticks come from the driver clock, randomness from
// a PCG source seeded by the scenario and run IDs from an injectable
// generator, so the same scenario always yields the same trace and digest.
package harness
