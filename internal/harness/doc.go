// Package harness runs YAML scenarios against the real dispatch loop.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	screen: { width: 1072, height: 1448 }
//	long_press_ms: 1000
//	steps:
//	  - message: upload_entry
//	    name: vim
//	    tags: [editor]
//	    expect: { outcome: ok, rendered: true, persisted: true }
//	  - message: input
//	    event: key_up
//	    key: next
//	    at_ms: 1500
//	assertions:
//	  - type: final_frame
//	    badge: "A-WMC:0"
//	    name: vim
//
// Steps are processed with Engine.Step in order, on one goroutine, so
// every scenario is deterministic: message ids come from
// testutil.SequentialIDs, key timestamps are offsets from testutil.Epoch,
// and persistence jobs are counted instead of written.
//
// # Assertion Types
//
//   - trace_count: a message kind appears exactly N times
//   - trace_order: message kinds appear in the given order
//   - final_frame: the last drawn frame has the given badge, name or placeholder
//   - final_mode: the UI ends in the given mode
//   - entries: the store holds exactly these entry names, in order
//   - entry_tags / wm_class_tags: a target holds exactly these tags
//   - saves: exactly N messages dispatched a save round
//
// # Golden Traces
//
// RunWithGolden renders the trace as one line per message and compares it
// with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
