// Package worker runs the processing side of the coordination layer:
// a pool of polling workers that claim tasks, run the fetch/extract
// pipeline, and report outcomes, plus a supervisor that reclaims
// expired leases and detects queue drain.
//
// Workers poll rather than subscribe. A dead worker simply stops
// claiming; nothing is in flight to it from a broker's perspective, and
// its abandoned tasks come back via the supervisor's lease sweep.
package worker
