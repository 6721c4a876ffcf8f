// Package scanning is the netprobe scan engine.
//
// A scan turns a target specification into probe units, runs them on a
// bounded worker pool, collects every outcome and returns a ranked report.
//
// # Overview
//
// The entry point is the Scanner, built with functional options. Each of its
// Start methods validates the target, partitions it into units and returns a
// new Session. A Session runs exactly once:
//
//	scanner := scanning.New(scanning.WithLogger(logger))
//
//	session, err := scanner.StartPortScan("192.168.1.10", 1, 1024, nil)
//	if err != nil {
//		return err
//	}
//	report, err := session.Run(ctx)
//	if err != nil {
//		return err
//	}
//	for _, o := range report.OpenPorts() {
//		fmt.Printf("%d/tcp %s\n", o.Port, o.Service)
//	}
//
// Host discovery works the same way; an empty network asks the configured
// NetworkDetector for the local /24:
//
//	session, err := scanner.StartHostDiscovery(ctx, "", progress)
//
// # Main Components
//
//   - Aggregator: the only shared mutable state of a scan. Appending an
//     outcome, counting it and notifying progress happen under one lock.
//   - Reporter: hands progress snapshots to the observer through a bounded
//     buffer. Snapshots are dropped rather than stalling workers, except the
//     final one, which is always delivered.
//   - Rank: orders outcomes by port, or by the numeric IPv4 address.
//   - SessionLimiter: caps how many sessions run at the same time.
//
// # Cancellation
//
// Cancelling the context passed to Session.Run stops dispatch of new units.
// Probes already in flight finish within their own timeout and the partial
// report is returned with Canceled set.
//
// # Thread Safety
//
// Scanner is safe for concurrent use. Progress callbacks run on a single
// dispatcher goroutine per session, never on worker goroutines, so an
// observer sees snapshots one at a time.
package scanning
