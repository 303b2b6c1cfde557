// Package tasks runs optimizations over many saved plans with real-time progress reporting.
//
// # Batch Optimization
//
// [BatchEngine.Run] optimizes each plan in its own [optimize.Session]:
//
//   - Plans are fed to a fixed worker pool, throttled by a rate limiter so the backend is not flooded
//   - Each worker submits, waits for a terminal state and writes the route in the requested format
//   - With [BatchOpts.Save] the optimized stop order is written back to the plan
//   - A manifest summarizing every plan is written to the output directory
//
// One failing plan never stops the batch; its error is reported in [PlanResult].
//
// # Progress Reporting
//
// Progress is sent on an optional channel. Updates use select with default so a slow
// reader never blocks the workers.
package tasks
