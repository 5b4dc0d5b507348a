/*
Package scheduler drives one job through a compute backend.

A job's key space [0, N) is cut into contiguous sub-batches of the backend's
fixed capacity C. The last one holds the remainder:

	N=700, C=256  →  [0,256) [256,512) [512,700)

Sub-batches are evaluated strictly in ascending order on the single device
context. Each returned score slice is folded into the job's top-K tracker:

	scores[0:length]
	   ├── range 0 ──► local tracker ─┐
	   ├── range 1 ──► local tracker ─┤  errgroup fan-out
	   └── range n ──► local tracker ─┘
	                                  ▼
	          merge in range order on the calling goroutine
	                                  ▼
	                          job tracker (K)

Every local tracker has the job's K, and the merge completes before the next
sub-batch is dispatched, so contention is one merge per range per sub-batch.
A range whose best score cannot beat the job tracker's current worst is
skipped without building a local tracker.

After each sub-batch a Progress value (fraction done, throughput since the
previous boundary, ETA) goes to the configured ProgressFunc. Progress is
observational only.
*/
package scheduler
