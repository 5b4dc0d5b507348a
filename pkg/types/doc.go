/*
Package types defines the data model shared by the keyforge worker packages.

A Job arrives from the coordinating server and is consumed once by the batch
scheduler. The scheduler folds per-candidate scores into a bounded top-K list
and finalizes it into a JobResult, which the session client delivers back to
the server or parks in the pending result queue when the transport is down.

Jobs are immutable once received. ReuseKernel is derived from the wire format,
where an empty kernel source means "run the kernel compiled for a previous
job"; downstream code checks the flag instead of testing string emptiness.
*/
package types
