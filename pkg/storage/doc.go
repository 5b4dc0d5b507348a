/*
Package storage holds the pending result queue: results the worker computed
but could not deliver because the session dropped.

Two implementations share the ResultQueue interface:

	MemoryQueue   default, lives as long as the process
	BoltQueue     BoltDB file (queue.path), survives restarts

BoltQueue layout:

	bucket pending_results
	  key   uint64 sequence, big-endian (bucket.NextSequence)
	  value JSON-encoded types.JobResult

Delivery is at-least-once. The worker peeks the head, sends it, and pops it
only after the server's ACK; a failed send leaves the queue untouched and the
same item is replayed first after the next handshake.
*/
package storage
