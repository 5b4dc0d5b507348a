// Package api exposes the worker's HTTP endpoints: /health, /ready, /live
// and /metrics. It is only started when metrics.addr is configured.
package api
