// Package progress provides the event primitives, emitters, and the
// non-blocking hub used to report discovery progress. Events flow
// synchronously to the SSE stream of the requesting client and
// asynchronously, batched on a background goroutine, to pluggable sinks such
// as structured logs or the Pub/Sub publisher.
package progress
