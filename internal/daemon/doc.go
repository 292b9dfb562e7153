// Package daemon ties the job store, dispatch queue, worker pool, and
// HTTP API into a single background service with single-instance
// enforcement via a lock file.
package daemon
