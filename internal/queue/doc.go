// Package queue persists processing jobs in SQLite and exposes the pending
// FIFO used by the worker pool.
//
// The store's CompareAndSetStatus is the single primitive that resolves
// races between completion, failure, and cancellation: exactly one terminal
// status wins and is never overwritten afterwards.
package queue
