// Package worker hosts the bounded pool that drains the dispatch queue.
// Each worker claims jobs through the store's compare-and-set primitive, so
// a job is executed exactly once no matter how many workers race for it,
// and a worker's per-job failure never takes down the pool.
package worker
