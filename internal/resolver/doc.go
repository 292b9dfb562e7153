// Package resolver turns submission requests into concrete job records. It
// merges profile defaults with caller overrides, normalizes and validates
// raw parameter maps into the typed per-operation records, derives output
// paths with extensions matching the effective output format, and expands
// workflows into ordered job sequences with chained-step dependencies. All
// validation happens here, once, before a job is ever stored or enqueued.
package resolver
