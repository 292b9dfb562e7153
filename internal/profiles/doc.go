// Package profiles holds the named operation presets and multi-step
// workflows jobs are resolved against. Definitions ship as an embedded TOML
// document and may be extended or overridden by a definitions file named in
// the configuration; once loaded the registry is immutable for the process
// lifetime.
package profiles
