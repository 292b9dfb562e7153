// Package logging assembles structured slog loggers and attribute helpers
// used across sprocket services.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and provides a no-op logger for tests and wiring code that
// cannot fail. Prefer these constructors over hand-rolled slog setup so new
// components emit records with the same shape as the rest of the system.
package logging
