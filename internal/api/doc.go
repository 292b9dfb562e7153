// Package api is the service layer between the transport surfaces (HTTP
// handlers, CLI) and the scheduling core. It owns submission, lookup,
// cancellation, and queue maintenance, and converts internal job records
// into transport-friendly DTOs.
package api
