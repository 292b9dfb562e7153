// Package services defines the shared error taxonomy for submission and
// execution failures, and helpers for wrapping external tool clients.
package services
