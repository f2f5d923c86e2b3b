// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Prefix starts every job ID.
const Prefix = "job-"

// Generate creates a new unique job ID.
// Format: job-<uuid v4>
// Example: job-9b2c1a3e-4f5d-4e6a-8b7c-0d1e2f3a4b5c
func Generate() string {
	return Prefix + uuid.NewString()
}

// Valid reports whether s has the format produced by Generate.
func Valid(s string) bool {
	if len(s) <= len(Prefix) || s[:len(Prefix)] != Prefix {
		return false
	}
	_, err := uuid.Parse(s[len(Prefix):])
	return err == nil
}
