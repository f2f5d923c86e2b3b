// Package server provides the HTTP surface of the video preparation
// service: handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/maauso/videoprep/internal/metadata"

// CreateVideoResponse is the HTTP response after accepting a video.
type CreateVideoResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// VideoResponse is the HTTP response for getting job details.
type VideoResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	DocID     string `json:"docId"`
	VersionID string `json:"versionId"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// OutputPrefix is the storage prefix holding the exports.
	OutputPrefix string `json:"outputPrefix"`
	// PublishedKey is the storage key of the prepared video, once completed.
	PublishedKey string `json:"publishedKey,omitempty"`
	// Metadata is the .avd content, once completed.
	Metadata *metadata.Video `json:"metadata,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
