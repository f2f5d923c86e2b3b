package convex

// Status is the publish outcome reported for a document version.
type Status string

// Publish outcomes.
const (
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// CompletePublishPath is the mutation invoked for every report.
const CompletePublishPath = "documents:completePublish"

// Report is the outcome of one preparation run.
type Report struct {
	VersionID string
	Status    Status
	// PublishedS3Key is set for published reports.
	PublishedS3Key string
	// Error is set for failed reports.
	Error string
}

// mutationRequest is the body of POST /api/mutation.
type mutationRequest struct {
	Path   string       `json:"path"`
	Args   completeArgs `json:"args"`
	Format string       `json:"format,omitempty"`
}

type completeArgs struct {
	VersionID      string `json:"versionId"`
	Status         Status `json:"status"`
	PublishedS3Key string `json:"publishedS3Key,omitempty"`
	PublishError   string `json:"publishError,omitempty"`
}

// mutationResponse is the body returned by /api/mutation.
type mutationResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}
