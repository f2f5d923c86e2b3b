// Package job provides the Job aggregate for video preparation runs. It
// includes the Job entity with its state machine, the repository port and
// the ProcessVideoService use case.
package job

import (
	"errors"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/maauso/videoprep/internal/job/id"
	"github.com/maauso/videoprep/internal/metadata"
	"github.com/maauso/videoprep/internal/prep"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the job is being prepared.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the exports were uploaded.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job encountered an error during execution.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// OutputPrefix returns the storage prefix that receives the exports of docID.
func OutputPrefix(docID string) string {
	return path.Join("video", docID)
}

// Job is one preparation request for a document version.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// DocID identifies the document; it names the .avd and the output prefix.
	DocID string
	// VersionID is the document version reported back when the job ends.
	VersionID string
	// SourceKey is the storage key of the uploaded video.
	SourceKey string
	// ChapterKey is the optional storage key of the chapter file.
	ChapterKey string
	// OutputPrefix is where the exports are uploaded.
	OutputPrefix string
	// Status is the current job state.
	Status Status
	// Error contains the error message if the job failed.
	Error string
	// UploadedKeys lists the keys written on success.
	UploadedKeys []string
	// Metadata is the .avd content written on success.
	Metadata *metadata.Video

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New(docID, versionID, sourceKey, chapterKey string) *Job {
	return NewWithID(id.Generate(), docID, versionID, sourceKey, chapterKey)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID, docID, versionID, sourceKey, chapterKey string) *Job {
	now := time.Now()
	return &Job{
		ID:           jobID,
		DocID:        docID,
		VersionID:    versionID,
		SourceKey:    sourceKey,
		ChapterKey:   chapterKey,
		OutputPrefix: OutputPrefix(docID),
		Status:       StatusInQueue,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// PublishedKey is the storage key of the exported pyramid video.
func (j *Job) PublishedKey() string {
	return path.Join(j.OutputPrefix, prep.VideoFile)
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete records the outputs and transitions the job to COMPLETED.
func (j *Job) Complete(meta *metadata.Video, keys []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	j.Metadata = meta
	j.UploadedKeys = slices.Clone(keys)
	return nil
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	s := j.GetStatus()
	return s == StatusCompleted || s == StatusFailed
}

// Clone creates a copy of the job for safe reads. Metadata is shared; it
// is not modified after completion.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		DocID:        j.DocID,
		VersionID:    j.VersionID,
		SourceKey:    j.SourceKey,
		ChapterKey:   j.ChapterKey,
		OutputPrefix: j.OutputPrefix,
		Status:       j.Status,
		Error:        j.Error,
		UploadedKeys: slices.Clone(j.UploadedKeys),
		Metadata:     j.Metadata,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
