package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/maauso/videoprep/internal/convex"
	"github.com/maauso/videoprep/internal/prep"
	"github.com/maauso/videoprep/internal/storage"
)

// MaxReportedErrorLength bounds the error text sent with a failed report.
const MaxReportedErrorLength = 1000

// ErrInvalidInput is returned when a job request is missing a field or
// carries an unsafe document ID.
var ErrInvalidInput = errors.New("job: invalid input")

// ProcessVideoInput identifies the upload to prepare.
type ProcessVideoInput struct {
	DocID     string
	VersionID string
	// SourceKey is the storage key of the uploaded video.
	SourceKey string
	// ChapterKey is optional.
	ChapterKey string
}

// Preparer runs one local preparation.
type Preparer interface {
	Process(ctx context.Context, req prep.Request) (*prep.Result, error)
}

// ProcessVideoService runs jobs end to end: it downloads the upload,
// prepares it, publishes the exports and reports the outcome.
type ProcessVideoService struct {
	repo       Repository
	store      storage.Storage
	preparer   Preparer
	reporter   convex.Reporter
	workDir    string
	runTimeout time.Duration
	logger     *slog.Logger
}

// NewProcessVideoService creates a new ProcessVideoService. Each job gets
// its own directory below workDir. A nil reporter disables reporting.
func NewProcessVideoService(repo Repository, store storage.Storage, preparer Preparer, reporter convex.Reporter, workDir string, logger *slog.Logger) *ProcessVideoService {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = convex.NopReporter{}
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &ProcessVideoService{
		repo:     repo,
		store:    store,
		preparer: preparer,
		reporter: reporter,
		workDir:  workDir,
		logger:   logger,
	}
}

// SetRunTimeout bounds each run. Zero means no limit.
func (s *ProcessVideoService) SetRunTimeout(d time.Duration) {
	if d >= 0 {
		s.runTimeout = d
	}
}

// CreateJob creates a new job and persists it to the repository.
// The job is created in IN_QUEUE status, ready for processing.
func (s *ProcessVideoService) CreateJob(ctx context.Context, input ProcessVideoInput) (*Job, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	job := New(input.DocID, input.VersionID, input.SourceKey, input.ChapterKey)

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("doc_id", input.DocID),
		slog.String("version_id", input.VersionID),
		slog.String("source_key", input.SourceKey),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *ProcessVideoService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Process creates a job for input and runs it synchronously.
func (s *ProcessVideoService) Process(ctx context.Context, input ProcessVideoInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.ProcessExistingJob(ctx, job.ID); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, job.ID)
}

// ProcessExistingJob runs a queued job. The outcome is stored on the job
// and reported; the returned error is the run error, if any.
func (s *ProcessVideoService) ProcessExistingJob(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	log := s.logger.With(
		slog.String("job_id", job.ID),
		slog.String("doc_id", job.DocID),
	)

	if err := job.Start(); err != nil {
		return fmt.Errorf("start job %s: %w", job.ID, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return err
	}

	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	start := time.Now()
	result, keys, runErr := s.run(runCtx, job, log)

	if runErr != nil {
		msg := truncate(runErr.Error(), MaxReportedErrorLength)
		_ = job.Fail(msg)
		log.Error("job failed",
			slog.String("error", runErr.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		s.save(ctx, job, log)
		s.report(ctx, convex.Report{VersionID: job.VersionID, Status: convex.StatusFailed, Error: msg}, log)
		return runErr
	}

	_ = job.Complete(result.Metadata, keys)
	log.Info("job completed",
		slog.String("published_key", job.PublishedKey()),
		slog.Int("uploaded", len(keys)),
		slog.Duration("elapsed", time.Since(start)),
	)
	s.save(ctx, job, log)
	s.report(ctx, convex.Report{VersionID: job.VersionID, Status: convex.StatusPublished, PublishedS3Key: job.PublishedKey()}, log)
	return nil
}

// run downloads, prepares and uploads inside a job directory that is
// always removed.
func (s *ProcessVideoService) run(ctx context.Context, job *Job, log *slog.Logger) (*prep.Result, []string, error) {
	jobDir := filepath.Join(s.workDir, job.ID)
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create job directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(jobDir); err != nil {
			log.Warn("failed to remove job directory", slog.String("dir", jobDir), slog.String("error", err.Error()))
		}
	}()

	videoPath := filepath.Join(jobDir, "source"+path.Ext(job.SourceKey))
	if err := s.store.Download(ctx, job.SourceKey, videoPath); err != nil {
		return nil, nil, fmt.Errorf("download source: %w", err)
	}

	chapterPath := ""
	if job.ChapterKey != "" {
		chapterPath = filepath.Join(jobDir, "chapters.txt")
		if err := s.store.Download(ctx, job.ChapterKey, chapterPath); err != nil {
			return nil, nil, fmt.Errorf("download chapters: %w", err)
		}
	}

	exportDir := filepath.Join(jobDir, "export")
	result, err := s.preparer.Process(ctx, prep.Request{
		VideoPath:   videoPath,
		VideoID:     job.DocID,
		ExportDir:   exportDir,
		ChapterPath: chapterPath,
	})
	if err != nil {
		return nil, nil, err
	}

	keys, err := storage.UploadDir(ctx, s.store, exportDir, job.OutputPrefix)
	if err != nil {
		return nil, nil, err
	}
	return result, keys, nil
}

func (s *ProcessVideoService) save(ctx context.Context, job *Job, log *slog.Logger) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		log.Error("failed to save job", slog.String("error", err.Error()))
	}
}

// report is best effort; a lost report does not fail the job.
func (s *ProcessVideoService) report(ctx context.Context, r convex.Report, log *slog.Logger) {
	if err := s.reporter.Report(context.WithoutCancel(ctx), r); err != nil {
		log.Error("failed to report publish status",
			slog.String("status", string(r.Status)),
			slog.String("error", err.Error()),
		)
	}
}

func validateInput(in ProcessVideoInput) error {
	switch {
	case in.DocID == "" || in.VersionID == "" || in.SourceKey == "":
		return fmt.Errorf("%w: docId, versionId and s3Key are required", ErrInvalidInput)
	case in.DocID == "." || in.DocID == ".." || strings.ContainsAny(in.DocID, `/\`):
		return fmt.Errorf("%w: docId %q is not a valid file name", ErrInvalidInput, in.DocID)
	}
	return nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
