package prep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/maauso/videoprep/internal/audio"
	"github.com/maauso/videoprep/internal/chapters"
	"github.com/maauso/videoprep/internal/fileutil"
	"github.com/maauso/videoprep/internal/media"
	"github.com/maauso/videoprep/internal/metadata"
	"github.com/maauso/videoprep/internal/montage"
	"github.com/maauso/videoprep/internal/mp4info"
	"github.com/maauso/videoprep/internal/pyramid"
)

// Export layout, relative to Request.ExportDir.
const (
	VideoFile   = "video/video.mp4"
	MontageFile = "montage.jpg"
)

// Static errors for preparation runs.
var (
	// ErrMissingInput is returned when the video or chapter file does not exist.
	ErrMissingInput = errors.New("prep: input file not found")
	// ErrInvalidRequest is returned when a required request field is empty.
	ErrInvalidRequest = errors.New("prep: invalid request")
)

// Request describes one preparation run.
type Request struct {
	VideoPath string
	VideoID   string
	ExportDir string
	// ChapterPath is optional.
	ChapterPath string
}

// Result lists the files written to the export directory.
type Result struct {
	Metadata     *metadata.Video
	VideoPath    string
	MontagePath  string
	MetadataPath string
}

// DurationReader returns the container duration of an MP4 file.
type DurationReader func(path string) (float64, error)

// Processor runs preparation requests. It holds no per-run state and can
// serve concurrent runs; each run owns its work directory.
type Processor struct {
	video    media.Transcoder
	audio    audio.Processor
	opts     Options
	tempDir  string
	duration DurationReader
	logger   *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithTempDir sets the parent of per-run work directories.
func WithTempDir(dir string) ProcessorOption {
	return func(p *Processor) {
		p.tempDir = dir
	}
}

// WithDurationReader replaces the MP4 duration check.
func WithDurationReader(fn DurationReader) ProcessorOption {
	return func(p *Processor) {
		p.duration = fn
	}
}

// NewProcessor creates a new Processor. opts must be valid.
func NewProcessor(video media.Transcoder, audioProc audio.Processor, opts Options, logger *slog.Logger, options ...ProcessorOption) (*Processor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		video:    video,
		audio:    audioProc,
		opts:     opts,
		duration: mp4info.Duration,
		logger:   logger,
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// Process prepares req.VideoPath and writes the video, montage and
// metadata into req.ExportDir. Inputs and chapters are checked before any
// media work starts.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if !fileutil.Exists(req.VideoPath) {
		return nil, fmt.Errorf("%w: video %s", ErrMissingInput, req.VideoPath)
	}
	chapterList, err := p.readChapters(req.ChapterPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(req.ExportDir, 0o750); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	log := p.logger.With(slog.String("video_id", req.VideoID))

	info, err := p.video.Probe(ctx, req.VideoPath)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", req.VideoPath, err)
	}
	log.Info("probed source",
		slog.String("file", filepath.Base(req.VideoPath)),
		slog.Float64("duration", info.Duration),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.String("video_codec", info.VideoCodec),
		slog.String("audio_codec", info.AudioCodec),
		slog.String("pixel_format", info.PixelFormat),
	)

	workDir, err := os.MkdirTemp(p.tempDir, "videoprep-*")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("failed to remove work directory", slog.String("dir", workDir), slog.String("error", err.Error()))
		}
	}()

	normalized := filepath.Join(workDir, "normalized.mp4")
	if err := p.video.NormalizeForWeb(ctx, req.VideoPath, normalized, info, p.opts.WebCRF); err != nil {
		return nil, fmt.Errorf("normalize %s: %w", req.VideoPath, err)
	}
	// Codec, duration and timescale can shift slightly after normalization.
	info, err = p.video.Probe(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", normalized, err)
	}

	meta := metadata.New(req.VideoID)

	built, err := pyramid.NewBuilder(p.video, p.audio, p.opts.pyramid(), log).Build(ctx, normalized, workDir, info)
	if err != nil {
		return nil, fmt.Errorf("build pyramid: %w", err)
	}
	meta.Pyramid = built.Metadata
	p.checkDuration(log, built.Path, built.Metadata.TotalDuration())

	videoPath := filepath.Join(req.ExportDir, VideoFile)
	if err := fileutil.Move(built.Path, videoPath); err != nil {
		return nil, fmt.Errorf("export video: %w", err)
	}

	sheet, err := montage.NewBuilder(p.video, p.opts.montage(), log).Build(ctx, normalized, workDir, info)
	if err != nil {
		return nil, fmt.Errorf("build montage: %w", err)
	}
	meta.Montage = sheet.Metadata

	montagePath := filepath.Join(req.ExportDir, MontageFile)
	if err := fileutil.Move(sheet.Path, montagePath); err != nil {
		return nil, fmt.Errorf("export montage: %w", err)
	}

	meta.Chapters = chapterList

	metaPath, err := meta.WriteFile(req.ExportDir)
	if err != nil {
		return nil, err
	}
	log.Info("wrote metadata", slog.String("path", metaPath))

	return &Result{
		Metadata:     meta,
		VideoPath:    videoPath,
		MontagePath:  montagePath,
		MetadataPath: metaPath,
	}, nil
}

// ProcessChaptersOnly writes an .avd holding only the identifier and
// chapters, for videos whose media was prepared earlier.
func (p *Processor) ProcessChaptersOnly(_ context.Context, chapterPath, exportDir, videoID string) (*Result, error) {
	if videoID == "" || exportDir == "" || chapterPath == "" {
		return nil, fmt.Errorf("%w: chapter path, export dir and video id are required", ErrInvalidRequest)
	}
	chapterList, err := p.readChapters(chapterPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(exportDir, 0o750); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	meta := metadata.New(videoID)
	meta.Chapters = chapterList

	metaPath, err := meta.WriteFile(exportDir)
	if err != nil {
		return nil, err
	}
	p.logger.Info("wrote chapters-only metadata",
		slog.String("video_id", videoID),
		slog.String("path", metaPath),
		slog.Int("chapters", len(chapterList)),
	)
	return &Result{Metadata: meta, MetadataPath: metaPath}, nil
}

// readChapters parses path. An empty path means no chapters.
func (p *Processor) readChapters(path string) ([]metadata.Chapter, error) {
	if path == "" {
		return nil, nil
	}
	if !fileutil.Exists(path) {
		return nil, fmt.Errorf("%w: chapters %s", ErrMissingInput, path)
	}
	list, err := chapters.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse chapters: %w", err)
	}
	return list, nil
}

// checkDuration compares the container duration with the expected total.
// A mismatch is logged, not fatal.
func (p *Processor) checkDuration(log *slog.Logger, path string, expected int) {
	got, err := p.duration(path)
	if err != nil {
		log.Warn("could not verify pyramid duration", slog.String("error", err.Error()))
		return
	}
	if math.Abs(got-float64(expected)) > 1 {
		log.Warn("pyramid duration mismatch",
			slog.Float64("container_duration", got),
			slog.Int("expected", expected),
		)
		return
	}
	log.Debug("pyramid duration verified", slog.Float64("container_duration", got))
}

func validateRequest(req Request) error {
	switch {
	case req.VideoPath == "":
		return fmt.Errorf("%w: video path is required", ErrInvalidRequest)
	case req.VideoID == "":
		return fmt.Errorf("%w: video id is required", ErrInvalidRequest)
	case req.ExportDir == "":
		return fmt.Errorf("%w: export dir is required", ErrInvalidRequest)
	}
	return nil
}
