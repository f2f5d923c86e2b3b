package montage

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/pixiv/go-libjpeg/jpeg"

	"github.com/maauso/videoprep/internal/fileutil"
	"github.com/maauso/videoprep/internal/media"
	"github.com/maauso/videoprep/internal/metadata"
)

// OutputName is the file name of the montage inside the work directory.
const OutputName = "montage.jpg"

// Default tunables.
const (
	DefaultThumbWidth  = 30
	DefaultBlurSigma   = 0.5
	DefaultJPEGQuality = 85
)

// Options configures the montage.
type Options struct {
	ThumbWidth int
	// BlurSigma is the Gaussian blur applied to each thumbnail; 0 disables it.
	BlurSigma   float64
	JPEGQuality int
	// MaxDimension bounds both canvas sides. Defaults to MaxJPEGDimension.
	MaxDimension int
}

// DefaultOptions returns the default montage options.
func DefaultOptions() Options {
	return Options{
		ThumbWidth:   DefaultThumbWidth,
		BlurSigma:    DefaultBlurSigma,
		JPEGQuality:  DefaultJPEGQuality,
		MaxDimension: MaxJPEGDimension,
	}
}

// FrameExtractor writes a single frame of a video at a whole second.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, src, dst string, second int) error
}

// Result is the output of a montage build.
type Result struct {
	Path     string
	Metadata *metadata.Montage
	// Frames is the number of thumbnails actually placed.
	Frames int
}

// Builder samples frames and composites them into a grid.
type Builder struct {
	frames FrameExtractor
	opts   Options
	logger *slog.Logger
}

// NewBuilder creates a new Builder.
func NewBuilder(frames FrameExtractor, opts Options, logger *slog.Logger) *Builder {
	if opts.MaxDimension == 0 {
		opts.MaxDimension = MaxJPEGDimension
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{frames: frames, opts: opts, logger: logger}
}

// Build writes workDir/montage.jpg for video.
//
// Indices 0..ThumbCount inclusive are sampled, so one more frame than the
// recorded count may be placed; the spare grid row holds it.
func (b *Builder) Build(ctx context.Context, video, workDir string, info *media.ProbeInfo) (*Result, error) {
	layout, err := ComputeLayout(info, b.opts.ThumbWidth, b.opts.MaxDimension)
	if err != nil {
		return nil, err
	}

	b.logger.Info("building montage",
		slog.Int("thumbs", layout.ThumbCount),
		slog.Int("thumb_width", layout.ThumbWidth),
		slog.Int("thumb_height", layout.ThumbHeight),
		slog.Int("columns", layout.Columns),
		slog.Int("rows", layout.Rows),
	)

	frameDir := filepath.Join(workDir, "frames")
	if err := os.MkdirAll(frameDir, 0o750); err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}

	canvas := imaging.New(layout.Width(), layout.Height(), color.Black)
	capacity := layout.Columns * layout.Rows
	placed := 0

	for i := 0; i <= layout.ThumbCount; i++ {
		sec := layout.Second(i)
		thumb, err := b.thumbnail(ctx, video, frameDir, sec, layout)
		if err != nil {
			return nil, err
		}
		if thumb == nil {
			b.logger.Warn("skipping missing frame", slog.Int("second", sec))
			continue
		}
		if placed >= capacity {
			b.logger.Warn("grid full, dropping frame", slog.Int("second", sec))
			continue
		}

		x := (placed % layout.Columns) * layout.ThumbWidth
		y := (placed / layout.Columns) * layout.ThumbHeight
		canvas = imaging.Paste(canvas, thumb, image.Pt(x, y))
		placed++
	}

	out := filepath.Join(workDir, OutputName)
	if err := b.save(canvas, out); err != nil {
		return nil, fmt.Errorf("save montage %s: %w", out, err)
	}

	b.logger.Info("montage saved",
		slog.String("path", out),
		slog.Int("width", layout.Width()),
		slog.Int("height", layout.Height()),
		slog.Int("frames", placed),
	)

	return &Result{
		Path: out,
		Metadata: &metadata.Montage{
			ThumbWidth:  layout.ThumbWidth,
			ThumbHeight: layout.ThumbHeight,
			Columns:     layout.Columns,
			ThumbCount:  layout.ThumbCount,
		},
		Frames: placed,
	}, nil
}

// thumbnail extracts the frame at sec, retrying one second earlier when
// nothing was written, and returns it resized and blurred. A nil image
// means the frame is unavailable.
func (b *Builder) thumbnail(ctx context.Context, video, frameDir string, sec int, layout Layout) (image.Image, error) {
	path := filepath.Join(frameDir, strconv.Itoa(sec)+".png")
	defer func() { _ = os.Remove(path) }()

	if err := b.frames.ExtractFrame(ctx, video, path, sec); err != nil {
		return nil, fmt.Errorf("extract frame at %ds from %s: %w", sec, video, err)
	}
	if !fileutil.Exists(path) && sec > 0 {
		b.logger.Warn("frame missing, retrying one second earlier", slog.Int("second", sec))
		if err := b.frames.ExtractFrame(ctx, video, path, sec-1); err != nil {
			return nil, fmt.Errorf("extract frame at %ds from %s: %w", sec-1, video, err)
		}
	}
	if !fileutil.Exists(path) {
		return nil, nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}

	thumb := imaging.Resize(img, layout.ThumbWidth, layout.ThumbHeight, imaging.Lanczos)
	if b.opts.BlurSigma > 0 {
		thumb = imaging.Blur(thumb, b.opts.BlurSigma)
	}
	return thumb, nil
}

// save writes img as a progressive JPEG with optimized Huffman tables.
func (b *Builder) save(img image.Image, path string) error {
	f, err := os.Create(path) // #nosec G304 - path is inside the run's work directory
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.EncoderOptions{
		Quality:         b.opts.JPEGQuality,
		OptimizeCoding:  true,
		ProgressiveMode: true,
	}); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
