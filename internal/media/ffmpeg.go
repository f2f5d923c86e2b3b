package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/maauso/videoprep/internal/ffmpeg"
)

// Static errors for media operations.
var (
	// ErrNoInputFiles is returned when Concat is called with no files.
	ErrNoInputFiles = errors.New("media: no input files provided")
	// ErrInvalidRate is returned when a speed-up rate is not positive.
	ErrInvalidRate = errors.New("media: invalid rate: must be positive")
	// ErrInvalidDuration is returned when a target duration is negative.
	ErrInvalidDuration = errors.New("media: invalid duration: must not be negative")
)

// FFmpegTranscoder implements Transcoder using the ffmpeg and ffprobe CLIs.
type FFmpegTranscoder struct {
	runner *ffmpeg.Runner
	logger *slog.Logger
}

// NewFFmpegTranscoder creates a new FFmpegTranscoder on top of runner.
func NewFFmpegTranscoder(runner *ffmpeg.Runner, logger *slog.Logger) *FFmpegTranscoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegTranscoder{runner: runner, logger: logger}
}

// Probe runs ffprobe once and returns the parsed metadata.
func (t *FFmpegTranscoder) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	out, err := t.runner.Probe(ctx, "probe "+filepath.Base(path),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	if err != nil {
		return nil, err
	}
	info, err := ParseProbeJSON(out)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return info, nil
}

// SpeedChangeVideo re-encodes src without audio using setpts=1/rate*PTS.
func (t *FFmpegTranscoder) SpeedChangeVideo(ctx context.Context, src, dst string, rate, timeBase int) error {
	if rate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRate, rate)
	}
	if timeBase <= 0 {
		timeBase = DefaultTimeBase
	}
	factor := strconv.FormatFloat(1.0/float64(rate), 'g', -1, 64)

	return t.runner.Run(ctx, fmt.Sprintf("speed up video x%d", rate),
		"-y",
		"-i", src,
		"-an",
		"-vf", "setpts="+factor+"*PTS",
		"-video_track_timescale", strconv.Itoa(timeBase),
		dst,
	)
}

// PadToDuration strips chapters from src and muxes in a single chapter
// ending at seconds, which sets the container duration.
func (t *FFmpegTranscoder) PadToDuration(ctx context.Context, src, dst string, seconds int, includeAudio bool) error {
	if seconds < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, seconds)
	}
	dir := filepath.Dir(dst)

	stripped, err := os.CreateTemp(dir, "stripped-*"+filepath.Ext(dst))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	_ = stripped.Close()
	defer func() { _ = os.Remove(stripped.Name()) }()

	meta, err := ffmpeg.WriteChapterMetadata(dir, seconds)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(meta) }()

	if err := t.runner.Run(ctx, "strip chapters",
		"-y",
		"-i", src,
		"-codec", "copy",
		"-map_chapters", "-1",
		stripped.Name(),
	); err != nil {
		return err
	}

	args := []string{
		"-y",
		"-i", stripped.Name(),
		"-i", meta,
		"-map_metadata", "1",
	}
	if !includeAudio {
		args = append(args, "-an")
	}
	args = append(args, "-codec", "copy", dst)

	return t.runner.Run(ctx, fmt.Sprintf("pad to %ds", seconds), args...)
}

// Concat joins files with the concat demuxer. The list file is written
// next to dst and removed afterwards.
func (t *FFmpegTranscoder) Concat(ctx context.Context, files []string, dst string, trims []int) error {
	if len(files) == 0 {
		return ErrNoInputFiles
	}

	list, err := ffmpeg.WriteConcatList(filepath.Dir(dst), files, trims)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(list) }()

	return t.runner.Run(ctx, fmt.Sprintf("concat %d files", len(files)),
		"-y",
		"-safe", "0",
		"-f", "concat",
		"-i", list,
		"-c", "copy",
		dst,
	)
}

// Mux stream-copies the first video and first audio track into dst.
func (t *FFmpegTranscoder) Mux(ctx context.Context, video, audio, dst string) error {
	return t.runner.Run(ctx, "mux video+audio",
		"-y",
		"-i", video,
		"-i", audio,
		"-c:v", "copy",
		"-c:a", "copy",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		dst,
	)
}

// ExtractFrame seeks before the input for fast keyframe seeking and writes
// one frame scaled to square pixels.
func (t *FFmpegTranscoder) ExtractFrame(ctx context.Context, src, dst string, second int) error {
	tc := ffmpeg.Timecode(second)
	return t.runner.Run(ctx, "extract frame at "+tc,
		"-y",
		"-ss", tc,
		"-i", src,
		"-frames:v", "1",
		"-vf", "scale=iw*sar:ih",
		dst,
	)
}

// NormalizeForWeb remuxes web-compatible sources and transcodes the rest.
func (t *FFmpegTranscoder) NormalizeForWeb(ctx context.Context, src, dst string, info *ProbeInfo, crf int) error {
	var args []string
	if info.IsWebCompatible() {
		t.logger.Info("source is web-compatible, remuxing only",
			slog.String("video_codec", info.VideoCodec),
			slog.String("audio_codec", info.AudioCodec),
			slog.String("pixel_format", info.PixelFormat),
		)
		args = []string{
			"-y",
			"-i", src,
			"-c:v", "copy",
			"-c:a", "copy",
			"-movflags", "+faststart",
			dst,
		}
	} else {
		t.logger.Info("source needs normalization, transcoding to h264/aac/yuv420p",
			slog.String("video_codec", info.VideoCodec),
			slog.String("audio_codec", info.AudioCodec),
			slog.String("pixel_format", info.PixelFormat),
			slog.String("container", info.ContainerFormat),
		)
		args = []string{
			"-y",
			"-i", src,
			"-c:v", "libx264",
			"-preset", "medium",
			"-crf", strconv.Itoa(crf),
			"-pix_fmt", "yuv420p",
			"-c:a", "aac",
			"-b:a", "128k",
			"-movflags", "+faststart",
			dst,
		}
	}
	return t.runner.Run(ctx, "normalize for web", args...)
}
