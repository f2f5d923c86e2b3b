package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/maauso/videoprep/internal/ffmpeg"
)

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	runner *ffmpeg.Runner
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
func NewFFmpegProcessor(runner *ffmpeg.Runner) *FFmpegProcessor {
	return &FFmpegProcessor{runner: runner}
}

// Silence generates silence with the anullsrc source.
func (p *FFmpegProcessor) Silence(ctx context.Context, dst string, seconds float64, channelLayout, sampleRate string) error {
	if seconds <= 0 {
		return fmt.Errorf("silence duration must be positive, got %v", seconds)
	}
	source := fmt.Sprintf("anullsrc=channel_layout=%s:sample_rate=%s", channelLayout, sampleRate)
	dur := strconv.FormatFloat(seconds, 'f', -1, 64)

	return p.runner.Run(ctx, "silence "+dur+"s",
		"-y",
		"-f", "lavfi",
		"-i", source,
		"-t", dur,
		dst,
	)
}

// Extract copies the audio stream out of src.
func (p *FFmpegProcessor) Extract(ctx context.Context, src, dst string) error {
	return p.runner.Run(ctx, "extract audio from "+filepath.Base(src),
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "copy",
		dst,
	)
}

// SpeedUp applies a chained atempo filter and drops chapters.
func (p *FFmpegProcessor) SpeedUp(ctx context.Context, src, dst string, doublings int) error {
	chain, err := TempoChain(doublings)
	if err != nil {
		return err
	}
	return p.runner.Run(ctx, fmt.Sprintf("speed up audio x%d", 1<<doublings),
		"-y",
		"-i", src,
		"-vn",
		"-filter:a", chain,
		"-map_chapters", "-1",
		dst,
	)
}

// PadWithSilence concatenates src and silence with the concat demuxer.
func (p *FFmpegProcessor) PadWithSilence(ctx context.Context, src, dst, silence string) error {
	list, err := ffmpeg.WriteConcatList(filepath.Dir(dst), []string{src, silence}, nil)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(list) }()

	return p.runner.Run(ctx, "pad audio with silence",
		"-y",
		"-safe", "0",
		"-f", "concat",
		"-i", list,
		"-c", "copy",
		dst,
	)
}
