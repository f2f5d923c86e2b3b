// Package pyramid builds the fast-forward video: the source followed by
// copies of itself played 2x, 4x, 8x... faster, each padded to a whole
// number of seconds so clients can seek to exact offsets. It also joins
// unrelated videos with the same padding scheme.
package pyramid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/maauso/videoprep/internal/audio"
	"github.com/maauso/videoprep/internal/media"
)

// ErrNoInputs is returned when Join is called without videos.
var ErrNoInputs = errors.New("pyramid: at least one input video is required")

// Default tunables.
const (
	DefaultBlankAudioDuration = 5.0
	DefaultPaddingBuffer      = 1
)

// Options configures padding. The zero value is not valid; use DefaultOptions.
type Options struct {
	// BlankAudioDuration is the length in seconds of the shared silent clip
	// appended to every segment's audio.
	BlankAudioDuration float64
	// PaddingBuffer is added to each segment duration before rounding up.
	PaddingBuffer int
}

// DefaultOptions returns the default padding options.
func DefaultOptions() Options {
	return Options{
		BlankAudioDuration: DefaultBlankAudioDuration,
		PaddingBuffer:      DefaultPaddingBuffer,
	}
}

// PaddedDuration returns the whole-second length a segment of the given
// actual duration is padded to.
func PaddedDuration(duration float64, buffer int) int {
	return int(math.Ceil(duration + float64(buffer)))
}

// pipeline holds the steps shared by Builder and Joiner.
type pipeline struct {
	video  media.Transcoder
	audio  audio.Processor
	opts   Options
	logger *slog.Logger
}

// silence writes the shared padding clip in the given audio format.
func (p *pipeline) silence(ctx context.Context, workDir string, info *media.ProbeInfo) (string, error) {
	dst := filepath.Join(workDir, "blank_audio.mp4")
	if err := p.audio.Silence(ctx, dst, p.opts.BlankAudioDuration, info.AudioChannelLayout, info.AudioSampleRate); err != nil {
		return "", fmt.Errorf("create blank audio: %w", err)
	}
	return dst, nil
}

// paddedAudio builds the audio half of a segment. raw is the segment's
// audio track of the given duration, or empty when the source has none, in
// which case the whole segment is silence of the padded length. The concat
// step can only trim, so the silent tail must reach the padded length; when
// the shared clip is too short a longer tail is written for this segment.
func (p *pipeline) paddedAudio(ctx context.Context, raw, blank, dst string, duration float64, padded int, info *media.ProbeInfo) error {
	if raw == "" {
		if err := p.audio.Silence(ctx, dst, float64(padded), info.AudioChannelLayout, info.AudioSampleRate); err != nil {
			return fmt.Errorf("create silent segment %s: %w", dst, err)
		}
		return nil
	}

	tail := blank
	if need := math.Ceil(float64(padded) - duration); need > p.opts.BlankAudioDuration {
		tail = strings.TrimSuffix(dst, filepath.Ext(dst)) + "_tail.mp4"
		if err := p.audio.Silence(ctx, tail, need, info.AudioChannelLayout, info.AudioSampleRate); err != nil {
			return fmt.Errorf("create silent tail %s: %w", tail, err)
		}
	}
	if err := p.audio.PadWithSilence(ctx, raw, dst, tail); err != nil {
		return fmt.Errorf("pad audio %s: %w", dst, err)
	}
	return nil
}

// assemble concatenates the padded segments, muxes video and audio and
// stamps the total duration onto dst.
func (p *pipeline) assemble(ctx context.Context, workDir string, videos, audios []string, padded []int, dst string) error {
	concatVideo := filepath.Join(workDir, "final_video.mp4")
	if err := p.video.Concat(ctx, videos, concatVideo, nil); err != nil {
		return fmt.Errorf("concatenate video segments: %w", err)
	}

	concatAudio := filepath.Join(workDir, "final_audio.mp4")
	if err := p.video.Concat(ctx, audios, concatAudio, padded); err != nil {
		return fmt.Errorf("concatenate audio segments: %w", err)
	}

	joined := filepath.Join(workDir, "final_join.mp4")
	if err := p.video.Mux(ctx, concatVideo, concatAudio, joined); err != nil {
		return fmt.Errorf("mux %s: %w", joined, err)
	}

	total := 0
	for _, d := range padded {
		total += d
	}
	p.logger.Debug("assembling segments",
		slog.Any("padded_durations", padded),
		slog.Int("total", total),
	)

	if err := p.video.PadToDuration(ctx, joined, dst, total, true); err != nil {
		return fmt.Errorf("pad %s to %ds: %w", dst, total, err)
	}
	return nil
}

func hasAudio(info *media.ProbeInfo) bool {
	return info.AudioCodec != media.NoAudioCodec
}
