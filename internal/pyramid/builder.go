package pyramid

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/videoprep/internal/audio"
	"github.com/maauso/videoprep/internal/media"
	"github.com/maauso/videoprep/internal/metadata"
)

// OutputName is the file name of the pyramid inside the work directory.
const OutputName = "pyramid.mp4"

// Result is the output of a pyramid build.
type Result struct {
	// Path of the concatenated video inside the work directory.
	Path     string
	Metadata *metadata.Pyramid
}

// Builder builds the rate-doubling pyramid of one source video.
type Builder struct {
	pipeline
}

// NewBuilder creates a new Builder.
func NewBuilder(video media.Transcoder, audioProc audio.Processor, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{pipeline{video: video, audio: audioProc, opts: opts, logger: logger}}
}

// segmentFiles names the intermediate files of one rate.
type segmentFiles struct {
	video, fitVideo, audio, fitAudio string
}

func filesForRate(workDir string, rate int) segmentFiles {
	if rate == 1 {
		return segmentFiles{
			fitVideo: filepath.Join(workDir, "src_fit.mp4"),
			audio:    filepath.Join(workDir, "src_audio.mp4"),
			fitAudio: filepath.Join(workDir, "src_padded_audio.mp4"),
		}
	}
	return segmentFiles{
		video:    filepath.Join(workDir, fmt.Sprintf("ffwd_video_%d.mp4", rate)),
		fitVideo: filepath.Join(workDir, fmt.Sprintf("ffwd_video_fit_%d.mp4", rate)),
		audio:    filepath.Join(workDir, fmt.Sprintf("ffwd_audio_%d.mp4", rate)),
		fitAudio: filepath.Join(workDir, fmt.Sprintf("ffwd_audio_pad_%d.mp4", rate)),
	}
}

// Build writes the pyramid of src into workDir. Every intermediate file is
// created inside workDir; the caller owns its lifetime.
func (b *Builder) Build(ctx context.Context, src, workDir string, info *media.ProbeInfo) (*Result, error) {
	log := b.logger.With(slog.String("source", filepath.Base(src)))

	blank, err := b.silence(ctx, workDir, info)
	if err != nil {
		return nil, err
	}

	meta := &metadata.Pyramid{}
	var videos, audios []string

	// Rate 1: the source itself.
	padded := PaddedDuration(info.Duration, b.opts.PaddingBuffer)
	files := filesForRate(workDir, 1)
	if err := b.video.PadToDuration(ctx, src, files.fitVideo, padded, false); err != nil {
		return nil, fmt.Errorf("pad %s to %ds: %w", files.fitVideo, padded, err)
	}

	raw := ""
	if hasAudio(info) {
		raw = files.audio
		if err := b.audio.Extract(ctx, src, raw); err != nil {
			return nil, fmt.Errorf("extract audio from %s: %w", src, err)
		}
	}
	if err := b.paddedAudio(ctx, raw, blank, files.fitAudio, info.Duration, padded, info); err != nil {
		return nil, err
	}

	meta.Append(1, info.Duration, padded)
	videos = append(videos, files.fitVideo)
	audios = append(audios, files.fitAudio)
	log.Info("built segment",
		slog.Int("rate", 1),
		slog.Float64("duration", info.Duration),
		slog.Int("padded", padded),
	)

	// Doubled rates until a segment would last one second or less.
	prev := info.Duration
	for rate, doublings := 2, 1; prev > 1; rate, doublings = rate*2, doublings+1 {
		files := filesForRate(workDir, rate)

		if err := b.video.SpeedChangeVideo(ctx, src, files.video, rate, info.TimeBase); err != nil {
			return nil, fmt.Errorf("speed up %s x%d: %w", src, rate, err)
		}
		fast, err := b.video.Probe(ctx, files.video)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", files.video, err)
		}
		duration := fast.Duration
		if duration <= 1 {
			log.Debug("segment too short, stopping", slog.Int("rate", rate), slog.Float64("duration", duration))
			break
		}
		if duration >= prev {
			// Probed durations are quantized, so a ladder that stops shrinking ends here.
			log.Warn("speed-up did not shorten the video, stopping",
				slog.Int("rate", rate),
				slog.Float64("duration", duration),
				slog.Float64("previous", prev),
			)
			break
		}

		padded := PaddedDuration(duration, b.opts.PaddingBuffer)
		if err := b.video.PadToDuration(ctx, files.video, files.fitVideo, padded, false); err != nil {
			return nil, fmt.Errorf("pad %s to %ds: %w", files.fitVideo, padded, err)
		}

		fastAudio := ""
		if raw != "" {
			fastAudio = files.audio
			if err := b.audio.SpeedUp(ctx, raw, fastAudio, doublings); err != nil {
				return nil, fmt.Errorf("speed up audio x%d: %w", rate, err)
			}
		}
		if err := b.paddedAudio(ctx, fastAudio, blank, files.fitAudio, duration, padded, info); err != nil {
			return nil, err
		}

		meta.Append(rate, duration, padded)
		videos = append(videos, files.fitVideo)
		audios = append(audios, files.fitAudio)
		log.Info("built segment",
			slog.Int("rate", rate),
			slog.Float64("duration", duration),
			slog.Int("padded", padded),
		)
		prev = duration
	}

	out := filepath.Join(workDir, OutputName)
	if err := b.assemble(ctx, workDir, videos, audios, meta.PaddedDurations, out); err != nil {
		return nil, err
	}

	log.Info("pyramid complete",
		slog.Int("segments", meta.Len()),
		slog.Int("total_duration", meta.TotalDuration()),
	)
	return &Result{Path: out, Metadata: meta}, nil
}
