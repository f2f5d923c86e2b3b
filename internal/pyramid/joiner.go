package pyramid

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/videoprep/internal/audio"
	"github.com/maauso/videoprep/internal/fileutil"
	"github.com/maauso/videoprep/internal/media"
)

// Joiner concatenates distinct videos, each padded to a whole number of
// seconds with a silent tail.
type Joiner struct {
	pipeline
}

// NewJoiner creates a new Joiner.
func NewJoiner(video media.Transcoder, audioProc audio.Processor, opts Options, logger *slog.Logger) *Joiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Joiner{pipeline{video: video, audio: audioProc, opts: opts, logger: logger}}
}

// Join writes inputs back to back into exportPath and returns the padded
// duration of each input. The silent clip uses the audio format of the
// first input.
func (j *Joiner) Join(ctx context.Context, inputs []string, exportPath, workDir string) ([]int, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	infos := make([]*media.ProbeInfo, len(inputs))
	for i, src := range inputs {
		info, err := j.video.Probe(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", src, err)
		}
		infos[i] = info
	}

	blank, err := j.silence(ctx, workDir, infos[0])
	if err != nil {
		return nil, err
	}

	padded := make([]int, 0, len(inputs))
	videos := make([]string, 0, len(inputs))
	audios := make([]string, 0, len(inputs))

	for i, src := range inputs {
		info := infos[i]
		d := PaddedDuration(info.Duration, j.opts.PaddingBuffer)

		fitVideo := filepath.Join(workDir, fmt.Sprintf("join_video_%d.mp4", i))
		if err := j.video.PadToDuration(ctx, src, fitVideo, d, false); err != nil {
			return nil, fmt.Errorf("pad %s to %ds: %w", src, d, err)
		}

		raw := ""
		if hasAudio(info) {
			raw = filepath.Join(workDir, fmt.Sprintf("join_raw_audio_%d.mp4", i))
			if err := j.audio.Extract(ctx, src, raw); err != nil {
				return nil, fmt.Errorf("extract audio from %s: %w", src, err)
			}
		}
		fitAudio := filepath.Join(workDir, fmt.Sprintf("join_audio_%d.mp4", i))
		if err := j.paddedAudio(ctx, raw, blank, fitAudio, info.Duration, d, infos[0]); err != nil {
			return nil, err
		}

		padded = append(padded, d)
		videos = append(videos, fitVideo)
		audios = append(audios, fitAudio)
	}

	final := filepath.Join(workDir, "join_final.mp4")
	if err := j.assemble(ctx, workDir, videos, audios, padded, final); err != nil {
		return nil, err
	}

	if err := fileutil.Move(final, exportPath); err != nil {
		return nil, fmt.Errorf("move joined video: %w", err)
	}

	j.logger.Info("joined videos",
		slog.Int("count", len(inputs)),
		slog.String("output", exportPath),
		slog.Any("padded_durations", padded),
	)
	return padded, nil
}
