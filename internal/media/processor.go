// Package media provides probing and the video side of the transcoding
// capability: speed changes, container-duration padding, concatenation,
// muxing, frame extraction and web normalization.
package media

import "context"

// Transcoder defines the video operations the pipeline delegates to an
// external tool. Implementations block until the operation completes.
type Transcoder interface {
	// Probe reads stream and container metadata for path.
	Probe(ctx context.Context, path string) (*ProbeInfo, error)

	// SpeedChangeVideo writes a video-only copy of src played back rate
	// times faster. This re-encodes. timeBase sets the output track timescale.
	SpeedChangeVideo(ctx context.Context, src, dst string, rate, timeBase int) error

	// PadToDuration stamps an exact container duration of seconds onto src
	// by replacing its chapters with one chapter spanning [0, seconds].
	// Streams are copied. Audio is dropped unless includeAudio is set.
	PadToDuration(ctx context.Context, src, dst string, seconds int, includeAudio bool) error

	// Concat joins files in order using stream copy. When trims is non-nil,
	// each file is cut at the matching length in seconds.
	Concat(ctx context.Context, files []string, dst string, trims []int) error

	// Mux combines the first video stream of video with the first audio
	// stream of audio. Both tracks are always stream copied.
	Mux(ctx context.Context, video, audio, dst string) error

	// ExtractFrame writes a single frame at the given second. A seek past
	// the end of the stream may succeed without producing dst.
	ExtractFrame(ctx context.Context, src, dst string, second int) error

	// NormalizeForWeb writes an H.264/AAC/yuv420p MP4. Compatible sources
	// are remuxed, everything else is transcoded at the given CRF.
	NormalizeForWeb(ctx context.Context, src, dst string, info *ProbeInfo, crf int) error
}
