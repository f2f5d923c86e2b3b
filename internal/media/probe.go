package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoVideoStream is returned when a probed file has no video stream.
var ErrNoVideoStream = errors.New("media: no video stream found")

// Defaults used when the probed file omits a value.
const (
	DefaultTimeBase      = 90000
	DefaultSampleRate    = "48000"
	DefaultChannelLayout = "stereo"
	// NoAudioCodec is reported as the audio codec of files without audio.
	NoAudioCodec = "none"
)

// webContainerTags are substrings of ffprobe format names that browsers play natively.
var webContainerTags = []string{"mp4", "mov", "m4a"}

// ProbeInfo holds the metadata read from a single ffprobe call.
// It is produced once per file and never modified afterwards.
type ProbeInfo struct {
	// Duration of the video stream in seconds.
	Duration float64
	Width    int
	Height   int
	// TimeBase is the denominator of the video stream time base (e.g. 90000).
	TimeBase           int
	AudioSampleRate    string
	AudioChannelLayout string
	VideoCodec         string
	AudioCodec         string
	PixelFormat        string
	// ContainerFormat is ffprobe's format_name, e.g. "mov,mp4,m4a,3gp,3g2,mj2".
	ContainerFormat string
}

// IsWebCompatible reports whether the file already is H.264 video with AAC
// (or no) audio in yuv420p inside an MP4-family container.
func (p *ProbeInfo) IsWebCompatible() bool {
	if p.VideoCodec != "h264" {
		return false
	}
	if p.AudioCodec != "aac" && p.AudioCodec != NoAudioCodec {
		return false
	}
	if p.PixelFormat != "yuv420p" {
		return false
	}
	for _, tag := range webContainerTags {
		if strings.Contains(p.ContainerFormat, tag) {
			return true
		}
	}
	return false
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

type ffprobeStream struct {
	CodecName     string `json:"codec_name"`
	CodecType     string `json:"codec_type"`
	PixFmt        string `json:"pix_fmt"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	TimeBase      string `json:"time_base"`
	Duration      string `json:"duration"`
	SampleRate    string `json:"sample_rate"`
	ChannelLayout string `json:"channel_layout"`
}

// ParseProbeJSON converts raw `ffprobe -show_format -show_streams` JSON
// into a ProbeInfo. Exported for testing without a real ffprobe binary.
func ParseProbeJSON(data []byte) (*ProbeInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	// Pick the video stream with the largest frame area.
	var video *ffprobeStream
	var audio *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil || s.Width*s.Height > video.Width*video.Height {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video == nil {
		return nil, ErrNoVideoStream
	}

	duration, err := parseDuration(video.Duration, raw.Format.Duration)
	if err != nil {
		return nil, err
	}

	info := &ProbeInfo{
		Duration:           duration,
		Width:              video.Width,
		Height:             video.Height,
		TimeBase:           parseTimeBase(video.TimeBase),
		AudioSampleRate:    DefaultSampleRate,
		AudioChannelLayout: DefaultChannelLayout,
		VideoCodec:         orUnknown(video.CodecName),
		AudioCodec:         NoAudioCodec,
		PixelFormat:        orUnknown(video.PixFmt),
		ContainerFormat:    orUnknown(raw.Format.FormatName),
	}

	if audio != nil {
		info.AudioCodec = orUnknown(audio.CodecName)
		if audio.SampleRate != "" {
			info.AudioSampleRate = audio.SampleRate
		}
		if audio.ChannelLayout != "" {
			info.AudioChannelLayout = audio.ChannelLayout
		}
	}

	return info, nil
}

// parseDuration prefers the stream duration and falls back to the container
// duration; Matroska files carry no per-stream duration.
func parseDuration(stream, format string) (float64, error) {
	for _, s := range []string{stream, format} {
		if s == "" || s == "N/A" {
			continue
		}
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", s, err)
		}
		return d, nil
	}
	return 0, errors.New("media: no duration in probe output")
}

// parseTimeBase returns the denominator of a "1/90000" style fraction.
func parseTimeBase(tb string) int {
	_, den, ok := strings.Cut(tb, "/")
	if !ok {
		return DefaultTimeBase
	}
	n, err := strconv.Atoi(den)
	if err != nil || n <= 0 {
		return DefaultTimeBase
	}
	return n
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
