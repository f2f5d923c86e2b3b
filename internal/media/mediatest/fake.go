// Package mediatest provides an in-memory stand-in for the ffmpeg-backed
// transcoder and audio processor. It tracks a duration per path instead of
// encoding anything, so pipeline logic can be tested without ffmpeg.
package mediatest

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/maauso/videoprep/internal/audio"
	"github.com/maauso/videoprep/internal/media"
)

var (
	_ media.Transcoder = (*Fake)(nil)
	_ audio.Processor  = (*Fake)(nil)
)

// Operation names recorded in Calls and accepted by Fail.
const (
	OpProbe        = "probe"
	OpSpeedVideo   = "speed_video"
	OpPad          = "pad"
	OpConcat       = "concat"
	OpMux          = "mux"
	OpExtractFrame = "extract_frame"
	OpNormalize    = "normalize"
	OpSilence      = "silence"
	OpExtractAudio = "extract_audio"
	OpSpeedAudio   = "speed_audio"
	OpPadAudio     = "pad_audio"
)

// Call is one recorded invocation.
type Call struct {
	Op  string
	Src string
	Dst string
	// Int holds the rate, doubling count, padded seconds or frame second.
	Int int
	// IncludeAudio is set for pad calls that keep the audio track.
	IncludeAudio bool
	// Trims holds the concat trim lengths.
	Trims []int
	// Files holds the concat inputs.
	Files []string
}

// Fake implements media.Transcoder and audio.Processor.
type Fake struct {
	// Info is the template returned by Probe; Duration is replaced by the tracked value.
	Info media.ProbeInfo
	// Fail makes the named operation return the error.
	Fail map[string]error
	// MissingFrames lists seconds for which ExtractFrame succeeds without writing a file.
	MissingFrames map[int]bool
	// FrameWidth and FrameHeight size extracted frames. Default to Info's size.
	FrameWidth, FrameHeight int
	// SpeedFn overrides the duration of a sped-up video. Defaults to d/rate.
	SpeedFn func(d float64, rate int) float64

	mu        sync.Mutex
	durations map[string]float64
	calls     []Call
}

// New creates a Fake probing as info, with src registered at info.Duration.
func New(src string, info media.ProbeInfo) *Fake {
	f := &Fake{Info: info, durations: map[string]float64{}}
	if src != "" {
		f.durations[src] = info.Duration
	}
	return f
}

// SetDuration registers the duration of path.
func (f *Fake) SetDuration(path string, d float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.durations == nil {
		f.durations = map[string]float64{}
	}
	f.durations[path] = d
}

// Duration returns the tracked duration of path.
func (f *Fake) Duration(path string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.durations[path]
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsFor returns the recorded calls of one operation.
func (f *Fake) CallsFor(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if err := f.Fail[c.Op]; err != nil {
		return err
	}
	return nil
}

func (f *Fake) output(dst string, d float64) error {
	f.SetDuration(dst, d)
	return os.WriteFile(dst, []byte("fake media"), 0o600)
}

func (f *Fake) known(path string) (float64, error) {
	f.mu.Lock()
	d, ok := f.durations[path]
	f.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("mediatest: unknown input %s", path)
	}
	return d, nil
}

// --- media.Transcoder ---

func (f *Fake) Probe(_ context.Context, path string) (*media.ProbeInfo, error) {
	if err := f.record(Call{Op: OpProbe, Src: path}); err != nil {
		return nil, err
	}
	d, err := f.known(path)
	if err != nil {
		return nil, err
	}
	info := f.Info
	info.Duration = d
	return &info, nil
}

func (f *Fake) SpeedChangeVideo(_ context.Context, src, dst string, rate, _ int) error {
	if err := f.record(Call{Op: OpSpeedVideo, Src: src, Dst: dst, Int: rate}); err != nil {
		return err
	}
	d, err := f.known(src)
	if err != nil {
		return err
	}
	if f.SpeedFn != nil {
		return f.output(dst, f.SpeedFn(d, rate))
	}
	return f.output(dst, d/float64(rate))
}

func (f *Fake) PadToDuration(_ context.Context, src, dst string, seconds int, includeAudio bool) error {
	if err := f.record(Call{Op: OpPad, Src: src, Dst: dst, Int: seconds, IncludeAudio: includeAudio}); err != nil {
		return err
	}
	if _, err := f.known(src); err != nil {
		return err
	}
	return f.output(dst, float64(seconds))
}

func (f *Fake) Concat(_ context.Context, files []string, dst string, trims []int) error {
	if err := f.record(Call{Op: OpConcat, Dst: dst, Files: append([]string(nil), files...), Trims: append([]int(nil), trims...)}); err != nil {
		return err
	}
	var total float64
	for i, file := range files {
		d, err := f.known(file)
		if err != nil {
			return err
		}
		if trims != nil {
			d = math.Min(d, float64(trims[i]))
		}
		total += d
	}
	return f.output(dst, total)
}

func (f *Fake) Mux(_ context.Context, video, audio, dst string) error {
	if err := f.record(Call{Op: OpMux, Src: video, Dst: dst, Files: []string{video, audio}}); err != nil {
		return err
	}
	d, err := f.known(video)
	if err != nil {
		return err
	}
	return f.output(dst, d)
}

func (f *Fake) ExtractFrame(_ context.Context, src, dst string, second int) error {
	if err := f.record(Call{Op: OpExtractFrame, Src: src, Dst: dst, Int: second}); err != nil {
		return err
	}
	if f.MissingFrames[second] {
		return nil
	}
	w, h := f.FrameWidth, f.FrameHeight
	if w == 0 || h == 0 {
		w, h = f.Info.Width, f.Info.Height
	}
	img := imaging.New(w, h, color.NRGBA{R: uint8(second % 256), G: 128, B: 64, A: 255})
	return imaging.Save(img, dst)
}

func (f *Fake) NormalizeForWeb(_ context.Context, src, dst string, _ *media.ProbeInfo, crf int) error {
	if err := f.record(Call{Op: OpNormalize, Src: src, Dst: dst, Int: crf}); err != nil {
		return err
	}
	d, err := f.known(src)
	if err != nil {
		return err
	}
	return f.output(dst, d)
}

// --- audio.Processor ---

func (f *Fake) Silence(_ context.Context, dst string, seconds float64, _, _ string) error {
	if err := f.record(Call{Op: OpSilence, Dst: dst, Int: int(seconds)}); err != nil {
		return err
	}
	return f.output(dst, seconds)
}

func (f *Fake) Extract(_ context.Context, src, dst string) error {
	if err := f.record(Call{Op: OpExtractAudio, Src: src, Dst: dst}); err != nil {
		return err
	}
	d, err := f.known(src)
	if err != nil {
		return err
	}
	return f.output(dst, d)
}

func (f *Fake) SpeedUp(_ context.Context, src, dst string, doublings int) error {
	if err := f.record(Call{Op: OpSpeedAudio, Src: src, Dst: dst, Int: doublings}); err != nil {
		return err
	}
	d, err := f.known(src)
	if err != nil {
		return err
	}
	return f.output(dst, d/float64(int(1)<<doublings))
}

func (f *Fake) PadWithSilence(_ context.Context, src, dst, silence string) error {
	if err := f.record(Call{Op: OpPadAudio, Src: src, Dst: dst, Files: []string{src, silence}}); err != nil {
		return err
	}
	a, err := f.known(src)
	if err != nil {
		return err
	}
	b, err := f.known(silence)
	if err != nil {
		return err
	}
	return f.output(dst, a+b)
}

// Base returns the base names of paths, for compact assertions.
func Base(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
