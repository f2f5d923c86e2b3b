package pyramid

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/videoprep/internal/media"
	"github.com/maauso/videoprep/internal/media/mediatest"
)

func sourceInfo(duration float64) media.ProbeInfo {
	return media.ProbeInfo{
		Duration:           duration,
		Width:              1920,
		Height:             1080,
		TimeBase:           90000,
		AudioSampleRate:    "48000",
		AudioChannelLayout: "stereo",
		VideoCodec:         "h264",
		AudioCodec:         "aac",
		PixelFormat:        "yuv420p",
		ContainerFormat:    "mov,mp4,m4a,3gp,3g2,mj2",
	}
}

func build(t *testing.T, duration float64) (*Result, *mediatest.Fake) {
	t.Helper()

	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.mp4")
	info := sourceInfo(duration)
	fake := mediatest.New(src, info)

	b := NewBuilder(fake, fake, DefaultOptions(), nil)
	res, err := b.Build(context.Background(), src, workDir, &info)
	require.NoError(t, err)
	return res, fake
}

func TestPaddedDuration(t *testing.T) {
	assert.Equal(t, 11, PaddedDuration(9.3, 1))
	assert.Equal(t, 6, PaddedDuration(4.65, 1))
	assert.Equal(t, 3, PaddedDuration(2.0, 1))
	assert.Equal(t, 2, PaddedDuration(2.0, 0))
	assert.Equal(t, 5, PaddedDuration(0.2, 4))
}

func TestBuilder_Build_NinePointThreeSeconds(t *testing.T) {
	res, fake := build(t, 9.3)

	meta := res.Metadata
	assert.Equal(t, []int{1, 2, 4, 8}, meta.Rates)
	assert.Equal(t, []int{11, 6, 4, 3}, meta.PaddedDurations)
	require.Len(t, meta.Durations, 4)
	assert.InDelta(t, 9.3, meta.Durations[0], 1e-9)
	assert.InDelta(t, 4.65, meta.Durations[1], 1e-9)
	assert.InDelta(t, 2.325, meta.Durations[2], 1e-9)
	assert.InDelta(t, 1.1625, meta.Durations[3], 1e-9)
	assert.Equal(t, 24, meta.TotalDuration())

	// The rate-16 copy is built and probed but not kept.
	speeds := fake.CallsFor(mediatest.OpSpeedVideo)
	require.Len(t, speeds, 4)
	assert.Equal(t, 16, speeds[3].Int)

	// Final file carries the summed duration.
	assert.Equal(t, OutputName, filepath.Base(res.Path))
	assert.InDelta(t, 24.0, fake.Duration(res.Path), 1e-9)
	_, err := os.Stat(res.Path)
	assert.NoError(t, err)
}

func TestBuilder_Build_AudioPipeline(t *testing.T) {
	_, fake := build(t, 9.3)

	// Audio doublings follow the rate.
	var doublings []int
	for _, c := range fake.CallsFor(mediatest.OpSpeedAudio) {
		doublings = append(doublings, c.Int)
	}
	assert.Equal(t, []int{1, 2, 3}, doublings)

	// One shared silent clip, every segment padded with it.
	silences := fake.CallsFor(mediatest.OpSilence)
	require.Len(t, silences, 1)
	for _, c := range fake.CallsFor(mediatest.OpPadAudio) {
		assert.Equal(t, silences[0].Dst, c.Files[1])
	}

	// Video concat is untrimmed; audio concat trims to the padded durations.
	concats := fake.CallsFor(mediatest.OpConcat)
	require.Len(t, concats, 2)
	assert.Nil(t, concats[0].Trims)
	assert.Len(t, concats[0].Files, 4)
	assert.Equal(t, []int{11, 6, 4, 3}, concats[1].Trims)

	// Mux uses both concatenations.
	muxes := fake.CallsFor(mediatest.OpMux)
	require.Len(t, muxes, 1)
	assert.Equal(t, []string{concats[0].Dst, concats[1].Dst}, muxes[0].Files)
}

func TestBuilder_Build_PadCalls(t *testing.T) {
	_, fake := build(t, 9.3)

	pads := fake.CallsFor(mediatest.OpPad)
	require.Len(t, pads, 5)
	for _, c := range pads[:4] {
		assert.False(t, c.IncludeAudio, "segment pads are video only")
	}
	last := pads[4]
	assert.True(t, last.IncludeAudio)
	assert.Equal(t, 24, last.Int)
}

func TestBuilder_Build_ShortSource(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		padded   int
	}{
		{"under a second", 0.8, 2},
		{"exactly one second", 1.0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, fake := build(t, tt.duration)

			assert.Equal(t, []int{1}, res.Metadata.Rates)
			assert.Equal(t, []int{tt.padded}, res.Metadata.PaddedDurations)
			assert.Empty(t, fake.CallsFor(mediatest.OpSpeedVideo))
			assert.Empty(t, fake.CallsFor(mediatest.OpSpeedAudio))
		})
	}
}

func TestBuilder_Build_LadderInvariants(t *testing.T) {
	for _, d := range []float64{1.01, 1.5, 2, 3.7, 17.25, 60, 3600.4} {
		res, _ := build(t, d)
		meta := res.Metadata

		require.Equal(t, 1, meta.Rates[0], "duration %v", d)
		require.Equal(t, len(meta.Rates), len(meta.Durations))
		require.Equal(t, len(meta.Rates), len(meta.PaddedDurations))
		for i := range meta.Rates {
			if i > 0 {
				assert.Equal(t, 2*meta.Rates[i-1], meta.Rates[i])
				assert.Greater(t, meta.Durations[i], 1.0)
			}
			assert.GreaterOrEqual(t, meta.PaddedDurations[i], int(math.Ceil(meta.Durations[i])))
		}
	}
}

func TestBuilder_Build_Idempotent(t *testing.T) {
	first, _ := build(t, 42.7)
	second, _ := build(t, 42.7)

	assert.Equal(t, first.Metadata, second.Metadata)
}

func TestBuilder_Build_NoAudio(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.mp4")
	info := sourceInfo(5.0)
	info.AudioCodec = media.NoAudioCodec
	fake := mediatest.New(src, info)

	res, err := NewBuilder(fake, fake, DefaultOptions(), nil).Build(context.Background(), src, workDir, &info)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 4}, res.Metadata.Rates)
	assert.Empty(t, fake.CallsFor(mediatest.OpExtractAudio))
	assert.Empty(t, fake.CallsFor(mediatest.OpSpeedAudio))

	// Shared clip plus one full-length silent track per segment.
	silences := fake.CallsFor(mediatest.OpSilence)
	require.Len(t, silences, 4)
	assert.Equal(t, 6, silences[1].Int)
}

func TestBuilder_Build_CapabilityFailure(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.mp4")
	info := sourceInfo(9.3)
	fake := mediatest.New(src, info)
	boom := errors.New("encoder crashed")
	fake.Fail = map[string]error{mediatest.OpSpeedVideo: boom}

	_, err := NewBuilder(fake, fake, DefaultOptions(), nil).Build(context.Background(), src, workDir, &info)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "x2")
	assert.Empty(t, fake.CallsFor(mediatest.OpMux))
}

func TestBuilder_Build_StopsWhenSpeedUpDoesNotShorten(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.mp4")
	info := sourceInfo(9.3)
	fake := mediatest.New(src, info)
	fake.SpeedFn = func(d float64, _ int) float64 { return d }

	res, err := NewBuilder(fake, fake, DefaultOptions(), nil).Build(context.Background(), src, workDir, &info)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, res.Metadata.Rates)
	assert.Equal(t, []int{11}, res.Metadata.PaddedDurations)
	assert.Len(t, fake.CallsFor(mediatest.OpSpeedVideo), 1)
	assert.Empty(t, fake.CallsFor(mediatest.OpSpeedAudio))
	assert.InDelta(t, 11.0, fake.Duration(res.Path), 1e-9)
}

func TestBuilder_Build_AudioCoversPaddedDuration(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.mp4")
	info := sourceInfo(9.3)
	fake := mediatest.New(src, info)

	// A blank clip shorter than buffer+1 cannot fill the padding on its own.
	opts := Options{BlankAudioDuration: 1, PaddingBuffer: 3}
	res, err := NewBuilder(fake, fake, opts, nil).Build(context.Background(), src, workDir, &info)
	require.NoError(t, err)

	padded := res.Metadata.PaddedDurations
	assert.Equal(t, []int{13, 8, 6, 5}, padded)

	pads := fake.CallsFor(mediatest.OpPadAudio)
	require.Len(t, pads, len(padded))
	for i, c := range pads {
		assert.GreaterOrEqual(t, fake.Duration(c.Dst), float64(padded[i]), "segment %d", i)
	}

	concats := fake.CallsFor(mediatest.OpConcat)
	require.Len(t, concats, 2)
	assert.InDelta(t, fake.Duration(concats[0].Dst), fake.Duration(concats[1].Dst), 1e-9)
	assert.InDelta(t, 32.0, fake.Duration(concats[1].Dst), 1e-9)
}

func TestBuilder_Build_SharedBlankWhenLongEnough(t *testing.T) {
	_, fake := build(t, 9.3)

	// Default blank audio (5s) covers buffer+1, so no per-segment tails.
	assert.Len(t, fake.CallsFor(mediatest.OpSilence), 1)
	for _, c := range fake.CallsFor(mediatest.OpPadAudio) {
		assert.NotContains(t, c.Files[1], "_tail")
	}
}

func TestBuilder_Build_CustomBuffer(t *testing.T) {
	workDir := t.TempDir()
	src := filepath.Join(workDir, "source.mp4")
	info := sourceInfo(9.3)
	fake := mediatest.New(src, info)

	opts := Options{BlankAudioDuration: 8, PaddingBuffer: 3}
	res, err := NewBuilder(fake, fake, opts, nil).Build(context.Background(), src, workDir, &info)
	require.NoError(t, err)

	assert.Equal(t, []int{13, 8, 6, 5}, res.Metadata.PaddedDurations)
	assert.Equal(t, 8, fake.CallsFor(mediatest.OpSilence)[0].Int)
}
