// Package audio provides interfaces and implementations for audio processing.
package audio

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidDoublings is returned when a tempo chain of fewer than one doubling is requested.
var ErrInvalidDoublings = errors.New("audio: doubling count must be at least 1")

// MaxTempo is the largest factor a single atempo filter accepts.
const MaxTempo = 2.0

// Processor defines the audio operations used to build padded segments.
type Processor interface {
	// Silence writes a silent clip of the given duration in seconds.
	Silence(ctx context.Context, dst string, seconds float64, channelLayout, sampleRate string) error

	// Extract copies the audio track of src into dst without re-encoding.
	Extract(ctx context.Context, src, dst string) error

	// SpeedUp writes the audio of src played back 2^doublings times faster.
	SpeedUp(ctx context.Context, src, dst string, doublings int) error

	// PadWithSilence appends the silence clip to src using stream copy.
	PadWithSilence(ctx context.Context, src, dst, silence string) error
}

// TempoChain returns the filter graph that speeds audio up by 2^doublings.
// A single atempo accepts at most 2.0, so higher rates chain several.
func TempoChain(doublings int) (string, error) {
	if doublings < 1 {
		return "", ErrInvalidDoublings
	}
	parts := make([]string, doublings)
	for i := range parts {
		parts[i] = "atempo=2.0"
	}
	return strings.Join(parts, ","), nil
}
