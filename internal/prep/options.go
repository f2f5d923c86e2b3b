// Package prep runs the full preparation of one video: normalization, the
// fast-forward pyramid, the thumbnail montage, chapters and the .avd file.
package prep

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/videoprep/internal/montage"
	"github.com/maauso/videoprep/internal/pyramid"
)

// DefaultWebCRF is the H.264 quality used when normalization transcodes.
const DefaultWebCRF = 18

// Options holds every processing tunable. It is built once and not
// modified during a run.
type Options struct {
	// ThumbnailWidth is the width in pixels of each montage cell.
	ThumbnailWidth int `validate:"min=1,max=65500"`
	// JPEGQuality is the montage quality, 1-100.
	JPEGQuality int `validate:"min=1,max=100"`
	// BlurSigma is the Gaussian blur applied to thumbnails; 0 disables it.
	BlurSigma float64 `validate:"min=0"`
	// BlankAudioDuration is the length in seconds of the silent padding clip.
	BlankAudioDuration float64 `validate:"gt=0"`
	// PaddingBuffer is added to every segment before rounding up to whole seconds.
	PaddingBuffer int `validate:"min=0"`
	// WebCRF is the H.264 CRF used when the source must be transcoded (0-51).
	WebCRF int `validate:"min=0,max=51"`
}

// DefaultOptions returns the default tunables.
func DefaultOptions() Options {
	return Options{
		ThumbnailWidth:     montage.DefaultThumbWidth,
		JPEGQuality:        montage.DefaultJPEGQuality,
		BlurSigma:          montage.DefaultBlurSigma,
		BlankAudioDuration: pyramid.DefaultBlankAudioDuration,
		PaddingBuffer:      pyramid.DefaultPaddingBuffer,
		WebCRF:             DefaultWebCRF,
	}
}

// Validate checks every field against its documented range.
func (o Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("invalid processing options: %w", err)
	}
	return nil
}

func (o Options) pyramid() pyramid.Options {
	return pyramid.Options{
		BlankAudioDuration: o.BlankAudioDuration,
		PaddingBuffer:      o.PaddingBuffer,
	}
}

func (o Options) montage() montage.Options {
	return montage.Options{
		ThumbWidth:   o.ThumbnailWidth,
		BlurSigma:    o.BlurSigma,
		JPEGQuality:  o.JPEGQuality,
		MaxDimension: montage.MaxJPEGDimension,
	}
}
