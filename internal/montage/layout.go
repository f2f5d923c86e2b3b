// Package montage builds a contact sheet of one thumbnail per second of video.
package montage

import (
	"errors"
	"fmt"
	"math"

	"github.com/maauso/videoprep/internal/media"
)

// MaxJPEGDimension is the largest width or height a JPEG image can have.
const MaxJPEGDimension = 65500

// Static errors for layout computation.
var (
	// ErrInvalidDimensions is returned when the source or thumbnail size is not positive.
	ErrInvalidDimensions = errors.New("montage: dimensions must be positive")
	// ErrThumbTooLarge is returned when a single thumbnail exceeds the maximum dimension.
	ErrThumbTooLarge = errors.New("montage: thumbnail larger than maximum image dimension")
)

// Layout is the grid geometry of a montage.
type Layout struct {
	ThumbWidth   int
	ThumbHeight  int
	Columns      int
	Rows         int
	ThumbCount   int
	TotalSeconds int
}

// Width returns the canvas width in pixels.
func (l Layout) Width() int { return l.Columns * l.ThumbWidth }

// Height returns the canvas height in pixels.
func (l Layout) Height() int { return l.Rows * l.ThumbHeight }

// Second maps sample index i in [0, ThumbCount] to a source second.
func (l Layout) Second(i int) int {
	if l.ThumbCount == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(i) / float64(l.ThumbCount) * float64(l.TotalSeconds)))
}

// ComputeLayout sizes the grid for info. Thumbnail height follows the
// source aspect ratio. Long videos are subsampled so that neither canvas
// side exceeds maxDim.
func ComputeLayout(info *media.ProbeInfo, thumbWidth, maxDim int) (Layout, error) {
	if info.Width <= 0 || info.Height <= 0 || thumbWidth <= 0 || maxDim <= 0 {
		return Layout{}, fmt.Errorf("%w: source %dx%d, thumbnail width %d, max %d",
			ErrInvalidDimensions, info.Width, info.Height, thumbWidth, maxDim)
	}

	total := int(math.Floor(info.Duration))
	if total < 0 {
		total = 0
	}

	aspect := float64(info.Height) / float64(info.Width)
	thumbHeight := max(1, int(math.RoundToEven(float64(thumbWidth)*aspect)))
	if thumbWidth > maxDim || thumbHeight > maxDim {
		return Layout{}, fmt.Errorf("%w: %dx%d exceeds %d", ErrThumbTooLarge, thumbWidth, thumbHeight, maxDim)
	}

	maxCols := maxDim / thumbWidth
	maxRows := maxDim / thumbHeight
	count := min(total, maxCols*maxRows)

	stacks := max(1, thumbWidth/thumbHeight)
	cols := int(math.Ceil(math.Sqrt(float64(count) / float64(stacks))))
	cols = min(max(cols, 1), maxCols)
	rows := ceilDiv(count, cols) + 1

	// Very tall cells can push the rows past the limit; widen the grid.
	if rows > maxRows {
		cols = min(max(cols, ceilDiv(count, max(maxRows-1, 1))), maxCols)
		rows = min(ceilDiv(count, cols)+1, maxRows)
	}

	return Layout{
		ThumbWidth:   thumbWidth,
		ThumbHeight:  thumbHeight,
		Columns:      cols,
		Rows:         rows,
		ThumbCount:   count,
		TotalSeconds: total,
	}, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
