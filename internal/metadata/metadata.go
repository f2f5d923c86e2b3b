// Package metadata defines the per-video description written alongside the
// prepared assets and its compact .avd JSON encoding.
//
// The encoding uses single-letter keys:
//
//	{"I":"<id>","V":{"R":[...],"D":[...],"X":[...]},"M":{"W":..,"H":..,"B":..,"N":..},"C":[["title",sec],...]}
//
// V, M and C are omitted entirely when not produced.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Extension is the file extension of serialized metadata.
const Extension = ".avd"

// ErrInvalidChapter is returned when a chapter pair cannot be decoded.
var ErrInvalidChapter = errors.New("metadata: chapter must be a [title, seconds] pair")

// Pyramid describes the speed-doubled segments of the concatenated video.
// The three slices are index aligned.
type Pyramid struct {
	Rates           []int     `json:"R"`
	Durations       []float64 `json:"D"`
	PaddedDurations []int     `json:"X"`
}

// Append adds one segment to the end of the pyramid.
func (p *Pyramid) Append(rate int, duration float64, padded int) {
	p.Rates = append(p.Rates, rate)
	p.Durations = append(p.Durations, duration)
	p.PaddedDurations = append(p.PaddedDurations, padded)
}

// Len returns the number of segments.
func (p *Pyramid) Len() int {
	return len(p.Rates)
}

// TotalDuration returns the sum of the padded durations, which is the
// duration of the concatenated file.
func (p *Pyramid) TotalDuration() int {
	total := 0
	for _, d := range p.PaddedDurations {
		total += d
	}
	return total
}

// Montage describes the thumbnail grid.
type Montage struct {
	ThumbWidth  int `json:"W"`
	ThumbHeight int `json:"H"`
	Columns     int `json:"B"`
	ThumbCount  int `json:"N"`
}

// Chapter is a named start offset in seconds.
type Chapter struct {
	Title string
	Start float64
}

// MarshalJSON encodes the chapter as a [title, seconds] pair.
func (c Chapter) MarshalJSON() ([]byte, error) {
	return marshalCompact([]any{c.Title, c.Start})
}

// UnmarshalJSON decodes a [title, seconds] pair.
func (c *Chapter) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChapter, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: got %d elements", ErrInvalidChapter, len(pair))
	}
	if err := json.Unmarshal(pair[0], &c.Title); err != nil {
		return fmt.Errorf("%w: title: %w", ErrInvalidChapter, err)
	}
	if err := json.Unmarshal(pair[1], &c.Start); err != nil {
		return fmt.Errorf("%w: seconds: %w", ErrInvalidChapter, err)
	}
	return nil
}

// Video is the top-level description of one prepared video.
type Video struct {
	ID       string    `json:"I"`
	Pyramid  *Pyramid  `json:"V,omitempty"`
	Montage  *Montage  `json:"M,omitempty"`
	Chapters []Chapter `json:"C,omitempty"`
}

// New creates an empty description for id.
func New(id string) *Video {
	return &Video{ID: id}
}

// Marshal encodes v without insignificant whitespace.
func (v *Video) Marshal() ([]byte, error) {
	return marshalCompact(v)
}

// WriteFile writes the encoded metadata to dir/<id>.avd and returns the path.
func (v *Video) WriteFile(dir string) (string, error) {
	data, err := v.Marshal()
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	path := filepath.Join(dir, v.ID+Extension)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write metadata %s: %w", path, err)
	}
	return path, nil
}

// Unmarshal decodes .avd JSON.
func Unmarshal(data []byte) (*Video, error) {
	var v Video
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &v, nil
}

// ReadFile reads and decodes an .avd file.
func ReadFile(path string) (*Video, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by trusted internal code
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return Unmarshal(data)
}

// marshalCompact encodes without HTML escaping so titles keep their
// characters as written.
func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
