package ffmpeg

import "fmt"

// Error represents a failed ffmpeg or ffprobe invocation, including the stderr output.
type Error struct {
	Op     string
	Args   []string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: ffmpeg error: %v\nargs: %v\nstderr: %s", e.Op, e.Err, e.Args, e.Stderr)
}

func (e *Error) Unwrap() error {
	return e.Err
}
