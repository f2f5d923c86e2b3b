package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteConcatList writes an ffmpeg concat demuxer list into dir and returns
// its path. When trims is non-nil each entry is followed by an outpoint
// directive with the matching length in seconds; trims must then have the
// same length as files. The caller removes the file.
func WriteConcatList(dir string, files []string, trims []int) (string, error) {
	if trims != nil && len(trims) != len(files) {
		return "", fmt.Errorf("concat list: %d files but %d trim lengths", len(files), len(trims))
	}

	f, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(ConcatList(files, trims)); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write concat list: %w", err)
	}
	return f.Name(), nil
}

// ConcatList renders the concat demuxer directives for files.
func ConcatList(files []string, trims []int) string {
	var b strings.Builder
	for i, path := range files {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		// Escape single quotes in path
		escaped := strings.ReplaceAll(path, "'", "'\\''")
		fmt.Fprintf(&b, "file '%s'\n", escaped)
		if trims != nil {
			fmt.Fprintf(&b, "outpoint %d\n", trims[i])
		}
	}
	return b.String()
}

// WriteChapterMetadata writes an FFMETADATA1 file holding a single chapter
// that spans [0, seconds]. Muxing it into a stream copy stamps an exact
// container duration without re-encoding.
func WriteChapterMetadata(dir string, seconds int) (string, error) {
	f, err := os.CreateTemp(dir, "chapter-*.txt")
	if err != nil {
		return "", fmt.Errorf("create chapter metadata: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(ChapterMetadata(seconds)); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write chapter metadata: %w", err)
	}
	return f.Name(), nil
}

// ChapterMetadata renders the FFMETADATA1 document used by WriteChapterMetadata.
func ChapterMetadata(seconds int) string {
	return fmt.Sprintf(
		";FFMETADATA1\ntitle=x\n\n[CHAPTER]\nTIMEBASE=1/1000\nSTART=0\nEND=%d\nTITLE=x\n",
		seconds*1000,
	)
}

// Timecode formats whole seconds as HH:MM:SS for -ss.
func Timecode(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
