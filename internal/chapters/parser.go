// Package chapters parses chapter marker files.
//
// A marker file is a strict alternation of lines:
//
//	START=00:09:00.368000
//	TITLE=Sycamore Grove
//	START=00:13:00.150000
//	TITLE=Bachelor of the Year
//
// Parsing ends cleanly at end of file between pairs.
package chapters

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/maauso/videoprep/internal/metadata"
)

const (
	startKey = "START"
	titleKey = "TITLE"
)

// ErrMalformed is returned for any line that breaks the marker format.
var ErrMalformed = errors.New("chapters: malformed chapter file")

var timestampRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})(?:\.(\d{1,9}))?$`)

// ParseFile opens path and parses it.
func ParseFile(path string) ([]metadata.Chapter, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by trusted internal code
	if err != nil {
		return nil, fmt.Errorf("open chapter file: %w", err)
	}
	defer func() { _ = f.Close() }()

	chapters, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return chapters, nil
}

// Parse reads START/TITLE pairs from r in file order.
// Trailing blank lines at the end of the input are ignored.
func Parse(r io.Reader) ([]metadata.Chapter, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read chapter file: %w", err)
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	chapters := make([]metadata.Chapter, 0, len(lines)/2)
	for i := 0; i < len(lines); i += 2 {
		ts, err := value(lines[i], startKey, i+1)
		if err != nil {
			return nil, err
		}
		start, err := ParseTimestamp(ts)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformed, i+1, err)
		}

		if i+1 >= len(lines) {
			return nil, fmt.Errorf("%w: line %d: %s without %s", ErrMalformed, i+1, startKey, titleKey)
		}
		title, err := value(lines[i+1], titleKey, i+2)
		if err != nil {
			return nil, err
		}

		chapters = append(chapters, metadata.Chapter{Title: title, Start: start})
	}
	return chapters, nil
}

// value returns the text after "key=" on line.
func value(line, key string, lineNo int) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%w: line %d: blank line", ErrMalformed, lineNo)
	}
	k, v, ok := strings.Cut(line, "=")
	if !ok || k != key {
		return "", fmt.Errorf("%w: line %d: expected %s=, got %q", ErrMalformed, lineNo, key, line)
	}
	return v, nil
}

// ParseTimestamp converts HH:MM:SS[.fraction] into seconds.
func ParseTimestamp(ts string) (float64, error) {
	m := timestampRe.FindStringSubmatch(ts)
	if m == nil {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	if minutes >= 60 || seconds >= 60 {
		return 0, fmt.Errorf("invalid timestamp %q: minutes and seconds must be below 60", ts)
	}

	var fraction float64
	if m[4] != "" {
		fraction, _ = strconv.ParseFloat("0."+m[4], 64)
	}

	return float64(hours*3600+minutes*60+seconds) + fraction, nil
}
