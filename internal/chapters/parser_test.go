package chapters

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := "START=00:09:00.368000\nTITLE=Sycamore Grove\nSTART=00:13:00.150000\nTITLE=Bachelor of the Year\n"

	got, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Sycamore Grove", got[0].Title)
	assert.InDelta(t, 540.368, got[0].Start, 1e-9)
	assert.Equal(t, "Bachelor of the Year", got[1].Title)
	assert.InDelta(t, 780.15, got[1].Start, 1e-9)
	assert.NotEqual(t, 780.0, got[1].Start)
}

func TestParse_AllComponentsCount(t *testing.T) {
	got, err := Parse(strings.NewReader("START=01:02:03.500000\nTITLE=x"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 3600+120+3.5, got[0].Start, 1e-9)
}

func TestParse_Lenient(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty file", "", 0},
		{"crlf line endings", "START=00:00:01.000000\r\nTITLE=One\r\n", 1},
		{"trailing blank lines", "START=00:00:01.000000\nTITLE=One\n\n\n", 1},
		{"no fraction", "START=00:00:05\nTITLE=Five\n", 1},
		{"title containing equals", "START=00:00:05.0\nTITLE=a=b\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParse_TitleKeepsEquals(t *testing.T) {
	got, err := Parse(strings.NewReader("START=00:00:05.0\nTITLE=a=b\n"))
	require.NoError(t, err)
	assert.Equal(t, "a=b", got[0].Title)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"start without title", "START=00:00:01.000000\nTITLE=One\nSTART=00:00:02.000000\n"},
		{"blank line between pairs", "START=00:00:01.000000\nTITLE=One\n\nSTART=00:00:02.000000\nTITLE=Two\n"},
		{"title first", "TITLE=One\nSTART=00:00:01.000000\n"},
		{"missing separator", "START 00:00:01\nTITLE=One\n"},
		{"bad timestamp", "START=1:2:3\nTITLE=One\n"},
		{"minutes out of range", "START=00:61:00.0\nTITLE=One\n"},
		{"seconds out of range", "START=00:00:60.0\nTITLE=One\n"},
		{"two starts", "START=00:00:01.0\nSTART=00:00:02.0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chapters.txt")
	require.NoError(t, os.WriteFile(path, []byte("START=00:00:10.250000\nTITLE=Ten\n"), 0o600))

	got, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 10.25, got[0].Start, 1e-9)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"00:00:00.000000", 0},
		{"00:13:00.150000", 780.15},
		{"02:00:00", 7200},
		{"00:00:59.999999", 59.999999},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}
