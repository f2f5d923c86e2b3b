package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/videoprep/internal/ffmpeg"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestVideo creates a small H.264/AAC test video using ffmpeg.
func createTestVideo(t *testing.T, path string, duration float64, color string) {
	t.Helper()

	cmd := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=64x64:d=%.1f", color, duration),
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=44100:cl=mono:d=%.1f", duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		path,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func newTestTranscoder() *FFmpegTranscoder {
	return NewFFmpegTranscoder(ffmpeg.NewRunner("", "", nil), nil)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSpeedChangeVideo_InvalidRate(t *testing.T) {
	tr := newTestTranscoder()
	err := tr.SpeedChangeVideo(context.Background(), "in.mp4", "out.mp4", 0, 90000)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestPadToDuration_Negative(t *testing.T) {
	tr := newTestTranscoder()
	err := tr.PadToDuration(context.Background(), "in.mp4", filepath.Join(t.TempDir(), "out.mp4"), -1, false)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestConcat_NoFiles(t *testing.T) {
	tr := newTestTranscoder()
	err := tr.Concat(context.Background(), nil, "out.mp4", nil)
	assert.ErrorIs(t, err, ErrNoInputFiles)
}

func TestProbe(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	createTestVideo(t, src, 2.0, "red")

	info, err := newTestTranscoder().Probe(testContext(t), src)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, info.Duration, 0.2)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 64, info.Height)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, "aac", info.AudioCodec)
	assert.Equal(t, "44100", info.AudioSampleRate)
	assert.True(t, info.IsWebCompatible())
}

func TestProbe_MissingFile(t *testing.T) {
	skipIfNoFFmpeg(t)

	_, err := newTestTranscoder().Probe(testContext(t), filepath.Join(t.TempDir(), "missing.mp4"))
	require.Error(t, err)

	var ffErr *ffmpeg.Error
	assert.ErrorAs(t, err, &ffErr)
}

func TestSpeedChangeVideo(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := testContext(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "fast.mp4")
	createTestVideo(t, src, 4.0, "blue")

	tr := newTestTranscoder()
	require.NoError(t, tr.SpeedChangeVideo(ctx, src, dst, 2, 90000))

	info, err := tr.Probe(ctx, dst)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, info.Duration, 0.3)
	assert.Equal(t, NoAudioCodec, info.AudioCodec)
	assert.Equal(t, 90000, info.TimeBase)
}

func TestPadToDuration(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := testContext(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "padded.mp4")
	createTestVideo(t, src, 1.0, "green")

	tr := newTestTranscoder()
	require.NoError(t, tr.PadToDuration(ctx, src, dst, 3, false))

	info, err := tr.Probe(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, NoAudioCodec, info.AudioCodec)

	// Temp files live next to dst and must be gone.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestConcatAndMux(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := testContext(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")
	createTestVideo(t, a, 1.0, "red")
	createTestVideo(t, b, 1.0, "blue")

	tr := newTestTranscoder()

	joined := filepath.Join(dir, "joined.mp4")
	require.NoError(t, tr.Concat(ctx, []string{a, b}, joined, nil))

	info, err := tr.Probe(ctx, joined)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, info.Duration, 0.3)

	muxed := filepath.Join(dir, "muxed.mp4")
	require.NoError(t, tr.Mux(ctx, joined, a, muxed))

	info, err = tr.Probe(ctx, muxed)
	require.NoError(t, err)
	assert.Equal(t, "aac", info.AudioCodec)
}

func TestExtractFrame(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := testContext(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "frame.jpg")
	createTestVideo(t, src, 2.0, "yellow")

	require.NoError(t, newTestTranscoder().ExtractFrame(ctx, src, dst, 1))

	stat, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Positive(t, stat.Size())
}

func TestNormalizeForWeb(t *testing.T) {
	skipIfNoFFmpeg(t)

	ctx := testContext(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	createTestVideo(t, src, 1.0, "white")

	tr := newTestTranscoder()
	info, err := tr.Probe(ctx, src)
	require.NoError(t, err)

	t.Run("remux compatible source", func(t *testing.T) {
		dst := filepath.Join(dir, "remux.mp4")
		require.NoError(t, tr.NormalizeForWeb(ctx, src, dst, info, 18))
		_, err := os.Stat(dst)
		assert.NoError(t, err)
	})

	t.Run("transcode incompatible source", func(t *testing.T) {
		forced := *info
		forced.VideoCodec = "hevc"
		dst := filepath.Join(dir, "transcode.mp4")
		require.NoError(t, tr.NormalizeForWeb(ctx, src, dst, &forced, 28))

		out, err := tr.Probe(ctx, dst)
		require.NoError(t, err)
		assert.Equal(t, "h264", out.VideoCodec)
		assert.Equal(t, "yuv420p", out.PixelFormat)
	})
}
