// Command videoprep prepares local video files without the server, storage
// or queue. Tunables are read from the same environment as the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maauso/videoprep/internal/bootstrap"
	"github.com/maauso/videoprep/internal/config"
	"github.com/maauso/videoprep/internal/prep"
	"github.com/maauso/videoprep/internal/pyramid"
)

const usage = `usage:
  videoprep process -video FILE -id ID -out DIR [-chapters FILE]
  videoprep chapters -chapters FILE -id ID -out DIR
  videoprep join -out FILE INPUT...
`

var errUsage = errors.New("invalid arguments")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "videoprep: %v\n", err)
		os.Exit(1)
	}
}

type processArgs struct {
	video    string
	chapters string
	id       string
	out      string
}

type joinArgs struct {
	out    string
	inputs []string
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	switch args[0] {
	case "process":
		pa, err := parseProcess(args[1:], stderr)
		if err != nil {
			return err
		}
		return runProcess(ctx, pa)
	case "chapters":
		pa, err := parseChapters(args[1:], stderr)
		if err != nil {
			return err
		}
		return runChapters(ctx, pa)
	case "join":
		ja, err := parseJoin(args[1:], stderr)
		if err != nil {
			return err
		}
		return runJoin(ctx, ja)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func parseProcess(args []string, stderr io.Writer) (processArgs, error) {
	var pa processArgs
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&pa.video, "video", "", "source video file")
	fs.StringVar(&pa.chapters, "chapters", "", "optional chapter file")
	fs.StringVar(&pa.id, "id", "", "video ID written to the .avd file")
	fs.StringVar(&pa.out, "out", "", "export directory")
	if err := fs.Parse(args); err != nil {
		return pa, fmt.Errorf("%w: %w", errUsage, err)
	}
	if pa.video == "" || pa.id == "" || pa.out == "" {
		return pa, fmt.Errorf("%w: -video, -id and -out are required", errUsage)
	}
	return pa, nil
}

func parseChapters(args []string, stderr io.Writer) (processArgs, error) {
	var pa processArgs
	fs := flag.NewFlagSet("chapters", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&pa.chapters, "chapters", "", "chapter file")
	fs.StringVar(&pa.id, "id", "", "video ID written to the .avd file")
	fs.StringVar(&pa.out, "out", "", "export directory")
	if err := fs.Parse(args); err != nil {
		return pa, fmt.Errorf("%w: %w", errUsage, err)
	}
	if pa.chapters == "" || pa.id == "" || pa.out == "" {
		return pa, fmt.Errorf("%w: -chapters, -id and -out are required", errUsage)
	}
	return pa, nil
}

func parseJoin(args []string, stderr io.Writer) (joinArgs, error) {
	var ja joinArgs
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&ja.out, "out", "", "joined output file")
	if err := fs.Parse(args); err != nil {
		return ja, fmt.Errorf("%w: %w", errUsage, err)
	}
	ja.inputs = fs.Args()
	if ja.out == "" || len(ja.inputs) == 0 {
		return ja, fmt.Errorf("%w: -out and at least one input are required", errUsage)
	}
	return ja, nil
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runProcess(ctx context.Context, pa processArgs) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	tools, err := bootstrap.NewTools(ctx, cfg, logger)
	if err != nil {
		return err
	}
	p, err := bootstrap.NewPreparer(tools, cfg, logger)
	if err != nil {
		return err
	}

	res, err := p.Process(ctx, prep.Request{
		VideoPath:   pa.video,
		VideoID:     pa.id,
		ExportDir:   pa.out,
		ChapterPath: pa.chapters,
	})
	if err != nil {
		return err
	}
	logger.Info("video prepared",
		slog.String("video", res.VideoPath),
		slog.String("montage", res.MontagePath),
		slog.String("metadata", res.MetadataPath),
	)
	return nil
}

func runChapters(ctx context.Context, pa processArgs) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	// Chapter-only runs never touch media, so no ffmpeg is needed.
	p, err := prep.NewProcessor(nil, nil, cfg.Processing(), logger)
	if err != nil {
		return err
	}

	res, err := p.ProcessChaptersOnly(ctx, pa.chapters, pa.out, pa.id)
	if err != nil {
		return err
	}
	logger.Info("chapters written", slog.String("metadata", res.MetadataPath))
	return nil
}

func runJoin(ctx context.Context, ja joinArgs) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	tools, err := bootstrap.NewTools(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.TempDir, 0750); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	workDir, err := os.MkdirTemp(cfg.TempDir, "videoprep-join-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	opts := cfg.Processing()
	joiner := pyramid.NewJoiner(tools.Transcoder, tools.Audio, pyramid.Options{
		BlankAudioDuration: opts.BlankAudioDuration,
		PaddingBuffer:      opts.PaddingBuffer,
	}, logger)

	durations, err := joiner.Join(ctx, ja.inputs, ja.out, workDir)
	if err != nil {
		return err
	}
	logger.Info("segments joined",
		slog.String("output", ja.out),
		slog.Any("durations", durations),
	)
	return nil
}
