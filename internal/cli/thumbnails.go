package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/mrlokans/mimeroute/internal/thumbnails"
)

// ThumbnailsCommand downloads rendered previews of backend files.
type ThumbnailsCommand struct {
	commonFlags
	IDs       listFlag
	Width     int
	OutputDir string
}

func NewThumbnailsCommand() *ThumbnailsCommand {
	cmd := &ThumbnailsCommand{}
	cmd.IDs.split = true
	return cmd
}

func (cmd *ThumbnailsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("thumbnails", flag.ExitOnError)

	fs.Var(&cmd.IDs, "id", "Backend file ID (repeatable, comma-separated, required)")
	fs.IntVar(&cmd.Width, "width", thumbnails.DefaultWidth, "Thumbnail width in pixels")
	fs.StringVar(&cmd.OutputDir, "out", "./thumbnails", "Directory for downloaded thumbnails")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s thumbnails -id <id>[,<id>...] [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Download thumbnails of backend files.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(cmd.IDs.values) == 0 {
		return fmt.Errorf("required flag -id not provided")
	}
	if cmd.Width <= 0 {
		return fmt.Errorf("-width must be positive")
	}
	return nil
}

func (cmd *ThumbnailsCommand) Run() error {
	backend, logger, err := cmd.setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	blobs, err := thumbnails.NewFetcher(backend, backend, logger).FetchAll(ctx, cmd.IDs.values, cmd.Width)
	if err != nil {
		return err
	}

	saved := 0
	for i, blob := range blobs {
		id := cmd.IDs.values[i]
		if blob == nil {
			fmt.Fprintf(cmd.Out, "%s: no thumbnail\n", id)
			continue
		}
		// Name thumbnails after the file ID; names are not unique.
		blob.Name = id
		path, err := writeBlob(cmd.OutputDir, id, blob)
		if err != nil {
			return err
		}
		saved++
		fmt.Fprintf(cmd.Out, "%s: wrote %s\n", id, path)
	}

	fmt.Fprintf(cmd.Out, "\nSaved %d/%d thumbnails\n", saved, len(blobs))
	return nil
}
