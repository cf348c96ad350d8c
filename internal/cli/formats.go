package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/mrlokans/mimeroute/internal/batch"
)

// FormatsCommand lists the direct conversions offered by the backend.
type FormatsCommand struct {
	commonFlags
	JSON bool
}

func NewFormatsCommand() *FormatsCommand {
	return &FormatsCommand{}
}

func (cmd *FormatsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("formats", flag.ExitOnError)

	fs.BoolVar(&cmd.JSON, "json", false, "Print the conversions as JSON")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s formats [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List every direct source -> target conversion the backend offers.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *FormatsCommand) Run() error {
	backend, logger, err := cmd.setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pairs, err := batch.NewService(backend, nil, batch.WithLogger(logger)).ListSupportedConversions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conversions: %w", err)
	}

	if cmd.JSON {
		enc := json.NewEncoder(cmd.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(pairs)
	}

	for _, source := range sortedKeys(pairs) {
		fmt.Fprintf(cmd.Out, "%s -> %s\n", source, strings.Join(pairs[source], ", "))
	}
	return nil
}
