package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/storage"
)

// CheckCommand reports whether items can be converted, without touching any file.
type CheckCommand struct {
	commonFlags
	inputFlags
}

func NewCheckCommand() *CheckCommand {
	cmd := &CheckCommand{}
	cmd.IDs.split = true
	return cmd
}

func (cmd *CheckCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)

	fs.Var(&cmd.IDs, "id", "Backend file ID (repeatable, comma-separated)")
	fs.Var(&cmd.Files, "file", "Local file to check (repeatable)")
	fs.StringVar(&cmd.ContentType, "type", "", "Content type of -file inputs (sniffed when empty)")
	fs.StringVar(&cmd.Target, "target", "", "Target MIME type (required)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s check -target <type> (-id <id> | -file <path>)... [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Show the conversion route of each item without converting anything.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s check -target application/pdf -id 1AbC,1DeF\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s check -target text/csv -file report.xlsx\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	return cmd.validate()
}

func (cmd *CheckCommand) Run() error {
	backend, logger, err := cmd.setup()
	if err != nil {
		return err
	}

	items, err := cmd.objects()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := batch.NewService(backend, nil, batch.WithLogger(logger)).Check(ctx, items, cmd.Target)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	possible := 0
	for i, res := range results {
		label := storage.Describe(res.Reference)
		switch {
		case res.Err != nil:
			fmt.Fprintf(cmd.Out, "%d. %s: error: %v\n", i+1, label, res.Err)
		case res.IsPossible:
			possible++
			fmt.Fprintf(cmd.Out, "%d. %s: %s\n", i+1, label, strings.Join(res.ConversionRoute, " -> "))
		default:
			fmt.Fprintf(cmd.Out, "%d. %s: not possible from %s\n", i+1, label, res.Reference.MIME())
		}
	}
	fmt.Fprintf(cmd.Out, "\n%d/%d items can be converted to %s\n", possible, len(results), cmd.Target)
	return nil
}
