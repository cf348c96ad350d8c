package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/mrlokans/mimeroute/internal/audit"
	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/config"
	"github.com/mrlokans/mimeroute/internal/storage"
)

// ConvertCommand converts items and writes blob results to a local directory.
type ConvertCommand struct {
	commonFlags
	inputFlags
	FolderID  string
	Strict    bool
	OutputDir string
	ReportDir string
}

// ConvertReport is the JSON summary written to the report directory.
type ConvertReport struct {
	Target     string         `json:"target"`
	FolderID   string         `json:"folder_id"`
	Strict     bool           `json:"strict"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Error      string         `json:"error,omitempty"`
	Items      []ReportedItem `json:"items"`
}

// ReportedItem is the outcome of one converted item.
type ReportedItem struct {
	Source  string   `json:"source"`
	Route   []string `json:"route,omitempty"`
	FileID  string   `json:"file_id,omitempty"`
	Path    string   `json:"path,omitempty"`
	Skipped bool     `json:"skipped,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func NewConvertCommand() *ConvertCommand {
	cmd := &ConvertCommand{}
	cmd.IDs.split = true
	return cmd
}

func (cmd *ConvertCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	cmd.cfg = config.NewConfig()

	fs.Var(&cmd.IDs, "id", "Backend file ID (repeatable, comma-separated)")
	fs.Var(&cmd.Files, "file", "Local file to convert (repeatable)")
	fs.StringVar(&cmd.ContentType, "type", "", "Content type of -file inputs (sniffed when empty)")
	fs.StringVar(&cmd.Target, "target", "", "Target MIME type (required)")
	fs.StringVar(&cmd.FolderID, "folder", cmd.cfg.Conversion.DefaultFolderID, "Backend folder for converted files")
	fs.BoolVar(&cmd.Strict, "strict", cmd.cfg.Conversion.Strict, "Stop at the first item that cannot be converted")
	fs.StringVar(&cmd.OutputDir, "out", ".", "Directory for converted content")
	fs.StringVar(&cmd.ReportDir, "report-dir", "", "Write a JSON report of the batch to this directory")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s convert -target <type> (-id <id> | -file <path>)... [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Convert files by chaining the backend's import and export formats.\n\n")
		fmt.Fprintf(os.Stderr, "Results with a backend-native type are stored as backend files and their\n")
		fmt.Fprintf(os.Stderr, "IDs are printed. Other results are written to -out.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s convert -target application/pdf -id 1AbC -out ./pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s convert -target application/vnd.google-apps.document -file notes.docx\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	return cmd.validate()
}

func (cmd *ConvertCommand) Run() error {
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

	report := ConvertReport{Target: cmd.Target, FolderID: cmd.FolderID, Strict: cmd.Strict, StartedAt: time.Now()}

	service := batch.NewService(backend, nil, batch.WithLogger(logger))
	results, convErr := service.Convert(ctx, items, cmd.Target, batch.Options{FolderID: cmd.FolderID, Strict: cmd.Strict})
	if convErr != nil && results == nil {
		return fmt.Errorf("conversion failed: %w", convErr)
	}

	converted := 0
	for i, res := range results {
		item := ReportedItem{Source: storage.Describe(res.Reference), Route: res.ConversionRoute}
		label := fmt.Sprintf("%d. %s", i+1, item.Source)

		switch out := res.Output.(type) {
		case nil:
			switch {
			case res.Err != nil:
				item.Error = res.Err.Error()
			case !res.IsPossible:
				item.Error = "conversion unsupported"
			}
			fmt.Fprintf(cmd.Out, "%s: failed: %s\n", label, item.Error)
		case storage.FileRef:
			converted++
			item.FileID = out.ID
			item.Skipped = len(res.ConversionRoute) == 1
			fmt.Fprintf(cmd.Out, "%s: file %s\n", label, out.ID)
		case storage.Blob:
			path, err := writeBlob(cmd.OutputDir, "output-"+strconv.Itoa(i+1), &out)
			if err != nil {
				item.Error = err.Error()
				fmt.Fprintf(cmd.Out, "%s: failed: %v\n", label, err)
				break
			}
			converted++
			item.Path = path
			item.Skipped = len(res.ConversionRoute) == 1
			fmt.Fprintf(cmd.Out, "%s: wrote %s\n", label, path)
		}
		report.Items = append(report.Items, item)
	}

	fmt.Fprintf(cmd.Out, "\nConverted %d/%d items to %s\n", converted, len(items), cmd.Target)

	report.FinishedAt = time.Now()
	if convErr != nil {
		report.Error = convErr.Error()
	}
	if cmd.ReportDir != "" {
		path, err := audit.NewReportArchive(cmd.ReportDir, logger).SaveJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.Out, "Report saved to %s\n", path)
	}

	if convErr != nil {
		return fmt.Errorf("batch stopped early: %w", convErr)
	}
	return nil
}
