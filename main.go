package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/mimeroute/internal/cli"
	"github.com/mrlokans/mimeroute/internal/config"
	"github.com/mrlokans/mimeroute/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "formats":
		cmd = cli.NewFormatsCommand()
	case "check":
		cmd = cli.NewCheckCommand()
	case "convert":
		cmd = cli.NewConvertCommand()
	case "thumbnails":
		cmd = cli.NewThumbnailsCommand()
	case "token":
		cmd = cli.NewTokenCommand()
	case "version":
		fmt.Printf("mimeroute %s (%s)\n", Version, Commit)
		return
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve       Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  formats     List the conversions the storage backend supports\n")
	fmt.Fprintf(os.Stderr, "  check       Show how items would be converted to a target type\n")
	fmt.Fprintf(os.Stderr, "  convert     Convert backend files or local files to a target type\n")
	fmt.Fprintf(os.Stderr, "  thumbnails  Download thumbnails of backend files\n")
	fmt.Fprintf(os.Stderr, "  token       Generate an API token and its bcrypt hash\n")
	fmt.Fprintf(os.Stderr, "  version     Print the build version\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
