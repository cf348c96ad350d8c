package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrlokans/mimeroute/internal/auth"
)

// TokenCommand generates an API token and the bcrypt hash the server checks it against.
type TokenCommand struct {
	Cost int
	Out  io.Writer
}

func NewTokenCommand() *TokenCommand {
	return &TokenCommand{}
}

func (cmd *TokenCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)

	fs.IntVar(&cmd.Cost, "cost", auth.DefaultBcryptCost, "bcrypt cost factor")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s token [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate an API token for AUTH_MODE=token.\n\n")
		fmt.Fprintf(os.Stderr, "The token is printed once. Only its hash needs to be configured.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *TokenCommand) Run() error {
	if cmd.Out == nil {
		cmd.Out = os.Stdout
	}

	token, hash, err := auth.GenerateAPIToken(cmd.Cost)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	fmt.Fprintf(cmd.Out, "API token (send as 'Authorization: Bearer <token>'):\n  %s\n\n", token)
	fmt.Fprintf(cmd.Out, "Server configuration:\n  AUTH_MODE=token\n  AUTH_API_TOKEN_HASH='%s'\n", hash)
	return nil
}
