// ABOUTME: Entry point for socrates-gateway
// ABOUTME: Parses go-flags commands: serve, turn and token

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/2389/socrates-gateway/internal/config"
)

// Version is set at build time.
var version = "dev"

// app carries state shared by all commands.
type app struct {
	ctx    context.Context
	Config string `short:"c" long:"config" description:"Path to config YAML (default: $SOCRATES_CONFIG or $XDG_CONFIG_HOME/socrates/config.yaml)"`
}

type options struct {
	app

	Serve serveCmd `command:"serve" description:"Start the HTTP gateway"`
	Turn  turnCmd  `command:"turn" description:"Run one turn from the terminal and print frames as JSON lines"`
	Token tokenCmd `command:"token" description:"Mint a bearer token for the HTTP API"`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: loading .env: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := &options{}
	opts.ctx = ctx
	opts.Serve.app = &opts.app
	opts.Turn.app = &opts.app
	opts.Token.app = &opts.app

	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		// go-flags has already printed the error.
		cancel()
		os.Exit(1)
	}
}

// loadConfig resolves and loads the configuration. The default location is
// optional; without a file the development defaults apply.
func (a *app) loadConfig() (*config.Config, string, error) {
	path, required := config.ResolvePath(a.Config)
	if !required {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return config.Default(), "(defaults)", nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}
