// ABOUTME: serve, turn and token command implementations
// ABOUTME: Each command loads config, builds its logger and drives the gateway

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/2389/socrates-gateway/internal/auth"
	"github.com/2389/socrates-gateway/internal/gateway"
	"github.com/2389/socrates-gateway/internal/turn"
)

const banner = `
                           _
 ___  ___   ___ _ __ __ _| |_ ___  ___
/ __|/ _ \ / __| '__/ _' | __/ _ \/ __|
\__ \ (_) | (__| | | (_| | ||  __/\__ \
|___/\___/ \___|_|  \__,_|\__\___||___/
`

type serveCmd struct {
	app *app
}

// Execute starts the HTTP gateway and blocks until shutdown.
func (c *serveCmd) Execute(_ []string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, path, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", path)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Provider:  %s (%s)\n", cfg.Provider.Kind, cfg.Provider.Model)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s %s\n", cfg.Database.Driver, cfg.Database.Path)
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! HTTP auth disabled (auth.jwt_secret not set)")
	}
	fmt.Println()

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(c.app.ctx)
}

type turnCmd struct {
	app *app

	Conversation string `short:"C" long:"conversation" description:"Existing conversation ID (default: create a new one)"`
	Resume       bool   `long:"resume" description:"Run a turn over the stored history without a new message"`

	Args struct {
		Message []string `positional-arg-name:"message"`
	} `positional-args:"yes"`
}

// Execute runs one turn and prints the frames as JSON lines on stdout.
func (c *turnCmd) Execute(_ []string) error {
	content := strings.Join(c.Args.Message, " ")
	if !c.Resume && strings.TrimSpace(content) == "" {
		return gateway.ErrEmptyContent
	}
	if c.Resume && c.Conversation == "" {
		return errors.New("--resume requires --conversation")
	}

	cfg, _, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	logger := stderrLogger(cfg.Logging)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	defer func() {
		if err := gw.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	id := c.Conversation
	if id == "" {
		conv, err := gw.CreateConversation(c.app.ctx)
		if err != nil {
			return err
		}
		id = conv.ID()
	}
	fmt.Fprintf(os.Stderr, "conversation: %s\n", id)

	sink := newJSONLinesSink(os.Stdout)
	if c.Resume {
		return gw.ResumeTurn(c.app.ctx, id, sink)
	}
	return gw.SendMessage(c.app.ctx, id, content, sink)
}

type tokenCmd struct {
	app *app

	Subject string        `short:"s" long:"subject" required:"yes" description:"Subject (sub claim) of the token"`
	TTL     time.Duration `long:"ttl" default:"720h" description:"Token lifetime"`
}

// Execute prints a signed bearer token.
func (c *tokenCmd) Execute(_ []string) error {
	cfg, _, err := c.app.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return err
	}
	token, err := verifier.Generate(c.Subject, c.TTL)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// jsonLine is one frame printed by the turn command.
type jsonLine struct {
	Type    turn.FrameType `json:"type"`
	Payload any            `json:"payload"`
}

// jsonLinesSink writes frames as newline-delimited JSON.
type jsonLinesSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closed bool
}

func newJSONLinesSink(w io.Writer) *jsonLinesSink {
	return &jsonLinesSink{enc: json.NewEncoder(w)}
}

func (s *jsonLinesSink) Write(f turn.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return gateway.ErrSinkClosed
	}
	return s.enc.Encode(jsonLine{Type: f.Type(), Payload: f.Payload()})
}

func (s *jsonLinesSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return gateway.ErrSinkClosed
	}
	s.closed = true
	return nil
}
