// ABOUTME: Persona asset loading for the system prompt.
// ABOUTME: Reads a TOML file with the persona text and an optional model override.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/2389/socrates-gateway/internal/assets"
)

// ErrEmptyPersona is returned when the persona has no text.
var ErrEmptyPersona = errors.New("persona text is empty")

// Persona is the system prompt asset.
type Persona struct {
	Text  string `toml:"text"`
	Model string `toml:"model"`
}

// LoadPersona reads a TOML persona file.
func LoadPersona(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persona file: %w", err)
	}

	return decodePersona(data, path)
}

// DefaultPersona returns the persona embedded in the binary.
func DefaultPersona() (*Persona, error) {
	return decodePersona(assets.DefaultPersona(), "embedded persona")
}

func decodePersona(data []byte, source string) (*Persona, error) {
	var p Persona
	if _, err := toml.Decode(expandEnvVars(string(data)), &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}

	p.Text = strings.TrimSpace(p.Text)
	if p.Text == "" {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyPersona)
	}
	return &p, nil
}

// ResolvePersona returns the configured persona: the TOML asset when a
// path is set, the inline text otherwise, else the embedded default.
func (c *Config) ResolvePersona() (*Persona, error) {
	switch {
	case c.Persona.Path != "":
		return LoadPersona(c.Persona.Path)
	case strings.TrimSpace(c.Persona.Text) != "":
		return &Persona{Text: strings.TrimSpace(c.Persona.Text)}, nil
	default:
		return DefaultPersona()
	}
}
