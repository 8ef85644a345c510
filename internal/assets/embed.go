// ABOUTME: Embedded assets shipped inside the binary.
// ABOUTME: Holds the default persona used when no persona is configured.

package assets

import (
	"bytes"
	_ "embed"
)

//go:embed persona.toml
var personaTOML []byte

// DefaultPersona returns the embedded persona TOML.
func DefaultPersona() []byte {
	return bytes.Clone(personaTOML)
}
