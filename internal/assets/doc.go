// Package assets embeds files shipped inside the binary via go:embed.
package assets
