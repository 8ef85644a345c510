// Package config handles configuration loading for socrates-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Missing values fall back to defaults suitable for local development, then
// the result is validated.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path given with --config
//  2. Path from SOCRATES_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/socrates/config.yaml (optional)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	provider:
//	  kind: openai
//	  api_key: "${OPENAI_API_KEY}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	turns:
//	  save_timeout: "5s"
//
// # Persona
//
// The system prompt lives in a TOML asset referenced by persona.path:
//
//	text = """
//	Eres Sócrates...
//	"""
//	model = "gpt-4.1"
//
// Inline persona.text is accepted instead of a file.
package config
