// Package packs provides the tool registry used during turns.
//
// # Overview
//
// Tools are grouped into packs and registered in-process:
//
//	registry := packs.NewRegistry(logger)
//	registry.RegisterBuiltinPack(builtins.NotesPack(store))
//
// Tool names are global; registering a name twice fails with
// ErrToolCollision.
//
// # Execution
//
// Execute looks up the tool, validates the arguments against the tool's JSON
// schema (github.com/google/jsonschema-go), and calls its handler with the
// conversation ID carried on the context. Unknown tools fail with
// ErrToolNotFound, bad arguments with ErrInvalidArguments.
package packs
