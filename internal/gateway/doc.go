// Package gateway serves Socratic conversations over HTTP.
//
// # Components
//
// New wires the configured store (SQLite or in-memory), the builtin tool
// packs (notes and clock), the language-model provider (OpenAI or scripted)
// and a turn.Coordinator. A turnlock.Guard ensures one active turn per
// conversation.
//
// # HTTP API
//
//	GET  /health                              liveness
//	POST /api/conversations                   create, 201 {"id": ...}
//	GET  /api/conversations                   list summaries
//	GET  /api/conversations/{id}              full record
//	POST /api/conversations/{id}/messages     append user message, stream turn
//	POST /api/conversations/{id}/turns        stream a turn over stored history
//	GET  /api/conversations/{id}/usage        token usage totals
//	GET  /api/conversations/{id}/notes        notes written by the notes tools
//
// Turn streams are Server-Sent Events: one "event: <frame type>" with the
// frame's JSON payload as data. Errors before the stream starts are JSON
// bodies of the form {"error": "..."}: 400 for empty content, 404 for an
// unknown conversation and 409 when a turn is already running.
//
// When auth.jwt_secret is set every /api route requires a bearer token.
// server.allowed_origins enables CORS for browser clients.
package gateway
