// Package scripted provides a deterministic language-model provider.
//
// Queued turns are replayed exactly; otherwise the provider echoes the last
// user message word by word, or asks for the current_time tool when the user
// asks for the time. It needs no network access.
package scripted
