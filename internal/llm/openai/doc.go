// Package openai implements turn.Provider on top of the OpenAI Responses API.
//
// System, user and assistant messages become input messages; assistant tool
// invocations become function_call items and tool messages become
// function_call_output items. Text deltas, completed function calls and the
// final usage are translated into turn chunks.
package openai
