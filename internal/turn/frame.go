// ABOUTME: Frame is the closed set of events written to a client sink during a turn.
// ABOUTME: Each frame has a wire type name and a JSON-serializable payload.

package turn

import "github.com/2389/socrates-gateway/internal/conversation"

// FrameType is the wire name of a frame.
type FrameType string

const (
	FrameText       FrameType = "text"
	FrameToolCall   FrameType = "tool_call"
	FrameToolResult FrameType = "tool_result"
	FrameFinish     FrameType = "finish"
	FrameError      FrameType = "error"
)

// Frame is one event written to a Sink.
type Frame interface {
	Type() FrameType
	Payload() any
	isFrame()
}

// TextFrame relays a text fragment as-is.
type TextFrame struct {
	Text string
}

// ToolCallPayload is the payload of a tool_call frame.
type ToolCallPayload struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
}

// ToolCallFrame announces a tool call requested by the model.
type ToolCallFrame struct {
	ToolCallPayload
}

// ToolResultPayload is the payload of a tool_result frame. Result holds
// either the tool's output or a ToolErrorResult.
type ToolResultPayload struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args"`
	Result     any            `json:"result"`
}

// ToolResultFrame reports the outcome of one tool call.
type ToolResultFrame struct {
	ToolResultPayload
}

// FinishPayload is the payload of a finish frame.
type FinishPayload struct {
	FinishReason string                  `json:"finishReason"`
	Usage        conversation.TokenUsage `json:"usage"`
	IsContinued  bool                    `json:"isContinued"`
}

// FinishFrame is the last frame of a successful turn.
type FinishFrame struct {
	FinishPayload
}

// ErrorPayload is the payload of an error frame.
type ErrorPayload struct {
	Error string `json:"error"`
}

// ErrorFrame reports a fatal turn failure.
type ErrorFrame struct {
	ErrorPayload
}

// ToolErrorResult is the result recorded for a failed tool call.
type ToolErrorResult struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func (TextFrame) Type() FrameType       { return FrameText }
func (ToolCallFrame) Type() FrameType   { return FrameToolCall }
func (ToolResultFrame) Type() FrameType { return FrameToolResult }
func (FinishFrame) Type() FrameType     { return FrameFinish }
func (ErrorFrame) Type() FrameType      { return FrameError }

func (f TextFrame) Payload() any       { return f.Text }
func (f ToolCallFrame) Payload() any   { return f.ToolCallPayload }
func (f ToolResultFrame) Payload() any { return f.ToolResultPayload }
func (f FinishFrame) Payload() any     { return f.FinishPayload }
func (f ErrorFrame) Payload() any      { return f.ErrorPayload }

func (TextFrame) isFrame()       {}
func (ToolCallFrame) isFrame()   {}
func (ToolResultFrame) isFrame() {}
func (FinishFrame) isFrame()     {}
func (ErrorFrame) isFrame()      {}
