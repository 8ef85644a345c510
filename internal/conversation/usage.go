// ABOUTME: Token usage reported by the provider at the end of a turn.

package conversation

// TokenUsage counts the tokens consumed by one provider request.
type TokenUsage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}
