// Package llm abstracts the language model behind the intent decoder.
package llm

import (
	"context"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Options struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is the raw model output. The intent decoder turns Content into
// a typed response; the decoder never fails, so no structure is promised
// here.
type Completion struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Client interface {
	Complete(ctx context.Context, messages []Message, options *Options) (*Completion, error)
}
