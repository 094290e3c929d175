// Package assistant defines the port to the remote language-model endpoint
// that answers assistant prompts.
package assistant

import "context"

// Request is the body sent to the remote assistant.
type Request struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context"`
}

// Response is the body returned by the remote assistant.
type Response struct {
	Response string `json:"response"`
}

// Remote answers a prompt grounded with a task context string.
type Remote interface {
	Ask(ctx context.Context, req Request) (string, error)
}
