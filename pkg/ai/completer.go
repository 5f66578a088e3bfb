package ai

import "context"

// Message is one turn sent to the completion service. Images are attached
// only to the newest user turn.
type Message struct {
	Role    string
	Content string
	Images  []Image
}

// Image is an inline attachment forwarded to the completion service.
type Image struct {
	MediaType string
	Data      []byte
}

// Request describes one completion call.
type Request struct {
	Model     string
	MaxTokens int
	System    string
	Messages  []Message
}

// Completer is the completion-service boundary. Streaming delivers text
// deltas in arrival order through onDelta; a non-nil error from onDelta
// aborts the stream. Both methods honour ctx cancellation, so a disconnected
// consumer stops upstream generation.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	StreamComplete(ctx context.Context, req Request, onDelta func(delta string) error) (string, error)
}
