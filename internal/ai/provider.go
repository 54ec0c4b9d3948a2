package ai

import "context"

type Message struct {
	Role    string
	Content string
}

// Provider generates a completion from an ordered conversation. The roles in
// messages follow the transcript sender tags ("user" / "ai"); providers map
// them to their own wire format.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
