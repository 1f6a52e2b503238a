package core

import "context"

// Conversation is one chat with the generative backend. It keeps its own turn history
// and is not safe for concurrent use.
type Conversation interface {
	// Send appends prompt as a user turn and returns the model reply. On error the
	// attempted turn is not kept.
	Send(ctx context.Context, prompt string) (string, error)
	// Turns is the number of stored history entries (user and model).
	Turns() int
}

type ConversationBackend interface {
	StartConversation(ctx context.Context) (Conversation, error)
}
