package session

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/markdave123-py/docchat/internal/core"
)

// Session binds one upload's extracted text to one ongoing conversation.
// Text and DocumentName never change after creation.
type Session struct {
	ID           string
	Text         string
	DocumentName string
	CreatedAt    time.Time

	turn         *semaphore.Weighted
	conversation core.Conversation
	lastUsed     atomic.Int64
}

func newSession(id, text, documentName string, now time.Time, conversation core.Conversation) *Session {
	s := &Session{
		ID:           id,
		Text:         text,
		DocumentName: documentName,
		CreatedAt:    now,
		turn:         semaphore.NewWeighted(1),
		conversation: conversation,
	}
	s.touch(now)
	return s
}

// Converse sends prompt through the session's conversation. Calls on the same session
// are serialized so history is appended one exchange at a time. A caller still waiting
// for its turn when ctx ends gets a BackendError and never reaches the backend.
func (s *Session) Converse(ctx context.Context, prompt string) (string, error) {
	if err := s.turn.Acquire(ctx, 1); err != nil {
		return "", core.NewBackendError(err)
	}
	defer s.turn.Release(1)
	return s.conversation.Send(ctx, prompt)
}

// Turns reports the conversation's history length, waiting for any exchange in flight.
func (s *Session) Turns() int {
	_ = s.turn.Acquire(context.Background(), 1)
	defer s.turn.Release(1)
	return s.conversation.Turns()
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// LastUsed is the time of creation or of the latest successful lookup.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}
