package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/docchat/internal/core"
)

// GeminiConfig is the process-wide model configuration.
type GeminiConfig struct {
	APIKey       string
	ModelName    string
	SystemPrompt string
	Temperature  float64 // negative keeps the model default
	Timeout      time.Duration
}

// GeminiLLM holds one client and one configured model shared by every conversation.
type GeminiLLM struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGeminiLLM builds the shared client. Extra options are applied after the API key.
func NewGeminiLLM(ctx context.Context, cfg GeminiConfig, opts ...option.ClientOption) (*GeminiLLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}

	m := cl.GenerativeModel(cfg.ModelName)
	if cfg.SystemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(cfg.SystemPrompt)},
		}
	}
	if cfg.Temperature >= 0 {
		m.SetTemperature(float32(cfg.Temperature))
	}

	return &GeminiLLM{client: cl, model: m, timeout: cfg.Timeout}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// StartConversation opens a chat with empty history.
func (g *GeminiLLM) StartConversation(_ context.Context) (core.Conversation, error) {
	return &geminiConversation{chat: g.model.StartChat(), timeout: g.timeout}, nil
}

var _ core.ConversationBackend = (*GeminiLLM)(nil)

type geminiConversation struct {
	chat    *genai.ChatSession
	timeout time.Duration
}

// Send forwards prompt with the full history. Failed exchanges are rolled back so the
// next attempt starts from the last good turn.
func (c *geminiConversation) Send(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	mark := len(c.chat.History)
	resp, err := c.chat.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		restoreHistory(c.chat, mark)
		return "", core.NewBackendError(err)
	}

	text, ok := responseText(resp)
	if !ok {
		restoreHistory(c.chat, mark)
		return "", core.NewBackendError(core.ErrEmptyResponse)
	}
	return text, nil
}

func (c *geminiConversation) Turns() int {
	return len(c.chat.History)
}

// restoreHistory truncates the chat back to n entries.
func restoreHistory(cs *genai.ChatSession, n int) {
	if n < len(cs.History) {
		clear(cs.History[n:])
		cs.History = cs.History[:n]
	}
}

// responseText joins the text parts of the first candidate. ok is false when the model
// returned no usable candidate or no text.
func responseText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}
