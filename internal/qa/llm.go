package qa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lanternhq/lantern/internal/model"
	"github.com/lanternhq/lantern/internal/trace"
)

const llmMaxTokens = 500

// LLM generates completions for the ask and chat endpoints.
type LLM interface {
	Model() string
	Complete(ctx context.Context, parent *trace.Span, question string, contextDocs []string, temperature float64) (Completion, error)
	Chat(ctx context.Context, parent *trace.Span, req model.ChatRequest) (model.ChatResponse, error)
}

// Completion is one LLM answer with its mock token accounting.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// MockLLM fakes a chat-completion provider: deterministic text, token
// counts derived from whitespace splitting, and an optional simulated
// latency scaled by prompt size so traces look like real LLM calls.
type MockLLM struct {
	recorder *trace.Recorder
	model    string
	latency  time.Duration // base delay per call; zero disables simulation
}

// NewMockLLM creates a mock LLM client.
func NewMockLLM(recorder *trace.Recorder, modelName string, latency time.Duration) *MockLLM {
	if modelName == "" {
		modelName = "gpt-3.5-turbo"
	}
	return &MockLLM{recorder: recorder, model: modelName, latency: latency}
}

// Model returns the mock model name.
func (m *MockLLM) Model() string { return m.model }

// Complete generates an answer for a question given retrieved context,
// recording the call as an llm.completion child span.
func (m *MockLLM) Complete(ctx context.Context, parent *trace.Span, question string, contextDocs []string, temperature float64) (Completion, error) {
	span := m.recorder.Start(ctx, "llm.completion", parent)
	defer span.End()
	span.SetAttribute("llm.vendor", "mock")
	span.SetAttribute("llm.request.model", m.model)
	span.SetAttribute("llm.request.temperature", temperature)
	span.SetAttribute("llm.request.max_tokens", llmMaxTokens)

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:",
		strings.Join(contextDocs, "\n"), question)

	start := time.Now()
	if err := m.simulate(ctx, m.latency+time.Duration(len(prompt))*time.Microsecond); err != nil {
		span.SetStatusError("request canceled")
		return Completion{}, err
	}

	answer := fmt.Sprintf(
		"Based on the provided context, %s can be explained as follows: This is a comprehensive answer that draws from the relevant documents and provides accurate information.",
		strings.ReplaceAll(strings.ToLower(question), "?", ""))

	c := Completion{
		Text:             answer,
		PromptTokens:     len(strings.Fields(prompt)),
		CompletionTokens: len(strings.Fields(answer)),
		FinishReason:     "stop",
	}

	span.SetAttribute("llm.response.model", m.model)
	span.SetAttribute("llm.usage.prompt_tokens", c.PromptTokens)
	span.SetAttribute("llm.usage.completion_tokens", c.CompletionTokens)
	span.SetAttribute("llm.usage.total_tokens", c.PromptTokens+c.CompletionTokens)
	span.SetAttribute("llm.response.finish_reason", c.FinishReason)
	span.SetAttribute("llm.processing_time_ms", float64(time.Since(start).Microseconds())/1000)

	return c, nil
}

// Chat serves the OpenAI-shaped /chat endpoint, echoing the last user
// message back in a canned response.
func (m *MockLLM) Chat(ctx context.Context, parent *trace.Span, req model.ChatRequest) (model.ChatResponse, error) {
	span := m.recorder.Start(ctx, "chat_completion", parent)
	defer span.End()
	span.SetAttribute("llm.vendor", "mock")
	span.SetAttribute("llm.request.model", req.Model)
	span.SetAttribute("llm.request.temperature", req.Temperature)
	span.SetAttribute("llm.request.messages_count", len(req.Messages))

	if err := m.simulate(ctx, m.latency); err != nil {
		span.SetStatusError("request canceled")
		return model.ChatResponse{}, err
	}

	last := req.Messages[len(req.Messages)-1].Content
	snippet := last
	if len(snippet) > 50 {
		snippet = snippet[:50]
	}
	content := fmt.Sprintf("I understand your message: '%s...' Here's my response based on that.", snippet)

	promptTokens := 0
	for _, msg := range req.Messages {
		promptTokens += len(strings.Fields(msg.Content))
	}
	completionTokens := len(strings.Fields(content))

	span.SetAttribute("llm.usage.prompt_tokens", promptTokens)
	span.SetAttribute("llm.usage.completion_tokens", completionTokens)
	span.SetAttribute("llm.usage.total_tokens", promptTokens+completionTokens)

	return model.ChatResponse{
		ID:     "chatcmpl-" + uuid.NewString(),
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []model.ChatChoice{{
			Index:        0,
			Message:      model.ChatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: model.ChatUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

// simulate sleeps for the given delay, honoring cancellation.
func (m *MockLLM) simulate(ctx context.Context, delay time.Duration) error {
	if m.latency <= 0 || delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
