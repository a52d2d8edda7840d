package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"
)

// Default model names per provider.
const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultTemperature = 0.7
)

// LangChainCompleter calls an OpenAI-compatible chat model in JSON mode.
type LangChainCompleter struct {
	llm         llms.Model
	temperature float64
}

// NewLangChainCompleter wraps an existing langchaingo model.
func NewLangChainCompleter(model llms.Model, temperature float64) *LangChainCompleter {
	return &LangChainCompleter{llm: model, temperature: temperature}
}

// NewOpenAICompleter builds an OpenAI chat model.
func NewOpenAICompleter(apiKey, model string, temperature float64) (*LangChainCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewLangChainCompleter(llm, temperature), nil
}

// Complete implements Completer.
func (c *LangChainCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}
	return resp.Choices[0].Content, nil
}

// GenAICompleter calls a Gemini model with a JSON response type.
type GenAICompleter struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGenAICompleter creates a Gemini client. opts may override the HTTP
// endpoint.
func NewGenAICompleter(ctx context.Context, apiKey, model string, temperature float64, opts ...func(*genai.ClientConfig)) (*GenAICompleter, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAICompleter{client: client, model: model, temperature: float32(temperature)}, nil
}

// Complete implements Completer.
func (c *GenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(user, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr(c.temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("no response text")
	}
	return text, nil
}
