package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	lcschema "github.com/tmc/langchaingo/schema"

	"github.com/celeste-app/celeste/backend/internal/config"
	"github.com/celeste-app/celeste/backend/internal/model/chat"
)

// ErrEmptyReply is returned when the backend answers with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Completer produces the next assistant utterance for an ordered context.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn) (string, error)
}

// NewCompleter builds the completer selected by cfg.Provider.
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%s provider is not configured", cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewEinoCompleter(chatModel), nil
	case config.ProviderOpenAI:
		return NewOpenAICompleter(cfg)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// generator is the part of an eino chat model the completer needs.
type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// EinoCompleter runs completions through an eino chat model.
type EinoCompleter struct {
	model generator
}

func NewEinoCompleter(m generator) *EinoCompleter {
	return &EinoCompleter{model: m}
}

func (c *EinoCompleter) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	input := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleSystem:
			input = append(input, schema.SystemMessage(turn.Content))
		case chat.RoleUser:
			input = append(input, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			input = append(input, schema.AssistantMessage(turn.Content, nil))
		}
	}

	resp, err := c.model.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run chat model: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptyReply
	}
	return resp.Content, nil
}

// contentGenerator is the part of a langchaingo model the completer needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangChainCompleter runs completions through a langchaingo model.
type LangChainCompleter struct {
	llm  contentGenerator
	opts []llms.CallOption
}

func NewLangChainCompleter(llm contentGenerator, opts ...llms.CallOption) *LangChainCompleter {
	return &LangChainCompleter{llm: llm, opts: opts}
}

// NewOpenAICompleter talks to the OpenAI chat completions API.
func NewOpenAICompleter(cfg config.AIConfig) (*LangChainCompleter, error) {
	clientOpts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	var callOpts []llms.CallOption
	if cfg.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(*cfg.Temperature))
	}
	if cfg.TopP != nil {
		callOpts = append(callOpts, llms.WithTopP(*cfg.TopP))
	}
	if cfg.MaxTokens != nil {
		callOpts = append(callOpts, llms.WithMaxTokens(*cfg.MaxTokens))
	}

	return NewLangChainCompleter(llm, callOpts...), nil
}

func (c *LangChainCompleter) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	messages := make([]llms.MessageContent, 0, len(turns))
	for _, turn := range turns {
		var kind lcschema.ChatMessageType
		switch turn.Role {
		case chat.RoleSystem:
			kind = lcschema.ChatMessageTypeSystem
		case chat.RoleUser:
			kind = lcschema.ChatMessageTypeHuman
		case chat.RoleAssistant:
			kind = lcschema.ChatMessageTypeAI
		default:
			continue
		}
		messages = append(messages, llms.TextParts(kind, turn.Content))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, c.opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Content, nil
}
