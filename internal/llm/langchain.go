// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/pdiddy/priorart-engine/pkg/types"
)

// LangChainClient talks to any OpenAI-compatible endpoint through langchaingo
// in JSON mode. The schema travels in the system prompt and the reply is
// cleaned with ExtractJSON before decoding, for servers without structured
// output support.
type LangChainClient struct {
	model     llms.Model
	fast      llms.Model
	name      string
	maxTokens int
}

// NewLangChain builds a client from cfg. Local servers accept any token, so
// an empty API key becomes "none".
func NewLangChain(cfg types.AIConfig) (*LangChainClient, error) {
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	name := cfg.Model
	if name == "" {
		name = defaultModel
	}

	build := func(model string) (llms.Model, error) {
		opts := []lcopenai.Option{
			lcopenai.WithToken(token),
			lcopenai.WithModel(model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
		}
		return lcopenai.New(opts...)
	}

	primary, err := build(name)
	if err != nil {
		return nil, fmt.Errorf("creating langchain model: %w", err)
	}
	fast := llms.Model(primary)
	if cfg.FastModel != "" && cfg.FastModel != name {
		if fast, err = build(cfg.FastModel); err != nil {
			return nil, fmt.Errorf("creating langchain fast model: %w", err)
		}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &LangChainClient{model: primary, fast: fast, name: name, maxTokens: maxTokens}, nil
}

// Model returns the reasoning model name.
func (c *LangChainClient) Model() string { return c.name }

// Chat sends req in JSON mode and decodes the cleaned reply into result.
func (c *LangChainClient) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	model := c.model
	if req.Fast {
		model = c.fast
	}

	system := req.SystemPrompt
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema: %w", err)
		}
		system += "\n\nRespond with a single JSON object matching this JSON schema:\n" + string(schema)
	}

	content := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(req.UserPrompt)}},
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	opts := []llms.CallOption{llms.WithJSONMode(), llms.WithMaxTokens(maxTokens)}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Temperature))
	}

	resp, err := model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	raw := ExtractJSON(choice.Content)
	if raw == "" {
		slog.DebugContext(ctx, "llm reply had no JSON object",
			"component", "llm", "schema", req.SchemaName, "reply", choice.Content)
		return nil, fmt.Errorf("%w: %s: no JSON object in reply", ErrInvalidOutput, req.SchemaName)
	}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOutput, req.SchemaName, err)
	}

	return &Response{
		PromptTokens:     intInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

func intInfo(info map[string]any, key string) int {
	if v, ok := info[key].(int); ok {
		return v
	}
	return 0
}

// New returns the client selected by cfg.Provider.
func New(cfg types.AIConfig) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		c, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "langchain":
		c, err := NewLangChain(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
