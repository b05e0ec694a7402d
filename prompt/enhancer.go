// Package prompt optionally rewrites user prompts with an LLM before
// generation. Disabled by default; the handler path never depends on
// it succeeding.
package prompt

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"zimage_worker/logging"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = "You rewrite short image prompts into detailed, " +
	"vivid prompts for a text-to-image diffusion model. Keep the " +
	"subject and intent of the original prompt. Reply with the " +
	"rewritten prompt only, no commentary."

// Enhancer rewrites prompts via a chat completion API.
type Enhancer struct {
	client *openai.Client
	model  string
	log    *logging.Logger
}

// Config holds enhancer construction parameters.
type Config struct {
	APIKey  string
	BaseURL string // optional override, for proxies and tests
	Model   string // defaults to DefaultModel
}

// NewEnhancer creates an enhancer. APIKey is required.
func NewEnhancer(cfg Config, log *logging.Logger) (*Enhancer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("prompt: API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Enhancer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		log:    log,
	}, nil
}

// Enhance rewrites the prompt. On any failure the original prompt is
// returned so generation can proceed unenhanced.
func (e *Enhancer) Enhance(ctx context.Context, original string) string {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: original},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	})
	if err != nil {
		e.log.Warnw("prompt enhancement failed, using original",
			"error", err.Error(),
		)
		return original
	}

	if len(resp.Choices) == 0 {
		return original
	}

	enhanced := strings.TrimSpace(resp.Choices[0].Message.Content)
	if enhanced == "" {
		return original
	}

	e.log.Debugw("prompt enhanced",
		"original", original,
		"enhanced", enhanced,
	)

	return enhanced
}
