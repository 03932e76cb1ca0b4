package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/gzhole/groupguard/internal/config"
)

// OpenAIProvider talks to the OpenAI chat completion API or any
// OpenAI-compatible endpoint set through base_url.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAI(p config.Provider) (*OpenAIProvider, error) {
	key := p.Key()
	if key == "" && p.BaseURL == "" {
		return nil, errors.New("openai provider needs api_key, api_key_env or base_url")
	}
	cfg := openai.DefaultConfig(key)
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  p.Model,
	}, nil
}

func (o *OpenAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
