// Package ai talks to an OpenAI-compatible chat completion endpoint.
package ai

import (
	"context"
	"errors"
	"fmt"

	"dsa_tracker/internal/common"

	"github.com/sashabaranov/go-openai"
)

// TextGenerator produces a completion for a system and user prompt.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient targets baseURL when set, otherwise the OpenAI API.
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("AI_API_KEY is not set")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (o *OpenAIClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
			return "", fmt.Errorf("AI request rejected: %s: %w", apiErr.Message, common.ErrBadRequest)
		}
		return "", fmt.Errorf("AI API call failed: %v: %w", err, common.ErrServiceUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices: %w", common.ErrServiceUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
