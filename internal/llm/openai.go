package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Settings configures an OpenAI-compatible backend.
type Settings struct {
	Provider string // openai or openrouter
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// OpenAI implements Backend with the official openai-go SDK (chat
// completions). OpenRouter is reached through the same API.
type OpenAI struct {
	model  string
	client openai.Client
}

func NewOpenAI(s Settings) (*OpenAI, error) {
	if s.APIKey == "" {
		return nil, errors.New("llm: api key missing")
	}
	if s.Model == "" {
		return nil, errors.New("llm: model is required")
	}
	baseURL := s.BaseURL
	if baseURL == "" && s.Provider == "openrouter" {
		baseURL = openRouterBaseURL
	}
	// Retries are handled by Retrying so the budget is visible in metrics.
	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if s.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(s.Timeout))
	}
	return &OpenAI{model: s.Model, client: openai.NewClient(opts...)}, nil
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if code, ok := statusCode(err); ok && code == 429 {
			return Response{}, fmt.Errorf("%s: %w: %v", req.Purpose, ErrRateLimited, err)
		}
		return Response{}, fmt.Errorf("%s: %w", req.Purpose, err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%s: %w: no choices", req.Purpose, ErrMalformed)
	}
	choice := resp.Choices[0]
	return Response{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// statusCode extracts the HTTP status from an SDK error.
func statusCode(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
