package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIName is the provider name stored in the models table.
const OpenAIName = "openai"

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAIProvider calls the chat completions API.
type OpenAIProvider struct {
	client *openaigo.Client
	logger *zap.Logger
}

func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is empty")
	}
	clientCfg := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	log := logger.Named("OpenAIProvider")
	log.Info("OpenAI client created", zap.String("baseURL", clientCfg.BaseURL), zap.Duration("timeout", cfg.Timeout))
	return &OpenAIProvider{client: openaigo.NewClientWithConfig(clientCfg), logger: log}, nil
}

func (p *OpenAIProvider) Name() string { return OpenAIName }

func newChatRequest(req Request) openaigo.ChatCompletionRequest {
	chatReq := openaigo.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openaigo.ChatCompletionMessage{
			{Role: openaigo.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.Params.Temperature != nil {
		chatReq.Temperature = nonZeroFloat32(*req.Params.Temperature)
	}
	if req.Params.TopP != nil {
		chatReq.TopP = nonZeroFloat32(*req.Params.TopP)
	}
	if req.Params.MaxNewTokens != nil {
		chatReq.MaxTokens = *req.Params.MaxNewTokens
	}
	if req.Params.RepetitionPenalty != nil {
		// Closest OpenAI knob; 1.0 means "no penalty" on the repetition scale.
		chatReq.FrequencyPenalty = float32(*req.Params.RepetitionPenalty - 1.0)
	}
	return chatReq
}

// nonZeroFloat32 keeps an explicit zero on the wire; the client omits zero-valued sampling fields.
func nonZeroFloat32(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	chatReq := newChatRequest(req)

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	latency := time.Since(start)
	if err != nil {
		classified := classifyOpenAIError(err)
		p.logger.Warn("OpenAI request failed",
			zap.String("model", req.Model),
			zap.String("kind", string(classified.Kind)),
			zap.Int("status", classified.StatusCode),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, classified
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(KindServerError, errors.New("openai returned no choices"))
	}

	res := &Result{
		ResponseText:      resp.Choices[0].Message.Content,
		LatencyMs:         int(latency.Milliseconds()),
		ProviderRequestID: resp.ID,
	}
	if resp.Usage.TotalTokens > 0 {
		res.PromptTokens = intPtr(resp.Usage.PromptTokens)
		res.ResponseTokens = intPtr(resp.Usage.CompletionTokens)
	}
	p.logger.Debug("OpenAI response received",
		zap.String("model", req.Model),
		zap.String("requestID", resp.ID),
		zap.Int("responseBytes", len(res.ResponseText)),
		zap.Duration("latency", latency))
	return res, nil
}

func classifyOpenAIError(err error) *Error {
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return FromStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openaigo.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return FromStatus(reqErr.HTTPStatusCode, err)
	}
	if c := Classify(err); c.Kind != KindClientError {
		return c
	}
	return NewError(KindClientError, fmt.Errorf("openai: %w", err))
}
