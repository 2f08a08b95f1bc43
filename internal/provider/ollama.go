package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// OllamaName is the provider name stored in the models table.
const OllamaName = "ollama"

// OllamaProvider calls a local or remote Ollama server through its native chat API.
type OllamaProvider struct {
	client  *api.Client
	counter TokenCounter
	logger  *zap.Logger
}

func NewOllamaProvider(baseURL string, timeout time.Duration, counter TokenCounter, logger *zap.Logger) (*OllamaProvider, error) {
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ollama url %q: %w", baseURL, err)
	}
	log := logger.Named("OllamaProvider")
	log.Info("Ollama client created", zap.String("baseURL", baseURL), zap.Duration("timeout", timeout))
	return &OllamaProvider{
		client:  api.NewClient(parsed, &http.Client{Timeout: timeout}),
		counter: counter,
		logger:  log,
	}, nil
}

func (p *OllamaProvider) Name() string { return OllamaName }

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: []api.Message{{Role: "user", Content: req.Prompt}},
		Stream:   &stream,
		Options:  ollamaOptions(req),
	}

	start := time.Now()
	var resp api.ChatResponse
	err := p.client.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	latency := time.Since(start)
	if err != nil {
		classified := classifyOllamaError(err)
		p.logger.Warn("Ollama request failed",
			zap.String("model", req.Model),
			zap.String("kind", string(classified.Kind)),
			zap.Duration("latency", latency),
			zap.Error(err))
		return nil, classified
	}

	res := &Result{
		ResponseText: resp.Message.Content,
		LatencyMs:    int(latency.Milliseconds()),
	}
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		res.PromptTokens = intPtr(resp.PromptEvalCount)
		res.ResponseTokens = intPtr(resp.EvalCount)
	}
	estimate(p.counter, req.Model, req.Prompt, res)
	return res, nil
}

func ollamaOptions(req Request) map[string]any {
	opts := map[string]any{}
	if req.Params.Temperature != nil {
		opts["temperature"] = *req.Params.Temperature
	}
	if req.Params.TopK != nil {
		opts["top_k"] = *req.Params.TopK
	}
	if req.Params.TopP != nil {
		opts["top_p"] = *req.Params.TopP
	}
	if req.Params.RepetitionPenalty != nil {
		opts["repeat_penalty"] = *req.Params.RepetitionPenalty
	}
	if req.Params.MaxNewTokens != nil {
		opts["num_predict"] = *req.Params.MaxNewTokens
	}
	return opts
}

func classifyOllamaError(err error) *Error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return FromStatus(statusErr.StatusCode, err)
	}
	return Classify(err)
}
