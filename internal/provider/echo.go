package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EchoName is the provider name of the local echo adapter.
const EchoName = "echo"

// EchoProvider answers with the prompt itself. It exists for local runs and smoke tests.
type EchoProvider struct {
	counter TokenCounter
	now     func() time.Time
}

func NewEchoProvider(counter TokenCounter) *EchoProvider {
	return &EchoProvider{counter: counter, now: time.Now}
}

func (p *EchoProvider) Name() string { return EchoName }

func (p *EchoProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}
	start := p.now()
	res := &Result{
		ResponseText:      req.Prompt,
		ProviderRequestID: "echo-" + uuid.NewString(),
	}
	estimate(p.counter, req.Model, req.Prompt, res)
	res.LatencyMs = int(p.now().Sub(start).Milliseconds())
	return res, nil
}
