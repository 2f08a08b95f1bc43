package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/logger"
	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/provider"
)

const (
	spanName       = "execution.run"
	spanKind       = "llm.generation"
	tracerName     = "github.com/promptledger/PromptLedger/internal/service"
	spanStatusOK   = "ok"
	spanStatusFail = "error"
)

// DefaultRetryDelays are the waits between provider attempts: three attempts in total.
var DefaultRetryDelays = []time.Duration{5 * time.Second, 30 * time.Second, 2 * time.Minute}

// ProcessResult tells the queue consumer what happened to a delivery.
type ProcessResult string

const (
	ProcessProcessed ProcessResult = "processed"
	ProcessSkipped   ProcessResult = "skipped"
)

// ProviderResolver finds the adapter for a model's provider.
type ProviderResolver interface {
	Get(name string) (provider.Provider, error)
}

// DispatcherConfig tunes the retry loop.
type DispatcherConfig struct {
	// RetryDelays are waited between attempts; attempts = len(RetryDelays)+1.
	RetryDelays []time.Duration
	// AttemptTimeout bounds one provider call. Zero leaves it to the adapter.
	AttemptTimeout time.Duration
}

// Dispatcher drives a queued execution to a terminal status: running, provider call with
// retries, then complete or fail. The sync API path and the queue workers share it.
type Dispatcher struct {
	db             interfaces.DBTX
	executions     interfaces.ExecutionRepository
	modelRepo      interfaces.ModelRepository
	spans          interfaces.SpanRepository
	lifecycle      *LifecycleManager
	providers      ProviderResolver
	tracer         trace.Tracer
	delays         []time.Duration
	attemptTimeout time.Duration
	timer          retry.Timer
	logger         *zap.Logger
	now            func() time.Time
}

func NewDispatcher(
	db interfaces.DBTX,
	executions interfaces.ExecutionRepository,
	modelRepo interfaces.ModelRepository,
	spans interfaces.SpanRepository,
	lifecycle *LifecycleManager,
	providers ProviderResolver,
	cfg DispatcherConfig,
	log *zap.Logger,
) *Dispatcher {
	delays := cfg.RetryDelays
	if delays == nil {
		delays = DefaultRetryDelays
	}
	return &Dispatcher{
		db:             db,
		executions:     executions,
		modelRepo:      modelRepo,
		spans:          spans,
		lifecycle:      lifecycle,
		providers:      providers,
		tracer:         otel.Tracer(tracerName),
		delays:         delays,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         log.Named("Dispatcher"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithTimer replaces the timer used for retry waits.
func (d *Dispatcher) WithTimer(t retry.Timer) *Dispatcher {
	d.timer = t
	return d
}

// Process is the worker entry point. Only the id travels on the queue; everything else is
// reloaded. Executions that are no longer queued were handled by an earlier delivery and are skipped.
func (d *Dispatcher) Process(ctx context.Context, executionID uuid.UUID) (ProcessResult, error) {
	exec, err := d.executions.GetByID(ctx, d.db, executionID)
	if err != nil {
		return "", fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}
	if exec.Status != models.StatusQueued {
		d.logger.Info("Delivery skipped, execution is not queued", logger.ExecutionFields(exec.ID, exec.Status)...)
		return ProcessSkipped, nil
	}
	if _, err := d.Run(ctx, exec); err != nil {
		return "", err
	}
	return ProcessProcessed, nil
}

// Run moves exec from queued to a terminal status and returns the stored result. Provider
// failures end up on the row; only storage failures are returned as errors.
func (d *Dispatcher) Run(ctx context.Context, exec *models.Execution) (*models.Execution, error) {
	log := d.logger.With(zap.String("executionID", exec.ID.String()))
	parent := trace.SpanContextFromContext(ctx)
	started := d.now()
	ctx, span := d.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("execution.id", exec.ID.String()),
			attribute.String("execution.mode", string(exec.ExecutionMode)),
			attribute.String("prompt.id", exec.PromptID.String()),
			attribute.String("prompt.version_id", exec.VersionID.String()),
		))
	defer span.End()

	running, err := d.lifecycle.MarkRunning(ctx, exec.ID)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			log.Warn("Execution left queued before dispatch, nothing to run")
			return d.executions.GetByID(ctx, d.db, exec.ID)
		}
		span.RecordError(err)
		return nil, err
	}

	// Terminal writes must land even if the caller went away mid-call.
	termCtx := context.WithoutCancel(ctx)

	model, err := d.modelRepo.GetByID(ctx, d.db, running.ModelID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return d.finish(termCtx, span, log, running, nil, 0, started, parent,
			provider.NewError(provider.KindClientError, fmt.Errorf("model %s no longer exists", running.ModelID)), nil)
	}
	span.SetAttributes(attribute.String("llm.provider", model.Provider), attribute.String("llm.model", model.ModelName))

	adapter, err := d.providers.Get(model.Provider)
	if err != nil {
		return d.finish(termCtx, span, log, running, model, 0, started, parent,
			provider.NewError(provider.KindClientError, err), nil)
	}

	res, attempts, callErr := d.generate(ctx, adapter, provider.Request{
		Prompt: running.RenderedPrompt,
		Model:  model.ModelName,
		Params: running.GenerationParams,
	}, log)
	span.SetAttributes(attribute.Int("execution.attempts", attempts))
	return d.finish(termCtx, span, log, running, model, attempts, started, parent, callErr, res)
}

// generate calls the adapter under the retry policy. Only timeout, rate-limit and server
// errors are retried.
func (d *Dispatcher) generate(ctx context.Context, adapter provider.Provider, req provider.Request, log *zap.Logger) (*provider.Result, int, error) {
	attempts := 0
	waits := 0
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(len(d.delays) + 1)),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			delay := d.delays[min(waits, len(d.delays)-1)]
			waits++
			return delay
		}),
		retry.RetryIf(provider.IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("Provider attempt failed",
				zap.Uint("attempt", n+1),
				zap.String("kind", string(provider.Classify(err).Kind)),
				zap.Error(err))
		}),
	}
	if d.timer != nil {
		opts = append(opts, retry.WithTimer(d.timer))
	}

	res, err := retry.DoWithData(func() (*provider.Result, error) {
		attempts++
		callCtx, cancel := d.attemptContext(ctx)
		defer cancel()
		r, err := adapter.Generate(callCtx, req)
		if err != nil {
			return nil, provider.Classify(err)
		}
		return r, nil
	}, opts...)
	return res, attempts, err
}

func (d *Dispatcher) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.attemptTimeout > 0 {
		return context.WithTimeout(ctx, d.attemptTimeout)
	}
	return context.WithCancel(ctx)
}

// finish records the terminal status. A rejected transition means someone else (a cancel or a
// duplicate delivery) already ended the execution; the late result is dropped.
func (d *Dispatcher) finish(
	ctx context.Context,
	span trace.Span,
	log *zap.Logger,
	exec *models.Execution,
	model *models.Model,
	attempts int,
	started time.Time,
	parent trace.SpanContext,
	callErr error,
	res *provider.Result,
) (*models.Execution, error) {
	var final *models.Execution
	var err error
	if callErr != nil {
		classified := provider.Classify(callErr)
		span.RecordError(callErr)
		span.SetStatus(codes.Error, string(classified.Kind))
		log.Warn("Execution failed",
			zap.String("kind", string(classified.Kind)),
			zap.Int("attempts", attempts),
			zap.Error(callErr))
		final, err = d.lifecycle.Fail(ctx, exec.ID, string(classified.Kind), callErr.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		final, err = d.lifecycle.Complete(ctx, exec.ID, Outcome{
			ResponseText:      res.ResponseText,
			PromptTokens:      res.PromptTokens,
			ResponseTokens:    res.ResponseTokens,
			LatencyMs:         res.LatencyMs,
			ProviderRequestID: res.ProviderRequestID,
		})
	}
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			log.Warn("Late provider result discarded")
			return d.executions.GetByID(ctx, d.db, exec.ID)
		}
		return nil, err
	}

	log.Info("Execution finished",
		zap.String("status", string(final.Status)),
		zap.Int("attempts", attempts))
	d.persistSpan(ctx, log, span, parent, final, model, attempts, started)
	return final, nil
}

// persistSpan stores the dispatch span next to the execution. Failures are logged only.
func (d *Dispatcher) persistSpan(
	ctx context.Context,
	log *zap.Logger,
	span trace.Span,
	parent trace.SpanContext,
	exec *models.Execution,
	model *models.Model,
	attempts int,
	started time.Time,
) {
	sc := span.SpanContext()
	ended := d.now()
	row := &models.Span{
		ID:             uuid.New(),
		TraceID:        sc.TraceID().String(),
		SpanID:         sc.SpanID().String(),
		ExecutionID:    exec.ID,
		Name:           spanName,
		Kind:           spanKind,
		StartTime:      started,
		EndTime:        ended,
		DurationMs:     int(ended.Sub(started).Milliseconds()),
		Status:         spanStatusOK,
		PromptTokens:   exec.PromptTokens,
		ResponseTokens: exec.ResponseTokens,
		Data: map[string]any{
			"attempts":   attempts,
			"prompt_id":  exec.PromptID.String(),
			"version_id": exec.VersionID.String(),
			"mode":       string(exec.ExecutionMode),
		},
	}
	if parent.IsValid() {
		parentID := parent.SpanID().String()
		row.ParentSpanID = &parentID
	}
	if exec.Status != models.StatusSucceeded {
		row.Status = spanStatusFail
	}
	if exec.ErrorType != nil {
		row.Data["error_type"] = *exec.ErrorType
	}
	if model != nil {
		name := model.ModelName
		row.Model = &name
		row.Data["provider"] = model.Provider
	}

	if err := d.spans.Upsert(ctx, d.db, row); err != nil {
		log.Warn("Failed to persist execution span", zap.Error(err))
	}
}
