//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/database"
	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/repository"
	"github.com/promptledger/PromptLedger/internal/service"
	"github.com/promptledger/PromptLedger/pkg/migration"
)

type RepositorySuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool

	prompts    interfaces.PromptRepository
	executions interfaces.ExecutionRepository
	modelRepo  interfaces.ModelRepository
	spans      interfaces.SpanRepository
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupSuite() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("prompt_ledger"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(2*time.Minute),
		),
	)
	s.Require().NoError(err)
	s.pgContainer = pgContainer

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = database.Connect(ctx, database.PoolConfig{DSN: dsn, MaxConns: 10, ConnAttempts: 5, RetryDelay: time.Second}, zap.NewNop())
	s.Require().NoError(err)

	m, err := migration.New(migration.Config{MigrationsFS: database.MigrationsFS, MigrationsPath: "migrations"}, s.pool, zerolog.Nop())
	s.Require().NoError(err)
	s.Require().NoError(m.Up())
	st, err := m.Status()
	s.Require().NoError(err)
	s.Require().True(st.Applied)
	s.Require().False(st.Dirty)
	s.Require().NoError(m.Close())

	log := zap.NewNop()
	s.prompts = repository.NewPgPromptRepository(log)
	s.executions = repository.NewPgExecutionRepository(log)
	s.modelRepo = repository.NewPgModelRepository(log)
	s.spans = repository.NewPgSpanRepository(log)
}

func (s *RepositorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		s.Require().NoError(s.pgContainer.Terminate(context.Background()))
	}
}

func (s *RepositorySuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(),
		`TRUNCATE spans, execution_inputs, executions, prompt_versions, prompts, models CASCADE`)
	s.Require().NoError(err)
}

func (s *RepositorySuite) createPrompt(name string) *models.Prompt {
	p := &models.Prompt{Name: name, Mode: models.PromptModeFull}
	s.Require().NoError(s.prompts.CreatePrompt(context.Background(), s.pool, p))
	return p
}

func (s *RepositorySuite) createVersion(p *models.Prompt, number int, text string) *models.PromptVersion {
	v := &models.PromptVersion{PromptID: p.ID, VersionNumber: number, TemplateText: text, ChecksumHash: models.Checksum(text)}
	s.Require().NoError(s.prompts.CreateVersion(context.Background(), s.pool, v))
	return v
}

func (s *RepositorySuite) createModel() *models.Model {
	m := &models.Model{Provider: "echo", ModelName: "echo-1"}
	s.Require().NoError(s.modelRepo.Upsert(context.Background(), s.pool, m))
	return m
}

func (s *RepositorySuite) createExecution(p *models.Prompt, v *models.PromptVersion, m *models.Model, key *string) *models.Execution {
	e := &models.Execution{
		PromptID: p.ID, VersionID: v.ID, ModelID: m.ID,
		ExecutionMode: models.ModeAsync, Status: models.StatusQueued,
		Environment: "test", IdempotencyKey: key, RenderedPrompt: "Hello Ada",
	}
	s.Require().NoError(s.executions.Create(context.Background(), s.pool, e,
		&models.ExecutionInput{Variables: map[string]any{"name": "Ada"}}))
	return e
}

func (s *RepositorySuite) TestPromptsAndVersions() {
	ctx := context.Background()
	p := s.createPrompt("greet")

	err := s.prompts.CreatePrompt(ctx, s.pool, &models.Prompt{Name: "greet"})
	s.ErrorIs(err, models.ErrAlreadyExists)

	v1 := s.createVersion(p, 1, "Hello {{name}}")
	v2 := s.createVersion(p, 2, "Hi {{name}}")

	dup := &models.PromptVersion{PromptID: p.ID, VersionNumber: 3, TemplateText: "Hello {{name}}", ChecksumHash: v1.ChecksumHash}
	s.ErrorIs(s.prompts.CreateVersion(ctx, s.pool, dup), models.ErrAlreadyExists)

	highest, err := s.prompts.MaxVersionNumber(ctx, s.pool, p.ID)
	s.Require().NoError(err)
	s.Equal(2, highest)

	byChecksum, err := s.prompts.GetVersionByChecksum(ctx, s.pool, p.ID, v1.ChecksumHash)
	s.Require().NoError(err)
	s.Equal(v1.ID, byChecksum.ID)

	s.Require().NoError(s.prompts.SetActiveVersion(ctx, s.pool, p.ID, v2.ID))
	reloaded, err := s.prompts.GetPromptByName(ctx, s.pool, "greet")
	s.Require().NoError(err)
	s.Require().NotNil(reloaded.ActiveVersionID)
	s.Equal(v2.ID, *reloaded.ActiveVersionID)

	versions, err := s.prompts.ListVersions(ctx, s.pool, p.ID)
	s.Require().NoError(err)
	s.Require().Len(versions, 2)
	s.Equal(2, versions[0].VersionNumber)

	_, err = s.prompts.GetPromptByName(ctx, s.pool, "missing")
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *RepositorySuite) TestExecutionsLifecycle() {
	ctx := context.Background()
	p := s.createPrompt("greet")
	v := s.createVersion(p, 1, "Hello {{name}}")
	m := s.createModel()
	key := "req-1"
	e := s.createExecution(p, v, m, &key)

	dup := &models.Execution{
		PromptID: p.ID, VersionID: v.ID, ModelID: m.ID, ExecutionMode: models.ModeAsync,
		Status: models.StatusQueued, Environment: "test", IdempotencyKey: &key, RenderedPrompt: "x",
	}
	s.ErrorIs(s.executions.Create(ctx, s.pool, dup, nil), models.ErrAlreadyExists)

	winner, err := s.executions.GetByIdempotencyKey(ctx, s.pool, p.ID, key)
	s.Require().NoError(err)
	s.Equal(e.ID, winner.ID)

	input, err := s.executions.GetInput(ctx, s.pool, e.ID)
	s.Require().NoError(err)
	s.Equal("Ada", input.Variables["name"])

	now := time.Now().UTC()
	running, err := s.executions.Transition(ctx, s.pool, e.ID, models.SourcesFor(models.StatusRunning),
		models.Transition{To: models.StatusRunning, StartedAt: &now})
	s.Require().NoError(err)
	s.Equal(models.StatusRunning, running.Status)
	s.NotNil(running.StartedAt)

	_, err = s.executions.Transition(ctx, s.pool, e.ID, models.SourcesFor(models.StatusRunning),
		models.Transition{To: models.StatusRunning, StartedAt: &now})
	var terr *models.TransitionError
	s.Require().True(errors.As(err, &terr))
	s.Equal(models.StatusRunning, terr.From)

	text, tokens := "Hi Ada", 3
	done, err := s.executions.Transition(ctx, s.pool, e.ID, models.SourcesFor(models.StatusSucceeded),
		models.Transition{To: models.StatusSucceeded, CompletedAt: &now, ResponseText: &text, ResponseTokens: &tokens})
	s.Require().NoError(err)
	s.Equal(models.StatusSucceeded, done.Status)
	s.Equal("Hi Ada", *done.ResponseText)

	_, err = s.executions.Transition(ctx, s.pool, e.ID, models.SourcesFor(models.StatusCanceled),
		models.Transition{To: models.StatusCanceled, CompletedAt: &now})
	s.ErrorIs(err, models.ErrInvalidTransition)

	_, err = s.executions.Transition(ctx, s.pool, uuid.New(), models.SourcesFor(models.StatusRunning),
		models.Transition{To: models.StatusRunning})
	s.ErrorIs(err, models.ErrNotFound)

	list, err := s.executions.List(ctx, s.pool, models.ExecutionFilter{PromptName: "greet", Status: models.StatusSucceeded, Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(list, 1)

	history, err := s.prompts.VersionHistory(ctx, s.pool, p.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.EqualValues(1, history[0].ExecutionCount)
}

func (s *RepositorySuite) TestModelsAndSpans() {
	ctx := context.Background()
	first := s.createModel()

	maxTokens := 4096
	again := &models.Model{Provider: "echo", ModelName: "echo-1", MaxTokens: &maxTokens}
	s.Require().NoError(s.modelRepo.Upsert(ctx, s.pool, again))
	s.Equal(first.ID, again.ID)

	list, err := s.modelRepo.List(ctx, s.pool)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(4096, *list[0].MaxTokens)

	p := s.createPrompt("greet")
	v := s.createVersion(p, 1, "Hello {{name}}")
	e := s.createExecution(p, v, first, nil)

	start := time.Now().UTC().Truncate(time.Millisecond)
	span := &models.Span{
		TraceID: "0af7651916cd43dd8448eb211c80319c", SpanID: "b7ad6b7169203331",
		ExecutionID: e.ID, Name: "execution.run", Kind: "llm.generation",
		StartTime: start, EndTime: start.Add(40 * time.Millisecond), DurationMs: 40, Status: "error",
	}
	s.Require().NoError(s.spans.Upsert(ctx, s.pool, span))
	span.ID = uuid.Nil
	span.Status = "ok"
	s.Require().NoError(s.spans.Upsert(ctx, s.pool, span))

	stored, err := s.spans.GetByExecutionID(ctx, s.pool, e.ID)
	s.Require().NoError(err)
	s.Equal("ok", stored.Status)
	s.Equal(40, stored.DurationMs)
}

func (s *RepositorySuite) TestConcurrentRegistrationCreatesOneVersion() {
	ctx := context.Background()
	svc := service.NewVersioningService(s.pool, database.NewTransactionHelper(s.pool, zap.NewNop()), s.prompts, zap.NewNop())

	const n = 8
	results := make([]*service.VersionResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ResolveOrCreateVersion(ctx, service.RegisterInput{
				Name: "race", TemplateText: "Same {{text}}", SetActive: true,
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(s.T(), errs[i])
		s.Equal(1, results[i].Version.VersionNumber)
		s.Equal(results[0].Version.ID, results[i].Version.ID)
	}

	prompt, err := s.prompts.GetPromptByName(ctx, s.pool, "race")
	s.Require().NoError(err)
	versions, err := s.prompts.ListVersions(ctx, s.pool, prompt.ID)
	s.Require().NoError(err)
	s.Len(versions, 1)
}

func (s *RepositorySuite) TestConcurrentDistinctRegistrationsNumberWithoutGaps() {
	ctx := context.Background()
	svc := service.NewVersioningService(s.pool, database.NewTransactionHelper(s.pool, zap.NewNop()), s.prompts, zap.NewNop())

	const n = 10
	errs := make([]error, n)
	numbers := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.ResolveOrCreateVersion(ctx, service.RegisterInput{
				Name: "busy", TemplateText: fmt.Sprintf("Variant %d {{text}}", i),
			})
			errs[i] = err
			if err == nil {
				numbers[i] = res.Version.VersionNumber
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		s.Require().NoError(errs[i], "registration %d", i)
	}
	sort.Ints(numbers)
	for i := 0; i < n; i++ {
		s.Equal(i+1, numbers[i])
	}

	prompt, err := s.prompts.GetPromptByName(ctx, s.pool, "busy")
	s.Require().NoError(err)
	versions, err := s.prompts.ListVersions(ctx, s.pool, prompt.ID)
	s.Require().NoError(err)
	s.Len(versions, n)
	s.Require().NotNil(prompt.ActiveVersionID)
}
