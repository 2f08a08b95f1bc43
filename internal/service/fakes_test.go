package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptledger/PromptLedger/internal/interfaces"
	"github.com/promptledger/PromptLedger/internal/models"
)

// memExecutionRepo keeps executions in memory with the same uniqueness and conditional
// update rules as the Postgres repository.
type memExecutionRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*models.Execution
	inputs  map[uuid.UUID]*models.ExecutionInput
	keys    map[string]uuid.UUID
	creates int
	// beforeInsert runs before the uniqueness check, to widen race windows.
	beforeInsert func()
}

func newMemExecutionRepo() *memExecutionRepo {
	return &memExecutionRepo{
		rows:   make(map[uuid.UUID]*models.Execution),
		inputs: make(map[uuid.UUID]*models.ExecutionInput),
		keys:   make(map[string]uuid.UUID),
	}
}

var _ interfaces.ExecutionRepository = (*memExecutionRepo)(nil)

func idemKey(promptID uuid.UUID, key string) string { return promptID.String() + "/" + key }

func (r *memExecutionRepo) Create(_ context.Context, _ interfaces.DBTX, e *models.Execution, input *models.ExecutionInput) error {
	if r.beforeInsert != nil {
		r.beforeInsert()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.IdempotencyKey != nil {
		k := idemKey(e.PromptID, *e.IdempotencyKey)
		if _, taken := r.keys[k]; taken {
			return models.ErrAlreadyExists
		}
		r.keys[k] = e.ID
	}
	e.CreatedAt = time.Now().UTC()
	cp := *e
	r.rows[e.ID] = &cp
	in := *input
	r.inputs[e.ID] = &in
	r.creates++
	return nil
}

func (r *memExecutionRepo) GetByID(_ context.Context, _ interfaces.DBTX, id uuid.UUID) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, models.NotFoundf("execution %s", id)
	}
	cp := *row
	return &cp, nil
}

func (r *memExecutionRepo) GetByIdempotencyKey(ctx context.Context, q interfaces.DBTX, promptID uuid.UUID, key string) (*models.Execution, error) {
	r.mu.Lock()
	id, ok := r.keys[idemKey(promptID, key)]
	r.mu.Unlock()
	if !ok {
		return nil, models.NotFoundf("idempotency key %s", key)
	}
	return r.GetByID(ctx, q, id)
}

func (r *memExecutionRepo) GetInput(_ context.Context, _ interfaces.DBTX, id uuid.UUID) (*models.ExecutionInput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inputs[id]
	if !ok {
		return nil, models.NotFoundf("execution input %s", id)
	}
	return in, nil
}

func (r *memExecutionRepo) Transition(_ context.Context, _ interfaces.DBTX, id uuid.UUID, from []models.ExecutionStatus, t models.Transition) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, models.NotFoundf("execution %s", id)
	}
	allowed := false
	for _, s := range from {
		if row.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, &models.TransitionError{From: row.Status, To: t.To}
	}
	row.Status = t.To
	if t.StartedAt != nil {
		row.StartedAt = t.StartedAt
	}
	if t.CompletedAt != nil {
		row.CompletedAt = t.CompletedAt
	}
	if t.ResponseText != nil {
		row.ResponseText = t.ResponseText
	}
	if t.PromptTokens != nil {
		row.PromptTokens = t.PromptTokens
	}
	if t.ResponseTokens != nil {
		row.ResponseTokens = t.ResponseTokens
	}
	if t.LatencyMs != nil {
		row.LatencyMs = t.LatencyMs
	}
	if t.ProviderRequestID != nil {
		row.ProviderRequestID = t.ProviderRequestID
	}
	if t.ErrorType != nil {
		row.ErrorType = t.ErrorType
	}
	if t.ErrorMessage != nil {
		row.ErrorMessage = t.ErrorMessage
	}
	cp := *row
	return &cp, nil
}

func (r *memExecutionRepo) List(_ context.Context, _ interfaces.DBTX, filter models.ExecutionFilter) ([]*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Execution, 0, len(r.rows))
	for _, row := range r.rows {
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memExecutionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// put stores e directly, bypassing Create.
func (r *memExecutionRepo) put(e *models.Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.rows[e.ID] = &cp
}

// recordingTimer fires immediately and remembers every requested wait.
type recordingTimer struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (t *recordingTimer) After(d time.Duration) <-chan time.Time {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (t *recordingTimer) total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum time.Duration
	for _, w := range t.waits {
		sum += w
	}
	return sum
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }
