package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/promptledger/PromptLedger/internal/models"
)

const pgUniqueViolation = "23505"

// uniqueViolation returns the violated constraint name when err is a Postgres unique violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// mapError turns driver errors into model sentinels and wraps everything else with op.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", models.ErrNotFound, op)
	}
	if constraint, ok := uniqueViolation(err); ok {
		return fmt.Errorf("%w: %s violates %s", models.ErrAlreadyExists, op, constraint)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
