// Package repository is the PostgreSQL entity store. Every lookup of an
// organization-owned row goes through tenant.Apply.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/observability/metrics"
	"github.com/aryan0dhankhar/smartcrm/internal/reliability/retry"
	"github.com/aryan0dhankhar/smartcrm/internal/tenant"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store holds the shared handle used by every Postgres repository.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
	retry  *retry.Config
	tracer trace.Tracer
}

// NewStore wraps an open lib/pq handle.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     sqlx.NewDb(db, "postgres"),
		logger: logger,
		retry:  retry.Once(IsTransient),
		tracer: otel.Tracer("github.com/aryan0dhankhar/smartcrm/internal/repository"),
	}
}

// run executes op with one retry on transient failures and maps driver
// errors onto the domain taxonomy.
func run[T any](ctx context.Context, s *Store, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "repository."+op, trace.WithAttributes(attribute.String("db.system", "postgresql")))
	defer span.End()

	attempts := 0
	result, err := retry.Do(ctx, s.retry, s.logger, op, func(ctx context.Context) (T, error) {
		attempts++
		return fn(ctx)
	})
	if attempts > 1 {
		outcome := "recovered"
		if err != nil {
			outcome = "failed"
		}
		metrics.ObserveStorageRetry(op, outcome)
	}
	if err != nil {
		err = mapError(err)
		if !isDomainError(err) || errors.Is(err, domain.ErrServiceUnavailable) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			s.logger.Error("storage unavailable",
				slog.String("operation", op),
				slog.String("error", exhausted.Err.Error()),
			)
			return result, fmt.Errorf("%w: %s", domain.ErrServiceUnavailable, op)
		}
		return result, err
	}
	return result, nil
}

// exec is run for operations with no result.
func exec(ctx context.Context, s *Store, op string, fn func(ctx context.Context) error) error {
	_, err := run(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// inTx runs fn in a transaction, rolling back on any error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// get runs a single-row select built by squirrel.
func get[T any](ctx context.Context, q sqlx.QueryerContext, b sq.SelectBuilder) (*T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	var row T
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func list[T any](ctx context.Context, q sqlx.QueryerContext, b sq.SelectBuilder) ([]*T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows := []*T{}
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

type statusCount struct {
	Status string `db:"status"`
	N      int    `db:"n"`
}

// countByStatus groups the rows of table visible in scope by their status column.
func countByStatus[S ~string](ctx context.Context, q sqlx.QueryerContext, table string, scope domain.Scope) (map[S]int, error) {
	rows, err := list[statusCount](ctx, q, tenant.Apply(psql.Select("status", "COUNT(*) AS n").From(table), scope).GroupBy("status"))
	if err != nil {
		return nil, err
	}
	out := make(map[S]int, len(rows))
	for _, r := range rows {
		out[S(r.Status)] = r.N
	}
	return out, nil
}

// execAffected runs a write and reports ErrNotFound when nothing matched.
func execAffected(ctx context.Context, e sqlx.ExecerContext, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var (
	_ domain.OrganizationRepository = (*PostgresOrganizationRepository)(nil)
	_ domain.UserRepository         = (*PostgresUserRepository)(nil)
	_ domain.LeadRepository         = (*PostgresLeadRepository)(nil)
	_ domain.ComplaintRepository    = (*PostgresComplaintRepository)(nil)
)
