package repository

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/tenant"
)

var complaintColumns = []string{
	"id", "title", "description", "type", "organization_id", "created_by", "assigned_to", "customer_id",
	"status", "priority", "classification", "created_at", "updated_at",
}

// PostgresComplaintRepository implements domain.ComplaintRepository using PostgreSQL
type PostgresComplaintRepository struct {
	store *Store
}

func NewPostgresComplaintRepository(store *Store) *PostgresComplaintRepository {
	return &PostgresComplaintRepository{store: store}
}

func (r *PostgresComplaintRepository) Create(ctx context.Context, c *domain.Complaint) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return exec(ctx, r.store, "complaint.create", func(ctx context.Context) error {
		query, args, err := psql.Insert("complaints").
			Columns("id", "title", "description", "type", "organization_id", "created_by", "assigned_to", "customer_id", "status", "priority", "classification").
			Values(c.ID, c.Title, c.Description, c.Type, c.OrganizationID, c.CreatedBy, c.AssignedTo, c.CustomerID, c.Status, c.Priority, c.Classification).
			Suffix("RETURNING created_at, updated_at").
			ToSql()
		if err != nil {
			return err
		}
		if err := r.store.db.QueryRowxContext(ctx, query, args...).Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
			r.store.logger.Error("failed to create complaint",
				slog.String("organization_id", c.OrganizationID.String()),
				slog.String("error", err.Error()),
			)
			return err
		}
		return nil
	})
}

func (r *PostgresComplaintRepository) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Complaint, error) {
	return run(ctx, r.store, "complaint.get", func(ctx context.Context) (*domain.Complaint, error) {
		return get[domain.Complaint](ctx, r.store.db, selectComplaint(scope, id))
	})
}

func (r *PostgresComplaintRepository) List(ctx context.Context, scope domain.Scope, filter domain.ComplaintFilter) ([]*domain.Complaint, error) {
	q := tenant.Apply(psql.Select(complaintColumns...).From("complaints"), scope)
	if filter.Status != nil {
		q = q.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.CreatedBy != nil {
		q = q.Where(sq.Eq{"created_by": *filter.CreatedBy})
	}
	if filter.CustomerID != nil {
		q = q.Where(sq.Eq{"customer_id": *filter.CustomerID})
	}
	q = q.OrderBy("created_at DESC")
	return run(ctx, r.store, "complaint.list", func(ctx context.Context) ([]*domain.Complaint, error) {
		return list[domain.Complaint](ctx, r.store.db, q)
	})
}

// CountByStatus returns the number of complaints in each status within scope.
func (r *PostgresComplaintRepository) CountByStatus(ctx context.Context, scope domain.Scope) (map[domain.ComplaintStatus]int, error) {
	return run(ctx, r.store, "complaint.count", func(ctx context.Context) (map[domain.ComplaintStatus]int, error) {
		return countByStatus[domain.ComplaintStatus](ctx, r.store.db, "complaints", scope)
	})
}

// Update locks the complaint, lets fn validate and mutate the current row
// and writes the mutable columns back.
func (r *PostgresComplaintRepository) Update(ctx context.Context, scope domain.Scope, id uuid.UUID, fn func(*domain.Complaint) error) (*domain.Complaint, error) {
	return run(ctx, r.store, "complaint.update", func(ctx context.Context) (*domain.Complaint, error) {
		var out *domain.Complaint
		err := r.store.inTx(ctx, func(tx *sqlx.Tx) error {
			c, err := get[domain.Complaint](ctx, tx, selectComplaint(scope, id).Suffix("FOR UPDATE"))
			if err != nil {
				return err
			}
			if err := fn(c); err != nil {
				return err
			}
			query, args, err := tenant.Apply(psql.Update("complaints").
				Set("title", c.Title).
				Set("description", c.Description).
				Set("type", c.Type).
				Set("assigned_to", c.AssignedTo).
				Set("customer_id", c.CustomerID).
				Set("status", c.Status).
				Set("priority", c.Priority).
				Set("classification", c.Classification).
				Set("updated_at", time.Now().UTC()).
				Where(sq.Eq{"id": id}), scope).
				Suffix("RETURNING updated_at").
				ToSql()
			if err != nil {
				return err
			}
			if err := tx.QueryRowxContext(ctx, query, args...).Scan(&c.UpdatedAt); err != nil {
				return err
			}
			out = c
			return nil
		})
		return out, err
	})
}

func (r *PostgresComplaintRepository) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	return exec(ctx, r.store, "complaint.delete", func(ctx context.Context) error {
		return execAffected(ctx, r.store.db, tenant.Apply(psql.Delete("complaints").Where(sq.Eq{"id": id}), scope))
	})
}

func selectComplaint(scope domain.Scope, id uuid.UUID) sq.SelectBuilder {
	return tenant.Apply(psql.Select(complaintColumns...).From("complaints").Where(sq.Eq{"id": id}), scope)
}
