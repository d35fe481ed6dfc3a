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

var leadColumns = []string{
	"id", "name", "email", "phone", "organization_id", "created_by", "assigned_to",
	"status", "score", "category", "created_at", "updated_at",
}

// PostgresLeadRepository implements domain.LeadRepository using PostgreSQL
type PostgresLeadRepository struct {
	store *Store
}

func NewPostgresLeadRepository(store *Store) *PostgresLeadRepository {
	return &PostgresLeadRepository{store: store}
}

// Create inserts a lead. OrganizationID and CreatedBy must already be set
// from the acting principal.
func (r *PostgresLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	return exec(ctx, r.store, "lead.create", func(ctx context.Context) error {
		query, args, err := psql.Insert("leads").
			Columns("id", "name", "email", "phone", "organization_id", "created_by", "assigned_to", "status", "score", "category").
			Values(lead.ID, lead.Name, lead.Email, lead.Phone, lead.OrganizationID, lead.CreatedBy, lead.AssignedTo, lead.Status, lead.Score, lead.Category).
			Suffix("RETURNING created_at, updated_at").
			ToSql()
		if err != nil {
			return err
		}
		if err := r.store.db.QueryRowxContext(ctx, query, args...).Scan(&lead.CreatedAt, &lead.UpdatedAt); err != nil {
			r.store.logger.Error("failed to create lead",
				slog.String("organization_id", lead.OrganizationID.String()),
				slog.String("error", err.Error()),
			)
			return err
		}
		return nil
	})
}

func (r *PostgresLeadRepository) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Lead, error) {
	return run(ctx, r.store, "lead.get", func(ctx context.Context) (*domain.Lead, error) {
		return get[domain.Lead](ctx, r.store.db, selectLead(scope, id))
	})
}

func (r *PostgresLeadRepository) List(ctx context.Context, scope domain.Scope, filter domain.LeadFilter) ([]*domain.Lead, error) {
	q := tenant.Apply(psql.Select(leadColumns...).From("leads"), scope)
	if filter.Status != nil {
		q = q.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.AssignedTo != nil {
		q = q.Where(sq.Eq{"assigned_to": *filter.AssignedTo})
	}
	q = q.OrderBy("created_at DESC")
	return run(ctx, r.store, "lead.list", func(ctx context.Context) ([]*domain.Lead, error) {
		return list[domain.Lead](ctx, r.store.db, q)
	})
}

// CountByStatus returns the number of leads in each status within scope.
func (r *PostgresLeadRepository) CountByStatus(ctx context.Context, scope domain.Scope) (map[domain.LeadStatus]int, error) {
	return run(ctx, r.store, "lead.count", func(ctx context.Context) (map[domain.LeadStatus]int, error) {
		return countByStatus[domain.LeadStatus](ctx, r.store.db, "leads", scope)
	})
}

// Update locks the lead, lets fn validate and mutate the current row and
// writes the mutable columns back.
func (r *PostgresLeadRepository) Update(ctx context.Context, scope domain.Scope, id uuid.UUID, fn func(*domain.Lead) error) (*domain.Lead, error) {
	return run(ctx, r.store, "lead.update", func(ctx context.Context) (*domain.Lead, error) {
		var out *domain.Lead
		err := r.store.inTx(ctx, func(tx *sqlx.Tx) error {
			lead, err := get[domain.Lead](ctx, tx, selectLead(scope, id).Suffix("FOR UPDATE"))
			if err != nil {
				return err
			}
			if err := fn(lead); err != nil {
				return err
			}
			query, args, err := tenant.Apply(psql.Update("leads").
				Set("name", lead.Name).
				Set("email", lead.Email).
				Set("phone", lead.Phone).
				Set("assigned_to", lead.AssignedTo).
				Set("status", lead.Status).
				Set("score", lead.Score).
				Set("category", lead.Category).
				Set("updated_at", time.Now().UTC()).
				Where(sq.Eq{"id": id}), scope).
				Suffix("RETURNING updated_at").
				ToSql()
			if err != nil {
				return err
			}
			if err := tx.QueryRowxContext(ctx, query, args...).Scan(&lead.UpdatedAt); err != nil {
				return err
			}
			out = lead
			return nil
		})
		return out, err
	})
}

func (r *PostgresLeadRepository) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	return exec(ctx, r.store, "lead.delete", func(ctx context.Context) error {
		return execAffected(ctx, r.store.db, tenant.Apply(psql.Delete("leads").Where(sq.Eq{"id": id}), scope))
	})
}

func selectLead(scope domain.Scope, id uuid.UUID) sq.SelectBuilder {
	return tenant.Apply(psql.Select(leadColumns...).From("leads").Where(sq.Eq{"id": id}), scope)
}
