package repository

import (
	"context"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
)

var organizationColumns = []string{"id", "name", "storage_id", "subscription_tier", "is_active", "created_at", "updated_at"}

// PostgresOrganizationRepository implements domain.OrganizationRepository using PostgreSQL
type PostgresOrganizationRepository struct {
	store *Store
}

// NewPostgresOrganizationRepository creates a new organization repository
func NewPostgresOrganizationRepository(store *Store) *PostgresOrganizationRepository {
	return &PostgresOrganizationRepository{store: store}
}

// Create inserts a new organization
func (r *PostgresOrganizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if org.Tier == "" {
		org.Tier = domain.TierFree
	}
	return exec(ctx, r.store, "organization.create", func(ctx context.Context) error {
		query, args, err := psql.Insert("organizations").
			Columns("id", "name", "storage_id", "subscription_tier", "is_active").
			Values(org.ID, org.Name, org.StorageID, org.Tier, org.Active).
			Suffix("RETURNING created_at, updated_at").
			ToSql()
		if err != nil {
			return err
		}
		if err := r.store.db.QueryRowxContext(ctx, query, args...).Scan(&org.CreatedAt, &org.UpdatedAt); err != nil {
			r.store.logger.Error("failed to create organization",
				slog.String("name", org.Name),
				slog.String("error", err.Error()),
			)
			return err
		}
		return nil
	})
}

// GetByID retrieves an organization by ID
func (r *PostgresOrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return run(ctx, r.store, "organization.get", func(ctx context.Context) (*domain.Organization, error) {
		return get[domain.Organization](ctx, r.store.db, psql.Select(organizationColumns...).From("organizations").Where(sq.Eq{"id": id}))
	})
}

// GetByName retrieves an organization by its unique name
func (r *PostgresOrganizationRepository) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	return run(ctx, r.store, "organization.get_by_name", func(ctx context.Context) (*domain.Organization, error) {
		return get[domain.Organization](ctx, r.store.db, psql.Select(organizationColumns...).From("organizations").Where(sq.Eq{"name": name}))
	})
}

func (r *PostgresOrganizationRepository) List(ctx context.Context) ([]*domain.Organization, error) {
	return run(ctx, r.store, "organization.list", func(ctx context.Context) ([]*domain.Organization, error) {
		return list[domain.Organization](ctx, r.store.db, psql.Select(organizationColumns...).From("organizations").OrderBy("name"))
	})
}

// Update locks the organization row, applies fn and writes the mutable columns.
func (r *PostgresOrganizationRepository) Update(ctx context.Context, id uuid.UUID, fn func(*domain.Organization) error) (*domain.Organization, error) {
	return run(ctx, r.store, "organization.update", func(ctx context.Context) (*domain.Organization, error) {
		var out *domain.Organization
		err := r.store.inTx(ctx, func(tx *sqlx.Tx) error {
			org, err := get[domain.Organization](ctx, tx, psql.Select(organizationColumns...).From("organizations").
				Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
			if err != nil {
				return err
			}
			if err := fn(org); err != nil {
				return err
			}
			query, args, err := psql.Update("organizations").
				Set("name", org.Name).
				Set("storage_id", org.StorageID).
				Set("subscription_tier", org.Tier).
				Set("is_active", org.Active).
				Set("updated_at", time.Now().UTC()).
				Where(sq.Eq{"id": id}).
				Suffix("RETURNING updated_at").
				ToSql()
			if err != nil {
				return err
			}
			if err := tx.QueryRowxContext(ctx, query, args...).Scan(&org.UpdatedAt); err != nil {
				return err
			}
			out = org
			return nil
		})
		return out, err
	})
}

// Delete removes the organization and everything it owns in one transaction.
func (r *PostgresOrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return exec(ctx, r.store, "organization.delete", func(ctx context.Context) error {
		return r.store.inTx(ctx, func(tx *sqlx.Tx) error {
			for _, table := range []string{"complaints", "leads", "users"} {
				query, args, err := psql.Delete(table).Where(sq.Eq{"organization_id": id}).ToSql()
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, query, args...); err != nil {
					return err
				}
			}
			return execAffected(ctx, tx, psql.Delete("organizations").Where(sq.Eq{"id": id}))
		})
	})
}
