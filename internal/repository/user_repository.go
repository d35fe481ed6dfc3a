package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/tenant"
)

var userColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name", "role",
	"organization_id", "is_active", "must_change_password", "created_at", "updated_at",
}

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	store *Store
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(store *Store) *PostgresUserRepository {
	return &PostgresUserRepository{store: store}
}

// Create inserts the user and runs onCreated before committing, so a
// failed hook (e.g. the welcome email) leaves no account behind.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User, onCreated func(context.Context, *domain.User) error) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = domain.NormalizeEmail(user.Email)
	return exec(ctx, r.store, "user.create", func(ctx context.Context) error {
		return r.store.inTx(ctx, func(tx *sqlx.Tx) error {
			query, args, err := psql.Insert("users").
				Columns("id", "email", "password_hash", "first_name", "last_name", "role", "organization_id", "is_active", "must_change_password").
				Values(user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role, user.OrganizationID, user.Active, user.MustChangePassword).
				Suffix("RETURNING created_at, updated_at").
				ToSql()
			if err != nil {
				return err
			}
			if err := tx.QueryRowxContext(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
				r.store.logger.Error("failed to create user",
					slog.String("email", user.Email),
					slog.String("error", err.Error()),
				)
				return err
			}
			if onCreated != nil {
				return onCreated(ctx, user)
			}
			return nil
		})
	})
}

// GetByID retrieves a user by ID within scope
func (r *PostgresUserRepository) GetByID(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.User, error) {
	return run(ctx, r.store, "user.get", func(ctx context.Context) (*domain.User, error) {
		return get[domain.User](ctx, r.store.db, r.selectByID(scope, id))
	})
}

// GetByEmail retrieves a user by email regardless of organization
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return run(ctx, r.store, "user.get_by_email", func(ctx context.Context) (*domain.User, error) {
		return get[domain.User](ctx, r.store.db, psql.Select(userColumns...).From("users").
			Where(sq.Eq{"email": domain.NormalizeEmail(email)}))
	})
}

// List returns the users visible in scope, newest first
func (r *PostgresUserRepository) List(ctx context.Context, scope domain.Scope, filter domain.UserFilter) ([]*domain.User, error) {
	q := tenant.Apply(psql.Select(userColumns...).From("users"), scope)
	if filter.Role != nil {
		q = q.Where(sq.Eq{"role": *filter.Role})
	}
	if filter.ActiveOnly {
		q = q.Where(sq.Eq{"is_active": true})
	}
	q = q.OrderBy("created_at DESC")
	return run(ctx, r.store, "user.list", func(ctx context.Context) ([]*domain.User, error) {
		return list[domain.User](ctx, r.store.db, q)
	})
}

// Update locks the user row within scope, applies fn and writes the mutable columns.
func (r *PostgresUserRepository) Update(ctx context.Context, scope domain.Scope, id uuid.UUID, fn func(*domain.User) error) (*domain.User, error) {
	return run(ctx, r.store, "user.update", func(ctx context.Context) (*domain.User, error) {
		var out *domain.User
		err := r.store.inTx(ctx, func(tx *sqlx.Tx) error {
			user, err := get[domain.User](ctx, tx, r.selectByID(scope, id).Suffix("FOR UPDATE"))
			if err != nil {
				return err
			}
			if err := fn(user); err != nil {
				return err
			}
			user.Email = domain.NormalizeEmail(user.Email)
			query, args, err := tenant.Apply(psql.Update("users").
				Set("email", user.Email).
				Set("password_hash", user.PasswordHash).
				Set("first_name", user.FirstName).
				Set("last_name", user.LastName).
				Set("role", user.Role).
				Set("is_active", user.Active).
				Set("must_change_password", user.MustChangePassword).
				Set("updated_at", time.Now().UTC()).
				Where(sq.Eq{"id": id}), scope).
				Suffix("RETURNING updated_at").
				ToSql()
			if err != nil {
				return err
			}
			if err := tx.QueryRowxContext(ctx, query, args...).Scan(&user.UpdatedAt); err != nil {
				return err
			}
			out = user
			return nil
		})
		return out, err
	})
}

// Delete permanently removes a user within scope
func (r *PostgresUserRepository) Delete(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	return exec(ctx, r.store, "user.delete", func(ctx context.Context) error {
		err := execAffected(ctx, r.store.db, tenant.Apply(psql.Delete("users").Where(sq.Eq{"id": id}), scope))
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user still created leads or complaints", domain.ErrConflict)
		}
		return err
	})
}

func (r *PostgresUserRepository) selectByID(scope domain.Scope, id uuid.UUID) sq.SelectBuilder {
	return tenant.Apply(psql.Select(userColumns...).From("users").Where(sq.Eq{"id": id}), scope)
}
