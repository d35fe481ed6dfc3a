package tenant

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
)

func TestResolve(t *testing.T) {
	orgID := uuid.New()

	scope, err := Resolve(domain.Principal{UserID: uuid.New(), Role: domain.RoleSystemAdmin})
	require.NoError(t, err)
	assert.True(t, scope.IsSystemWide())

	for _, role := range []domain.Role{domain.RoleOrgAdmin, domain.RoleEmployee, domain.RoleCustomer} {
		scope, err := Resolve(domain.Principal{UserID: uuid.New(), Role: role, OrganizationID: &orgID})
		require.NoError(t, err, role.String())
		got, ok := scope.OrganizationID()
		require.True(t, ok)
		assert.Equal(t, orgID, got)

		_, err = Resolve(domain.Principal{UserID: uuid.New(), Role: role})
		assert.ErrorIs(t, err, domain.ErrNoOrganizationAssigned, role.String())
	}

	_, err = Resolve(domain.Principal{UserID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestApplySelect(t *testing.T) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	orgID := uuid.New()

	query, args, err := Apply(psql.Select("id").From("leads").Where(sq.Eq{"id": 1}), domain.OrganizationScope(orgID)).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM leads WHERE id = $1 AND organization_id = $2", query)
	assert.Equal(t, []interface{}{1, orgID.String()}, args)

	query, args, err = Apply(psql.Select("id").From("leads"), domain.SystemWideScope()).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM leads", query)
	assert.Empty(t, args)

	query, _, err = Apply(psql.Select("id").From("leads"), domain.Scope{}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM leads WHERE 1 = 0", query)
}

func TestApplyUpdateAndDelete(t *testing.T) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	orgID := uuid.New()
	scope := domain.OrganizationScope(orgID)

	query, _, err := Apply(psql.Update("complaints").Set("status", "closed").Where(sq.Eq{"id": 7}), scope).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE complaints SET status = $1 WHERE id = $2 AND organization_id = $3", query)

	query, args, err := Apply(psql.Delete("users").Where(sq.Eq{"id": 7}), scope).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM users WHERE id = $1 AND organization_id = $2", query)
	assert.Len(t, args, 2)
}

func TestPermits(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()

	assert.True(t, Permits(domain.SystemWideScope(), nil))
	assert.True(t, Permits(domain.SystemWideScope(), &orgB))
	assert.True(t, Permits(domain.OrganizationScope(orgA), &orgA))
	assert.False(t, Permits(domain.OrganizationScope(orgA), &orgB))
	assert.False(t, Permits(domain.OrganizationScope(orgA), nil))
	assert.False(t, Permits(domain.Scope{}, &orgA))
}
