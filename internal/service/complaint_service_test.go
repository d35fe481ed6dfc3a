package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/smartcrm/internal/ai"
	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/security"
)

func TestComplaintStateMachine(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	c := w.complaint(t, w.employeeX, ComplaintInput{})
	require.Equal(t, domain.ComplaintOpen, c.Status)
	require.Equal(t, domain.PriorityMedium, c.Priority)

	_, err := w.complaints.Update(ctx, w.employeeX, c.ID, ComplaintUpdate{Status: ptr(domain.ComplaintClosed)})
	requireKind(t, err, domain.ErrInvalidStateTransition)

	for _, next := range []domain.ComplaintStatus{domain.ComplaintInProgress, domain.ComplaintClosed} {
		got, err := w.complaints.Update(ctx, w.employeeX, c.ID, ComplaintUpdate{Status: ptr(next)})
		require.NoError(t, err)
		require.Equal(t, next, got.Status)
	}

	for _, next := range []domain.ComplaintStatus{domain.ComplaintOpen, domain.ComplaintInProgress} {
		_, err := w.complaints.Update(ctx, w.adminX, c.ID, ComplaintUpdate{Status: ptr(next)})
		requireKind(t, err, domain.ErrInvalidStateTransition)
	}
}

func TestComplaintTenantIsolation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	w.complaint(t, w.adminX, ComplaintInput{})
	y := w.complaint(t, w.adminY, ComplaintInput{})

	xs, err := w.complaints.List(ctx, w.employeeX, domain.ComplaintFilter{})
	require.NoError(t, err)
	require.Len(t, xs, 1)
	require.Equal(t, w.orgX.ID, xs[0].OrganizationID)

	_, err = w.complaints.Get(ctx, w.adminX, y.ID)
	requireKind(t, err, domain.ErrNotFound)
	_, err = w.complaints.Classify(ctx, w.adminX, y.ID)
	requireKind(t, err, domain.ErrNotFound)

	all, err := w.complaints.List(ctx, w.sysAdmin, domain.ComplaintFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestComplaintCustomerVisibility(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	mine := w.complaint(t, w.employeeX, ComplaintInput{CustomerID: &w.customerX.UserID})
	other := w.complaint(t, w.employeeX, ComplaintInput{})

	list, err := w.complaints.List(ctx, w.customerX, domain.ComplaintFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, mine.ID, list[0].ID)

	// an explicit filter cannot widen the view
	list, err = w.complaints.List(ctx, w.customerX, domain.ComplaintFilter{CustomerID: &w.employeeX.UserID})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = w.complaints.Get(ctx, w.customerX, mine.ID)
	require.NoError(t, err)
	_, err = w.complaints.Get(ctx, w.customerX, other.ID)
	requireKind(t, err, domain.ErrForbidden)

	_, err = w.complaints.Create(ctx, w.customerX, ComplaintInput{Title: "Mine"})
	requireKind(t, err, domain.ErrForbidden)
	_, err = w.complaints.Update(ctx, w.customerX, mine.ID, ComplaintUpdate{Title: ptr("edited")})
	requireKind(t, err, domain.ErrForbidden)
	requireKind(t, w.complaints.Delete(ctx, w.customerX, mine.ID), domain.ErrForbidden)

	// customer_id must name a customer of the same organization
	_, err = w.complaints.Create(ctx, w.employeeX, ComplaintInput{Title: "t", CustomerID: &w.customerY.UserID})
	requireKind(t, err, domain.ErrValidation)
	_, err = w.complaints.Create(ctx, w.employeeX, ComplaintInput{Title: "t", CustomerID: &w.employeeX2.UserID})
	requireKind(t, err, domain.ErrValidation)
}

func TestComplaintDeleteByOrgAdminOnly(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	c := w.complaint(t, w.employeeX, ComplaintInput{})

	requireKind(t, w.complaints.Delete(ctx, w.employeeX, c.ID), domain.ErrForbidden)
	require.NoError(t, w.complaints.Delete(ctx, w.adminX, c.ID))
}

func TestComplaintClassify(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	c := w.complaint(t, w.employeeX, ComplaintInput{Title: "App crash", Description: "Technical fault on login", Priority: domain.PriorityLow})
	require.Empty(t, c.Classification)

	got, err := w.complaints.Classify(ctx, w.employeeX, c.ID)
	require.NoError(t, err)
	require.Equal(t, ai.TechnicalIssue, got.Classification)
	require.Equal(t, domain.PriorityHigh, got.Priority)
}

func TestComplaintAutoClassify(t *testing.T) {
	w := newWorld(t)
	w.complaints = NewComplaintService(w.store.Complaints(), w.store.Users(), ai.KeywordClassifier{}, security.NewAuthorizer(nil, nil), true, nil)

	c := w.complaint(t, w.employeeX, ComplaintInput{Title: "Double charge", Description: "billing error"})
	require.Equal(t, ai.BillingIssue, c.Classification)
	require.Equal(t, domain.PriorityMedium, c.Priority)
}

func TestComplaintValidation(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	_, err := w.complaints.Create(ctx, w.employeeX, ComplaintInput{Title: ""})
	requireKind(t, err, domain.ErrValidation)
	_, err = w.complaints.Create(ctx, w.employeeX, ComplaintInput{Title: "t", Priority: "urgent"})
	requireKind(t, err, domain.ErrValidation)
}

func TestComplaintUnassign(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	c := w.complaint(t, w.adminX, ComplaintInput{AssignedTo: &w.employeeX.UserID})
	require.NotNil(t, c.AssignedTo)

	updated, err := w.complaints.Update(ctx, w.adminX, c.ID, ComplaintUpdate{Unassign: true})
	require.NoError(t, err)
	require.Nil(t, updated.AssignedTo)
}
