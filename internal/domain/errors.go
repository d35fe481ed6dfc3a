package domain

import "errors"

var (
	// ErrUnauthenticated is returned when a request carries no usable credentials.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidToken covers every token verification failure: expiry,
	// bad signature, tampered payload.
	ErrInvalidToken = errors.New("invalid token")

	// ErrForbidden is returned when an authenticated principal may not perform an action.
	ErrForbidden = errors.New("forbidden")

	// ErrInsufficientPrivilege is returned when a principal tries to act
	// at or above its own role, e.g. an org admin minting another org admin.
	ErrInsufficientPrivilege = errors.New("insufficient privilege")

	// ErrNoOrganizationAssigned is returned when a tenant-scoped principal
	// has no organization.
	ErrNoOrganizationAssigned = errors.New("no organization assigned")

	// ErrNotFound is returned when a row is absent or belongs to another tenant.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("conflict")

	// ErrInvalidStateTransition is returned when a status change is not
	// allowed by the lead or complaint state machine.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation error")

	// ErrServiceUnavailable is returned when storage stays unreachable after a retry.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrPasswordChangeRequired is returned while a user still holds a temporary password.
	ErrPasswordChangeRequired = errors.New("password change required")
)
