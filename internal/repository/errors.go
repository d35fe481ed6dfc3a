package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
)

// IsTransient reports whether err is a connection-level failure worth one retry.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08: connection exception; 57P01-03: server shutting down
		return pqErr.Code.Class() == "08" || pqErr.Code == "57P01" || pqErr.Code == "57P02" || pqErr.Code == "57P03"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// mapError translates driver errors into domain errors. Errors already in
// the domain taxonomy pass through.
func mapError(err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w: referenced row does not exist", domain.ErrValidation)
		case "23514", "23502", "22P02":
			return fmt.Errorf("%w: %s", domain.ErrValidation, pqErr.Message)
		}
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrValidation,
		domain.ErrForbidden,
		domain.ErrInsufficientPrivilege,
		domain.ErrInvalidStateTransition,
		domain.ErrNoOrganizationAssigned,
		domain.ErrServiceUnavailable,
		domain.ErrUnauthenticated,
		domain.ErrInvalidToken,
		domain.ErrPasswordChangeRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
