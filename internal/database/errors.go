package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"net/url"
	"regexp"
	"syscall"

	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"
)

// postgrest-go reports server errors as "(<code>) <message>".
var restErrorPattern = regexp.MustCompile(`^\(([A-Za-z0-9]*)\) `)

// Classify wraps a driver or transport error into an AppError whose code
// is one of the remote error kinds. AppErrors pass through unchanged.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return utils.NewAppError(classifyCode(err), message, err)
}

func classifyCode(err error) string {
	switch {
	case isTransportError(err):
		return utils.ErrRemoteUnavailable
	case errors.Is(err, sql.ErrNoRows):
		return utils.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return sqlStateCode(string(pqErr.Code))
	}

	if m := restErrorPattern.FindStringSubmatch(err.Error()); m != nil {
		switch m[1] {
		case "PGRST116":
			return utils.ErrNotFound
		case "PGRST301", "PGRST302":
			return utils.ErrNotAuthenticated
		}
		return sqlStateCode(m[1])
	}
	return utils.ErrRemote
}

// sqlStateCode maps a Postgres SQLSTATE to an error kind.
func sqlStateCode(state string) string {
	switch state {
	case "23505", "23503":
		// unique_violation, foreign_key_violation
		return utils.ErrConflict
	case "23502", "23514", "22P02":
		// not_null_violation, check_violation, invalid_text_representation
		return utils.ErrValidation
	case "42501":
		// insufficient_privilege, including row level security rejections
		return utils.ErrForbidden
	}
	return utils.ErrRemote
}

func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
