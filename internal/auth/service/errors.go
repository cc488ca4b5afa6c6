package service

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailInUse         = errors.New("email_in_use")
	ErrRoleNotAllowed     = errors.New("role_not_allowed")
	ErrInvalidRefresh     = errors.New("invalid_refresh")
	ErrRefreshRevoked     = errors.New("refresh_revoked")
	ErrRefreshExpired     = errors.New("refresh_expired")
)

// errLostRace is returned from inside a rotation transaction when another
// caller revoked the record first. It never leaves the package.
var errLostRace = errors.New("refresh token already rotated")

// resultLabel turns a service error into a metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrEmailInUse),
		errors.Is(err, ErrRoleNotAllowed),
		errors.Is(err, ErrInvalidRefresh),
		errors.Is(err, ErrRefreshRevoked),
		errors.Is(err, ErrRefreshExpired):
		return err.Error()
	default:
		return "error"
	}
}

// timedOut reports whether err came from the store call deadline or a
// cancelled request.
func timedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
