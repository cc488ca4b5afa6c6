package http

import (
	"unicode/utf8"

	"github.com/Gaia-Digital-Agency/ascort-bali/internal/auth/domain"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/authsdk"
	"github.com/Gaia-Digital-Agency/ascort-bali/pkg/cryptox"
	"github.com/badoux/checkmail"
)

const (
	minPasswordChars    = 8
	minRefreshTokenSize = 10
	maxEmailBytes       = 254
)

// fieldErrors collects one message per offending field.
type fieldErrors map[string]string

func (f fieldErrors) check(ok bool, field, msg string) {
	if !ok {
		if _, seen := f[field]; !seen {
			f[field] = msg
		}
	}
}

// apiError is nil when nothing was collected.
func (f fieldErrors) apiError() *authsdk.APIError {
	if len(f) == 0 {
		return nil
	}
	return authsdk.ErrInvalidBody.WithFields(f)
}

func validateEmail(f fieldErrors, email string) {
	f.check(email != "", "email", "required")
	f.check(len(email) <= maxEmailBytes, "email", "too long")
	f.check(checkmail.ValidateFormat(email) == nil, "email", "invalid email address")
}

func validateRegister(req authsdk.RegisterRequest) (domain.Role, *authsdk.APIError) {
	f := fieldErrors{}
	validateEmail(f, req.Email)

	f.check(utf8.RuneCountInString(req.Password) >= minPasswordChars, "password", "must be at least 8 characters")
	f.check(len(req.Password) <= cryptox.MaxPasswordBytes, "password", "must be at most 72 bytes")

	role, err := domain.ParseRole(req.Role)
	f.check(err == nil && role.SelfRegistrable(), "role", "must be one of: user, provider")

	return role, f.apiError()
}

func validateLogin(req authsdk.LoginRequest) *authsdk.APIError {
	f := fieldErrors{}
	validateEmail(f, req.Email)
	f.check(req.Password != "", "password", "required")
	return f.apiError()
}

func validateRefresh(req authsdk.RefreshRequest) *authsdk.APIError {
	f := fieldErrors{}
	f.check(len(req.RefreshToken) >= minRefreshTokenSize, "refreshToken", "must be at least 10 characters")
	return f.apiError()
}
