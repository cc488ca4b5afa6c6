package authsdk

import "time"

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" example:"ana@example.com"`
	Password string `json:"password" example:"correct horse battery"`
	Role     string `json:"role" example:"user" enums:"user,provider"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" example:"ana@example.com"`
	Password string `json:"password" example:"correct horse battery"`
}

// RefreshRequest is the body of POST /auth/refresh and POST /auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is returned by register, login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType" example:"Bearer"`
	ExpiresIn    int    `json:"expiresIn" example:"900"`
}

// OKResponse is returned by logout and the legacy health probe.
type OKResponse struct {
	OK bool `json:"ok" example:"true"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime,omitempty" example:"1h2m3s"`
	Version string        `json:"version,omitempty" example:"0.1.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports dependency status on /readyz.
type HealthChecks struct {
	Database string `json:"database" example:"ok"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string        `json:"error" example:"invalid_body"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails carries per-field validation messages.
type ErrorDetails struct {
	Fields map[string]string `json:"fields,omitempty"`
}
