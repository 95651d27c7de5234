package errors

import "fmt"

// Well-known error codes surfaced to clients. These are stable strings that
// frontends and tests match on, so they must never change casually.
const (
	CodeRateLimited     = "RATE_LIMITED"
	CodeTenantNotFound  = "TENANT_NOT_FOUND"
	CodeTenantMismatch  = "TENANT_MISMATCH"
	CodeTurnConflict    = "TURN_CONFLICT"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeSessionExpired  = "SESSION_EXPIRED"
	CodeUpstreamFailure = "UPSTREAM_FAILURE"
)

// NewTenantNotFoundError is returned when a tenant hash cannot be resolved.
// Resolution failure is always a hard negative: no fallback config is ever
// substituted, the caller must reject with 404.
func NewTenantNotFoundError(tenantHash string) *AppError {
	return NewNotFoundError("Tenant configuration").
		WithCode(CodeTenantNotFound).
		WithDetails(map[string]interface{}{"tenant_hash": tenantHash})
}

// NewTenantMismatchError is returned when a state token's tenant does not
// match the tenant resolved from the request. Fail closed.
func NewTenantMismatchError() *AppError {
	return NewForbiddenError("session does not belong to this tenant").
		WithCode(CodeTenantMismatch)
}

// NewTurnConflictError is returned when a conditional turn write loses the
// race against a concurrent writer for the same session.
func NewTurnConflictError(sessionID string, expectedTurn int) *AppError {
	return NewConflictError(fmt.Sprintf("conversation turn conflict for session %s", sessionID)).
		WithCode(CodeTurnConflict).
		WithDetails(map[string]interface{}{"expected_turn": expectedTurn})
}

// NewSessionExpiredError is returned when a state token has expired.
func NewSessionExpiredError() *AppError {
	return NewUnauthorizedError("session state token has expired").
		WithCode(CodeSessionExpired)
}
