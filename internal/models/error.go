package models

// APIError is the body of every non-OAuth error response
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// API error codes
const (
	ErrBadRequest       = "BAD_REQUEST"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrForbidden        = "FORBIDDEN"
	ErrNotFound         = "NOT_FOUND"
	ErrConflict         = "CONFLICT"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrValidationFailed = "VALIDATION_FAILED"
	ErrTooManyRequests  = "TOO_MANY_REQUESTS"

	// Shopping list export and catalog import
	ErrInvalidExportFormat = "INVALID_EXPORT_FORMAT"
	ErrImportFileMissing   = "IMPORT_FILE_MISSING"
)

// Bearer token error codes (RFC 6750 section 3.1)
const (
	ErrInvalidRequest = "invalid_request"
	ErrInvalidToken   = "invalid_token"
)

// NewAPIError builds an APIError; details is optional
func NewAPIError(code, message string, details ...map[string]any) APIError {
	apiErr := APIError{Code: code, Message: message}
	if len(details) > 0 {
		apiErr.Details = details[0]
	}
	return apiErr
}

// OAuth2Error is the RFC 6749 error body used by the bearer token middlewares
type OAuth2Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func NewOAuth2Error(code, description string) OAuth2Error {
	return OAuth2Error{Error: code, ErrorDescription: description}
}
