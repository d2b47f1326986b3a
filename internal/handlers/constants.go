package handlers

const (
	ErrInvalidJSON         = "Invalid JSON body"
	ErrInvalidFormData     = "Invalid form data"
	ErrUnauthorized        = "Unauthorized"
	ErrForbidden           = "Forbidden"
	ErrInternalServerError = "Internal server error"
	ErrTooManyRequests     = "Too many requests"
)
