package apiErrors

import "fmt"

type ErrorCode string

const (
	ValidationError       ErrorCode = "VALIDATION_ERROR"
	RepositoryNotFound    ErrorCode = "REPOSITORY_NOT_FOUND"
	RepositoryArchived    ErrorCode = "REPOSITORY_ARCHIVED"
	IssuesDisabled        ErrorCode = "ISSUES_DISABLED"
	NotAContributor       ErrorCode = "NOT_A_CONTRIBUTOR"
	ReviewLocked          ErrorCode = "REVIEW_LOCKED"
	AlreadyReviewed       ErrorCode = "ALREADY_REVIEWED"
	NotAuthorizedReviewer ErrorCode = "NOT_AUTHORIZED_REVIEWER"
	NotFound              ErrorCode = "NOT_FOUND"
	Unauthorized          ErrorCode = "UNAUTHORIZED"
	Forbidden             ErrorCode = "FORBIDDEN"
	InternalError         ErrorCode = "INTERNAL_ERROR"
)

// APIError is a caller-facing failure. Message is safe to display as is;
// internal diagnostics are logged, never put here.
type APIError struct {
	Code    ErrorCode
	Message string
}

func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}
