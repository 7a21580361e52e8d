package model

import (
	"encoding/json"
	"time"
)

type Category string

const (
	CategoryFrontend  Category = "frontend"
	CategoryBackend   Category = "backend"
	CategoryFullstack Category = "fullstack"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryFrontend, CategoryBackend, CategoryFullstack:
		return true
	}
	return false
}

// HasFrontend reports whether submissions in this category carry a
// frontend environment.
func (c Category) HasFrontend() bool {
	return c == CategoryFrontend || c == CategoryFullstack
}

type FrontendEnvironment string

const (
	EnvironmentWeb     FrontendEnvironment = "web"
	EnvironmentMobile  FrontendEnvironment = "mobile"
	EnvironmentDesktop FrontendEnvironment = "desktop"
)

func (e FrontendEnvironment) Valid() bool {
	switch e {
	case EnvironmentWeb, EnvironmentMobile, EnvironmentDesktop:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewing Status = "reviewing"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Resolved reports whether the status is terminal.
func (s Status) Resolved() bool {
	return s == StatusApproved || s == StatusRejected
}

type RepositoryStatus string

const (
	RepositoryAvailable      RepositoryStatus = "available"
	RepositoryArchived       RepositoryStatus = "archived"
	RepositoryIssuesDisabled RepositoryStatus = "issues-disabled"
	RepositoryMissing        RepositoryStatus = "missing"
)

// Submission is a community-submitted example application going through
// (or having completed) the review workflow.
//
// Invariant: Status == StatusReviewing iff ReviewerID and ReviewStartedOn
// are both set.
type Submission struct {
	ID                  string              `json:"id"`
	RepositoryURL       string              `json:"repository_url"`
	OwnerID             string              `json:"owner_id"`
	Category            Category            `json:"category"`
	FrontendEnvironment FrontendEnvironment `json:"frontend_environment,omitempty"`
	Language            string              `json:"language"`
	Libraries           []string            `json:"libraries"`
	Status              Status              `json:"status"`
	ReviewerID          *string             `json:"reviewer_id,omitempty"`
	ReviewStartedOn     *time.Time          `json:"review_started_on,omitempty"`
	NumberOfStars       int                 `json:"number_of_stars"`
	RepositoryStatus    RepositoryStatus    `json:"repository_status"`
	GitHubData          json.RawMessage     `json:"-"`
	GitHubDataFetchedOn *time.Time          `json:"-"`
	CreatedAt           time.Time           `json:"created_at"`
}

type User struct {
	ID        string    `json:"id"`
	GitHubID  int64     `json:"github_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Principal is the acting caller of an operation. The zero value is the
// anonymous principal. It is always passed explicitly, never read from
// ambient state.
type Principal struct {
	UserID   string
	GitHubID int64
	IsAdmin  bool
}

func (p Principal) Authenticated() bool { return p.UserID != "" }

func (p Principal) Owns(s Submission) bool {
	return p.Authenticated() && p.UserID == s.OwnerID
}

type AppError string

func (e AppError) Error() string { return string(e) }

const (
	ErrNotFound = AppError("NOT_FOUND")
	// ErrStale is returned by conditional updates when the record changed
	// between the read and the write.
	ErrStale = AppError("STALE")
)
