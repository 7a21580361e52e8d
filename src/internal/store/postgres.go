package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/appcraft/showcase-service/src/internal/model"

	"go.uber.org/zap"
)

// Repository is the persistence contract consumed by the services.
type Repository interface {
	CreateSubmission(ctx context.Context, s model.Submission) error
	GetSubmission(ctx context.Context, id string) (model.Submission, error)
	UpdateSubmissionDetails(ctx context.Context, s model.Submission) error
	DeleteSubmission(ctx context.Context, id string) error
	TransitionSubmission(ctx context.Context, t SubmissionTransition) error
	FindSubmissionsToReview(ctx context.Context, reviewerID string, expiredBefore time.Time) ([]model.Submission, error)
	ListApproved(ctx context.Context, category model.Category, language string) ([]model.Submission, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Submission, error)
	ListAll(ctx context.Context) ([]model.Submission, error)
	CountSubmissions(ctx context.Context) (int, error)
	FindRefreshBatch(ctx context.Context, limit int) ([]model.Submission, error)
	SaveRefreshResult(ctx context.Context, r RefreshResult) error
	UpsertUser(ctx context.Context, u model.User) (model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (model.User, error)
}

// SubmissionTransition is an atomic conditional update of a submission's
// review state. The Observed* fields must hold the values read immediately
// before deciding the transition; the write only applies while they are
// still current, otherwise model.ErrStale is returned.
type SubmissionTransition struct {
	ID                string
	ObservedStatus    model.Status
	ObservedReviewer  *string
	ObservedStartedOn *time.Time

	NewStatus    model.Status
	NewReviewer  *string
	NewStartedOn *time.Time
}

// RefreshResult carries the outcome of one refresh-job item. Nil fields
// leave the stored value untouched; FetchedOn is always written so the
// round-robin cursor advances even for failed items.
type RefreshResult struct {
	ID               string
	NumberOfStars    *int
	RepositoryStatus *model.RepositoryStatus
	GitHubData       []byte
	FetchedOn        time.Time
}

type Repositories struct {
	DB  *sql.DB
	Log *zap.Logger
}

func NewRepositories(db *sql.DB, logger *zap.Logger) *Repositories {
	return &Repositories{DB: db, Log: logger}
}
