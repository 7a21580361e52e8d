package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/appcraft/showcase-service/src/internal/api/apiErrors"
	"github.com/appcraft/showcase-service/src/internal/github"
	"github.com/appcraft/showcase-service/src/internal/mailer"
	"github.com/appcraft/showcase-service/src/internal/model"
	"github.com/appcraft/showcase-service/src/internal/store"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

// ReviewLockTimeout is how long one administrator holds a submission in
// reviewing before the lock can be taken over by another. The timeout is
// advisory: it is enforced on the next claim, not by background eviction.
const ReviewLockTimeout = 5 * time.Minute

const (
	maxRepositoryURLLength = 500
	maxLanguageLength      = 100
	maxLibraries           = 5
	maxLibraryLength       = 50
)

var repositoryURLPattern = regexp.MustCompile(`^https://github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)`)

type SubmissionService struct {
	repo     store.Repository
	github   github.Provider
	notifier mailer.Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewSubmissionService(repo store.Repository, provider github.Provider, notifier mailer.Notifier, logger *zap.Logger) *SubmissionService {
	return &SubmissionService{
		repo:     repo,
		github:   provider,
		notifier: notifier,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput are the caller-supplied attributes of a new submission.
type SubmissionInput struct {
	RepositoryURL       string   `json:"repository_url"`
	Category            string   `json:"category"`
	FrontendEnvironment string   `json:"frontend_environment"`
	Language            string   `json:"language"`
	Libraries           []string `json:"libraries"`
}

// Submit validates and creates a new submission in the pending state.
// Validation runs before any provider call; the provider is consulted for
// repository health, star count, and the contributor guard.
func (s *SubmissionService) Submit(ctx context.Context, p model.Principal, in SubmissionInput) (model.Submission, error) {
	if !p.Authenticated() {
		return model.Submission{}, apiErrors.APIError{Code: apiErrors.Unauthorized, Message: "You must be signed in to submit an implementation."}
	}

	normalizeInput(&in)

	if err := validateInput(in); err != nil {
		return model.Submission{}, err
	}

	owner, name, err := parseRepositoryURL(in.RepositoryURL)
	if err != nil {
		return model.Submission{}, err
	}

	meta, err := s.github.FetchRepository(ctx, owner, name)
	if err != nil {
		if errors.Is(err, github.ErrRepositoryNotFound) {
			return model.Submission{}, apiErrors.APIError{Code: apiErrors.RepositoryNotFound, Message: "The specified repository doesn't exist."}
		}
		s.log.Error("Submit: repository fetch failed", zap.String("repository", owner+"/"+name), zap.Error(err))
		return model.Submission{}, err
	}
	if meta.Archived {
		return model.Submission{}, apiErrors.APIError{Code: apiErrors.RepositoryArchived, Message: "Sorry, archived repositories cannot be submitted."}
	}
	if !meta.HasIssues {
		return model.Submission{}, apiErrors.APIError{Code: apiErrors.IssuesDisabled, Message: "Sorry, the repository must have issue tracking enabled."}
	}

	if !p.IsAdmin && meta.OwnerID != p.GitHubID {
		contributor, err := s.github.IsContributor(ctx, owner, name, p.GitHubID)
		if err != nil {
			s.log.Error("Submit: contributor check failed", zap.String("repository", owner+"/"+name), zap.Error(err))
			return model.Submission{}, err
		}
		if !contributor {
			return model.Submission{}, apiErrors.APIError{Code: apiErrors.NotAContributor, Message: "Sorry, you must be a contributor of the specified repository."}
		}
	}

	now := s.now()
	submission := model.Submission{
		ID:                  xid.New().String(),
		RepositoryURL:       in.RepositoryURL,
		OwnerID:             p.UserID,
		Category:            model.Category(in.Category),
		FrontendEnvironment: model.FrontendEnvironment(in.FrontendEnvironment),
		Language:            in.Language,
		Libraries:           in.Libraries,
		Status:              model.StatusPending,
		NumberOfStars:       meta.NumberOfStars,
		RepositoryStatus:    model.RepositoryAvailable,
		GitHubData:          meta.Data,
		GitHubDataFetchedOn: &now,
		CreatedAt:           now,
	}

	if err := s.repo.CreateSubmission(ctx, submission); err != nil {
		return model.Submission{}, err
	}

	s.notifyAsync("submission received", func() error {
		return s.notifier.SubmissionReceived(submission)
	})

	s.log.Info("Submit: success", zap.String("submission_id", submission.ID), zap.String("owner", p.UserID))
	return submission, nil
}

// FindSubmissionsToReview returns the administrator's work queue, ordered
// by creation time: pending submissions, reviewing submissions the caller
// holds, and reviewing submissions whose lock has expired.
func (s *SubmissionService) FindSubmissionsToReview(ctx context.Context, p model.Principal) ([]model.Submission, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.repo.FindSubmissionsToReview(ctx, p.UserID, s.now().Add(-ReviewLockTimeout))
}

// ClaimForReview moves a submission into reviewing on behalf of the caller.
// A pending submission is always claimable; a reviewing one only by its
// current holder (refreshing the lock) or by anyone after the lock timed
// out. The transition is a conditional write: losing a race with another
// administrator surfaces as REVIEW_LOCKED.
func (s *SubmissionService) ClaimForReview(ctx context.Context, p model.Principal, id string) (model.Submission, error) {
	if err := requireAdmin(p); err != nil {
		return model.Submission{}, err
	}

	submission, err := s.getSubmission(ctx, id)
	if err != nil {
		return model.Submission{}, err
	}

	switch submission.Status {
	case model.StatusPending:
		// claimable
	case model.StatusReviewing:
		holder := submission.ReviewerID != nil && *submission.ReviewerID == p.UserID
		expired := submission.ReviewStartedOn != nil &&
			s.now().Sub(*submission.ReviewStartedOn) >= ReviewLockTimeout
		if !holder && !expired {
			return model.Submission{}, apiErrors.APIError{Code: apiErrors.ReviewLocked, Message: "This submission is currently being reviewed by someone else."}
		}
	default:
		return model.Submission{}, apiErrors.APIError{Code: apiErrors.AlreadyReviewed, Message: "This submission has already been reviewed."}
	}

	now := s.now()
	reviewer := p.UserID
	err = s.repo.TransitionSubmission(ctx, store.SubmissionTransition{
		ID:                id,
		ObservedStatus:    submission.Status,
		ObservedReviewer:  submission.ReviewerID,
		ObservedStartedOn: submission.ReviewStartedOn,
		NewStatus:         model.StatusReviewing,
		NewReviewer:       &reviewer,
		NewStartedOn:      &now,
	})
	if err != nil {
		if errors.Is(err, model.ErrStale) {
			return model.Submission{}, apiErrors.APIError{Code: apiErrors.ReviewLocked, Message: "This submission is currently being reviewed by someone else."}
		}
		if errors.Is(err, model.ErrNotFound) {
			return model.Submission{}, apiErrors.APIError{Code: apiErrors.NotFound, Message: "Submission not found."}
		}
		return model.Submission{}, err
	}

	submission.Status = model.StatusReviewing
	submission.ReviewerID = &reviewer
	submission.ReviewStartedOn = &now
	return submission, nil
}

// Approve resolves a reviewing submission to approved. Only the lock
// holder may resolve; the owner is notified best-effort.
func (s *SubmissionService) Approve(ctx context.Context, p model.Principal, id string) (model.Submission, error) {
	submission, err := s.resolveReview(ctx, p, id, model.StatusApproved)
	if err != nil {
		return model.Submission{}, err
	}

	owner, err := s.repo.GetUser(ctx, submission.OwnerID)
	if err != nil {
		s.log.Warn("Approve: owner lookup for notification failed", zap.String("submission_id", id), zap.Error(err))
		return submission, nil
	}
	s.notifyAsync("submission approved", func() error {
		return s.notifier.SubmissionApproved(submission, owner)
	})

	return submission, nil
}

// Reject resolves a reviewing submission to rejected.
func (s *SubmissionService) Reject(ctx context.Context, p model.Principal, id string) (model.Submission, error) {
	return s.resolveReview(ctx, p, id, model.StatusRejected)
}

// CancelReview releases the caller's review lock, returning the submission
// to pending.
func (s *SubmissionService) CancelReview(ctx context.Context, p model.Principal, id string) (model.Submission, error) {
	return s.resolveReview(ctx, p, id, model.StatusPending)
}

func (s *SubmissionService) resolveReview(ctx context.Context, p model.Principal, id string, to model.Status) (model.Submission, error) {
	if err := requireAdmin(p); err != nil {
		return model.Submission{}, err
	}

	submission, err := s.getSubmission(ctx, id)
	if err != nil {
		return model.Submission{}, err
	}

	if submission.Status.Resolved() {
		return model.Submission{}, apiErrors.APIError{Code: apiErrors.AlreadyReviewed, Message: "This submission has already been reviewed."}
	}
	if submission.Status != model.StatusReviewing || submission.ReviewerID == nil || *submission.ReviewerID != p.UserID {
		return model.Submission{}, apiErrors.APIError{Code: apiErrors.NotAuthorizedReviewer, Message: "You are not the reviewer of this submission."}
	}

	err = s.repo.TransitionSubmission(ctx, store.SubmissionTransition{
		ID:                id,
		ObservedStatus:    submission.Status,
		ObservedReviewer:  submission.ReviewerID,
		ObservedStartedOn: submission.ReviewStartedOn,
		NewStatus:         to,
	})
	if err != nil {
		if errors.Is(err, model.ErrStale) {
			return model.Submission{}, apiErrors.APIError{Code: apiErrors.NotAuthorizedReviewer, Message: "You are not the reviewer of this submission."}
		}
		if errors.Is(err, model.ErrNotFound) {
			return model.Submission{}, apiErrors.APIError{Code: apiErrors.NotFound, Message: "Submission not found."}
		}
		return model.Submission{}, err
	}

	submission.Status = to
	submission.ReviewerID = nil
	submission.ReviewStartedOn = nil

	s.log.Info("resolveReview: success", zap.String("submission_id", id), zap.String("status", string(to)))
	return submission, nil
}

// ListApproved returns the public directory: approved submissions of one
// category, optionally narrowed by language, most-starred first.
func (s *SubmissionService) ListApproved(ctx context.Context, category, language string) ([]model.Submission, error) {
	c := model.Category(category)
	if !c.Valid() {
		return nil, apiErrors.APIError{Code: apiErrors.ValidationError, Message: "Unknown category."}
	}
	return s.repo.ListApproved(ctx, c, strings.TrimSpace(language))
}

// ListOwn returns the caller's submissions, newest first, including their
// review status.
func (s *SubmissionService) ListOwn(ctx context.Context, p model.Principal) ([]model.Submission, error) {
	if !p.Authenticated() {
		return nil, apiErrors.APIError{Code: apiErrors.Unauthorized, Message: "You must be signed in."}
	}
	return s.repo.ListByOwner(ctx, p.UserID)
}

// ListAll returns every submission, for the administrator listing.
func (s *SubmissionService) ListAll(ctx context.Context, p model.Principal) ([]model.Submission, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return s.repo.ListAll(ctx)
}

// Get returns one submission if the caller may see it: approved entries are
// public, everything else is visible to the owner and administrators.
func (s *SubmissionService) Get(ctx context.Context, p model.Principal, id string) (model.Submission, error) {
	submission, err := s.getSubmission(ctx, id)
	if err != nil {
		return model.Submission{}, err
	}
	if submission.Status != model.StatusApproved && !p.Owns(submission) && !p.IsAdmin {
		return model.Submission{}, apiErrors.APIError{Code: apiErrors.NotFound, Message: "Submission not found."}
	}
	return submission, nil
}

// UpdateDetails edits the mutable attributes of a submission. The
// repository URL and the review state are not editable. Owner or admin
// only.
func (s *SubmissionService) UpdateDetails(ctx context.Context, p model.Principal, id string, in SubmissionInput) (model.Submission, error) {
	submission, err := s.getSubmission(ctx, id)
	if err != nil {
		return model.Submission{}, err
	}
	if !p.Owns(submission) && !p.IsAdmin {
		return model.Submission{}, apiErrors.APIError{Code: apiErrors.Forbidden, Message: "You cannot edit this submission."}
	}

	in.RepositoryURL = submission.RepositoryURL // immutable after creation
	normalizeInput(&in)
	if err := validateInput(in); err != nil {
		return model.Submission{}, err
	}

	submission.Category = model.Category(in.Category)
	submission.FrontendEnvironment = model.FrontendEnvironment(in.FrontendEnvironment)
	submission.Language = in.Language
	submission.Libraries = in.Libraries

	if err := s.repo.UpdateSubmissionDetails(ctx, submission); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Submission{}, apiErrors.APIError{Code: apiErrors.NotFound, Message: "Submission not found."}
		}
		return model.Submission{}, err
	}
	return submission, nil
}

// Delete removes a submission. Owner or admin only.
func (s *SubmissionService) Delete(ctx context.Context, p model.Principal, id string) error {
	submission, err := s.getSubmission(ctx, id)
	if err != nil {
		return err
	}
	if !p.Owns(submission) && !p.IsAdmin {
		return apiErrors.APIError{Code: apiErrors.Forbidden, Message: "You cannot delete this submission."}
	}

	if err := s.repo.DeleteSubmission(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return apiErrors.APIError{Code: apiErrors.NotFound, Message: "Submission not found."}
		}
		return err
	}
	return nil
}

func (s *SubmissionService) getSubmission(ctx context.Context, id string) (model.Submission, error) {
	submission, err := s.repo.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Submission{}, apiErrors.APIError{Code: apiErrors.NotFound, Message: "Submission not found."}
		}
		return model.Submission{}, err
	}
	return submission, nil
}

// notifyAsync runs a notification outside the request path. The transition
// already succeeded; a delivery failure is logged and goes no further.
func (s *SubmissionService) notifyAsync(what string, send func() error) {
	go func() {
		if err := send(); err != nil {
			s.log.Warn("notification failed", zap.String("event", what), zap.Error(err))
		}
	}()
}

func requireAdmin(p model.Principal) error {
	if !p.Authenticated() {
		return apiErrors.APIError{Code: apiErrors.Unauthorized, Message: "You must be signed in."}
	}
	if !p.IsAdmin {
		return apiErrors.APIError{Code: apiErrors.Forbidden, Message: "Administrator access required."}
	}
	return nil
}

func normalizeInput(in *SubmissionInput) {
	in.RepositoryURL = strings.TrimSpace(in.RepositoryURL)
	in.Category = strings.TrimSpace(in.Category)
	in.FrontendEnvironment = strings.TrimSpace(in.FrontendEnvironment)
	in.Language = strings.TrimSpace(in.Language)

	libraries := make([]string, 0, len(in.Libraries))
	for _, library := range in.Libraries {
		if trimmed := strings.TrimSpace(library); trimmed != "" {
			libraries = append(libraries, trimmed)
		}
	}
	in.Libraries = libraries

	// A frontend environment only makes sense when the category has a
	// frontend.
	if !model.Category(in.Category).HasFrontend() {
		in.FrontendEnvironment = ""
	}
}

func validateInput(in SubmissionInput) error {
	validation := func(message string) error {
		return apiErrors.APIError{Code: apiErrors.ValidationError, Message: message}
	}

	if in.RepositoryURL == "" || len(in.RepositoryURL) > maxRepositoryURLLength {
		return validation("The repository URL is required and must be at most 500 characters.")
	}
	if !strings.HasPrefix(in.RepositoryURL, "https://github.com/") {
		return validation("Sorry, only GitHub repositories are supported.")
	}
	if !model.Category(in.Category).Valid() {
		return validation("Unknown category.")
	}
	if in.FrontendEnvironment != "" && !model.FrontendEnvironment(in.FrontendEnvironment).Valid() {
		return validation("Unknown frontend environment.")
	}
	if in.Language == "" || len(in.Language) > maxLanguageLength {
		return validation("The language is required and must be at most 100 characters.")
	}
	if len(in.Libraries) == 0 {
		return validation("You must specify at least one library or framework.")
	}
	if len(in.Libraries) > maxLibraries {
		return validation(fmt.Sprintf("You can specify at most %d libraries.", maxLibraries))
	}
	for _, library := range in.Libraries {
		if len(library) > maxLibraryLength {
			return validation("Each library name must be at most 50 characters.")
		}
	}
	return nil
}

// parseRepositoryURL extracts the owner/name pair from a repository URL.
func parseRepositoryURL(url string) (owner, name string, err error) {
	matches := repositoryURLPattern.FindStringSubmatch(url)
	if matches == nil {
		return "", "", apiErrors.APIError{Code: apiErrors.ValidationError, Message: "The specified repository URL is invalid."}
	}
	return matches[1], matches[2], nil
}
