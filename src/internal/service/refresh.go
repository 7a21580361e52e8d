package service

import (
	"context"
	"errors"
	"time"

	"github.com/appcraft/showcase-service/src/internal/github"
	"github.com/appcraft/showcase-service/src/internal/model"
	"github.com/appcraft/showcase-service/src/internal/store"

	"go.uber.org/zap"
)

// refreshSlicesPerDay is how many refresh invocations cover the full
// submission set. With an external scheduler firing hourly, every
// submission is refreshed about once per day.
const refreshSlicesPerDay = 24

// RefreshReport summarizes one refresh invocation.
type RefreshReport struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// RefreshService keeps star counts and repository health fresh without
// overwhelming the provider. Each run processes one daily slice of the
// submissions, oldest-refreshed first.
type RefreshService struct {
	repo   store.Repository
	github github.Provider
	log    *zap.Logger
	now    func() time.Time
}

func NewRefreshService(repo store.Repository, provider github.Provider, logger *zap.Logger) *RefreshService {
	return &RefreshService{
		repo:   repo,
		github: provider,
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one slice: ceil(total/24) submissions in
// github_data_fetched_on order. A failing item is logged and skipped; it
// never aborts the rest of the batch.
func (s *RefreshService) Run(ctx context.Context) (RefreshReport, error) {
	total, err := s.repo.CountSubmissions(ctx)
	if err != nil {
		return RefreshReport{}, err
	}
	if total == 0 {
		return RefreshReport{}, nil
	}

	limit := (total + refreshSlicesPerDay - 1) / refreshSlicesPerDay

	batch, err := s.repo.FindRefreshBatch(ctx, limit)
	if err != nil {
		return RefreshReport{}, err
	}

	report := RefreshReport{Total: total}
	for _, submission := range batch {
		report.Processed++
		if s.refreshOne(ctx, submission) {
			report.Updated++
		} else {
			report.Failed++
		}
	}

	s.log.Info("refresh slice completed",
		zap.Int("total", report.Total),
		zap.Int("processed", report.Processed),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed))
	return report, nil
}

// refreshOne fetches fresh metadata for a single submission and persists
// the outcome. The fetch timestamp is always advanced, success or not, so
// broken entries keep their place in the round-robin instead of being
// retried ahead of everything else.
func (s *RefreshService) refreshOne(ctx context.Context, submission model.Submission) bool {
	result := store.RefreshResult{
		ID:        submission.ID,
		FetchedOn: s.now(),
	}
	updated := false

	owner, name, err := parseRepositoryURL(submission.RepositoryURL)
	if err != nil {
		s.log.Warn("refresh: unparsable repository URL",
			zap.String("submission_id", submission.ID),
			zap.String("url", submission.RepositoryURL))
	} else {
		meta, err := s.github.FetchRepository(ctx, owner, name)
		switch {
		case errors.Is(err, github.ErrRepositoryNotFound):
			status := model.RepositoryMissing
			result.RepositoryStatus = &status
			updated = true
		case err != nil:
			s.log.Warn("refresh: metadata fetch failed",
				zap.String("submission_id", submission.ID),
				zap.String("repository", owner+"/"+name),
				zap.Error(err))
		default:
			status := model.RepositoryAvailable
			if meta.Archived {
				status = model.RepositoryArchived
			} else if !meta.HasIssues {
				status = model.RepositoryIssuesDisabled
			}
			result.NumberOfStars = &meta.NumberOfStars
			result.RepositoryStatus = &status
			result.GitHubData = meta.Data
			updated = true
		}
	}

	if err := s.repo.SaveRefreshResult(ctx, result); err != nil {
		s.log.Error("refresh: persist failed", zap.String("submission_id", submission.ID), zap.Error(err))
		return false
	}
	return updated
}
