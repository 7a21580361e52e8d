package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/appcraft/showcase-service/src/internal/model"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const submissionColumns = `id, repository_url, owner_id, category, frontend_environment, language,
	libraries, status, reviewer_id, review_started_on, number_of_stars, repository_status,
	github_data, github_data_fetched_on, created_at`

func (r *Repositories) CreateSubmission(ctx context.Context, s model.Submission) error {
	r.Log.Debug("CreateSubmission: start", zap.String("submission_id", s.ID), zap.String("owner", s.OwnerID))

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO submissions(
			id, repository_url, owner_id, category, frontend_environment, language,
			libraries, status, number_of_stars, repository_status,
			github_data, github_data_fetched_on, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		s.ID, s.RepositoryURL, s.OwnerID, s.Category, nullString(string(s.FrontendEnvironment)), s.Language,
		pq.Array(s.Libraries), s.Status, s.NumberOfStars, s.RepositoryStatus,
		nullBytes(s.GitHubData), s.GitHubDataFetchedOn, s.CreatedAt)
	if err != nil {
		r.Log.Error("CreateSubmission: insert failed", zap.String("submission_id", s.ID), zap.Error(err))
		return err
	}

	r.Log.Info("CreateSubmission: success", zap.String("submission_id", s.ID))
	return nil
}

func (r *Repositories) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	r.Log.Debug("GetSubmission: start", zap.String("submission_id", id))

	row := r.DB.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id=$1`, id)
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.Log.Debug("GetSubmission: not found", zap.String("submission_id", id))
			return model.Submission{}, model.ErrNotFound
		}
		r.Log.Error("GetSubmission: query failed", zap.String("submission_id", id), zap.Error(err))
		return model.Submission{}, err
	}
	return s, nil
}

// UpdateSubmissionDetails writes the owner-editable fields. Repository URL
// and review state are never touched here.
func (r *Repositories) UpdateSubmissionDetails(ctx context.Context, s model.Submission) error {
	r.Log.Debug("UpdateSubmissionDetails: start", zap.String("submission_id", s.ID))

	res, err := r.DB.ExecContext(ctx, `
		UPDATE submissions
		SET category=$2, frontend_environment=$3, language=$4, libraries=$5
		WHERE id=$1`,
		s.ID, s.Category, nullString(string(s.FrontendEnvironment)), s.Language, pq.Array(s.Libraries))
	if err != nil {
		r.Log.Error("UpdateSubmissionDetails: update failed", zap.String("submission_id", s.ID), zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}

	r.Log.Info("UpdateSubmissionDetails: success", zap.String("submission_id", s.ID))
	return nil
}

func (r *Repositories) DeleteSubmission(ctx context.Context, id string) error {
	r.Log.Debug("DeleteSubmission: start", zap.String("submission_id", id))

	res, err := r.DB.ExecContext(ctx, `DELETE FROM submissions WHERE id=$1`, id)
	if err != nil {
		r.Log.Error("DeleteSubmission: delete failed", zap.String("submission_id", id), zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}

	r.Log.Info("DeleteSubmission: success", zap.String("submission_id", id))
	return nil
}

// TransitionSubmission applies a review-state transition as a single
// conditional update. Zero rows affected means the record either changed
// since it was read (model.ErrStale) or no longer exists (model.ErrNotFound).
func (r *Repositories) TransitionSubmission(ctx context.Context, t SubmissionTransition) error {
	r.Log.Debug("TransitionSubmission: start",
		zap.String("submission_id", t.ID),
		zap.String("from", string(t.ObservedStatus)),
		zap.String("to", string(t.NewStatus)))

	res, err := r.DB.ExecContext(ctx, `
		UPDATE submissions
		SET status=$2, reviewer_id=$3, review_started_on=$4
		WHERE id=$1
		  AND status=$5
		  AND reviewer_id IS NOT DISTINCT FROM $6
		  AND review_started_on IS NOT DISTINCT FROM $7`,
		t.ID, t.NewStatus, t.NewReviewer, t.NewStartedOn,
		t.ObservedStatus, t.ObservedReviewer, t.ObservedStartedOn)
	if err != nil {
		r.Log.Error("TransitionSubmission: update failed", zap.String("submission_id", t.ID), zap.Error(err))
		return err
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := r.DB.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM submissions WHERE id=$1)`, t.ID).Scan(&exists); err != nil {
			r.Log.Error("TransitionSubmission: existence check failed", zap.String("submission_id", t.ID), zap.Error(err))
			return err
		}
		if !exists {
			return model.ErrNotFound
		}
		r.Log.Debug("TransitionSubmission: stale", zap.String("submission_id", t.ID))
		return model.ErrStale
	}

	r.Log.Info("TransitionSubmission: success",
		zap.String("submission_id", t.ID),
		zap.String("to", string(t.NewStatus)))
	return nil
}

// FindSubmissionsToReview returns the review queue for one administrator:
// everything pending, plus reviewing items they hold themselves, plus
// reviewing items whose lock has expired.
func (r *Repositories) FindSubmissionsToReview(ctx context.Context, reviewerID string, expiredBefore time.Time) ([]model.Submission, error) {
	r.Log.Debug("FindSubmissionsToReview: start", zap.String("reviewer", reviewerID))

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE status='pending'
		   OR (status='reviewing' AND (reviewer_id=$1 OR review_started_on<=$2))
		ORDER BY created_at ASC`,
		reviewerID, expiredBefore)
	if err != nil {
		r.Log.Error("FindSubmissionsToReview: query failed", zap.Error(err))
		return nil, err
	}
	return r.collectSubmissions(rows, "FindSubmissionsToReview")
}

func (r *Repositories) ListApproved(ctx context.Context, category model.Category, language string) ([]model.Submission, error) {
	r.Log.Debug("ListApproved: start", zap.String("category", string(category)), zap.String("language", language))

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE status='approved'
		  AND category=$1
		  AND ($2='' OR lower(language)=lower($2))
		ORDER BY number_of_stars DESC, created_at ASC`,
		category, language)
	if err != nil {
		r.Log.Error("ListApproved: query failed", zap.Error(err))
		return nil, err
	}
	return r.collectSubmissions(rows, "ListApproved")
}

func (r *Repositories) ListByOwner(ctx context.Context, ownerID string) ([]model.Submission, error) {
	r.Log.Debug("ListByOwner: start", zap.String("owner", ownerID))

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		r.Log.Error("ListByOwner: query failed", zap.Error(err))
		return nil, err
	}
	return r.collectSubmissions(rows, "ListByOwner")
}

func (r *Repositories) ListAll(ctx context.Context) ([]model.Submission, error) {
	r.Log.Debug("ListAll: start")

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions ORDER BY created_at DESC`)
	if err != nil {
		r.Log.Error("ListAll: query failed", zap.Error(err))
		return nil, err
	}
	return r.collectSubmissions(rows, "ListAll")
}

func (r *Repositories) CountSubmissions(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM submissions`).Scan(&n); err != nil {
		r.Log.Error("CountSubmissions: query failed", zap.Error(err))
		return 0, err
	}
	return n, nil
}

// FindRefreshBatch returns the submissions whose metadata is the most
// stale, never-fetched entries first.
func (r *Repositories) FindRefreshBatch(ctx context.Context, limit int) ([]model.Submission, error) {
	r.Log.Debug("FindRefreshBatch: start", zap.Int("limit", limit))

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		ORDER BY github_data_fetched_on ASC NULLS FIRST, created_at ASC
		LIMIT $1`,
		limit)
	if err != nil {
		r.Log.Error("FindRefreshBatch: query failed", zap.Error(err))
		return nil, err
	}
	return r.collectSubmissions(rows, "FindRefreshBatch")
}

func (r *Repositories) SaveRefreshResult(ctx context.Context, res RefreshResult) error {
	r.Log.Debug("SaveRefreshResult: start", zap.String("submission_id", res.ID))

	_, err := r.DB.ExecContext(ctx, `
		UPDATE submissions
		SET number_of_stars=COALESCE($2, number_of_stars),
		    repository_status=COALESCE($3, repository_status),
		    github_data=COALESCE($4, github_data),
		    github_data_fetched_on=$5
		WHERE id=$1`,
		res.ID, res.NumberOfStars, (*string)(res.RepositoryStatus), nullBytes(res.GitHubData), res.FetchedOn)
	if err != nil {
		r.Log.Error("SaveRefreshResult: update failed", zap.String("submission_id", res.ID), zap.Error(err))
		return err
	}

	r.Log.Debug("SaveRefreshResult: success", zap.String("submission_id", res.ID))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (model.Submission, error) {
	var (
		s           model.Submission
		environment sql.NullString
		reviewer    sql.NullString
		startedOn   sql.NullTime
		githubData  []byte
		fetchedOn   sql.NullTime
		libraries   pq.StringArray
	)

	err := row.Scan(&s.ID, &s.RepositoryURL, &s.OwnerID, &s.Category, &environment, &s.Language,
		&libraries, &s.Status, &reviewer, &startedOn, &s.NumberOfStars, &s.RepositoryStatus,
		&githubData, &fetchedOn, &s.CreatedAt)
	if err != nil {
		return model.Submission{}, err
	}

	s.Libraries = []string(libraries)
	if environment.Valid {
		s.FrontendEnvironment = model.FrontendEnvironment(environment.String)
	}
	if reviewer.Valid {
		v := reviewer.String
		s.ReviewerID = &v
	}
	if startedOn.Valid {
		t := startedOn.Time
		s.ReviewStartedOn = &t
	}
	if len(githubData) > 0 {
		s.GitHubData = githubData
	}
	if fetchedOn.Valid {
		t := fetchedOn.Time
		s.GitHubDataFetchedOn = &t
	}
	return s, nil
}

func (r *Repositories) collectSubmissions(rows *sql.Rows, op string) ([]model.Submission, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			r.Log.Error(op+": close rows failed", zap.Error(err))
		}
	}()

	var out []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			r.Log.Error(op+": scan failed", zap.Error(err))
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		r.Log.Error(op+": rows failed", zap.Error(err))
		return nil, err
	}

	r.Log.Debug(op+": success", zap.Int("count", len(out)))
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
