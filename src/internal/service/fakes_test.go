package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/appcraft/showcase-service/src/internal/github"
	"github.com/appcraft/showcase-service/src/internal/model"
	"github.com/appcraft/showcase-service/src/internal/store"
)

// fakeRepo is an in-memory store.Repository with the same conditional-write
// semantics as the Postgres implementation. Used by the workflow and
// refresh tests, which exercise sequences of operations against one state.
type fakeRepo struct {
	mu          sync.Mutex
	submissions map[string]model.Submission
	users       map[string]model.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		submissions: make(map[string]model.Submission),
		users:       make(map[string]model.User),
	}
}

func (f *fakeRepo) addUser(u model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeRepo) CreateSubmission(ctx context.Context, s model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions[s.ID] = s
	return nil
}

func (f *fakeRepo) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[id]
	if !ok {
		return model.Submission{}, model.ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) UpdateSubmissionDetails(ctx context.Context, s model.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.submissions[s.ID]
	if !ok {
		return model.ErrNotFound
	}
	current.Category = s.Category
	current.FrontendEnvironment = s.FrontendEnvironment
	current.Language = s.Language
	current.Libraries = s.Libraries
	f.submissions[s.ID] = current
	return nil
}

func (f *fakeRepo) DeleteSubmission(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.submissions[id]; !ok {
		return model.ErrNotFound
	}
	delete(f.submissions, id)
	return nil
}

func (f *fakeRepo) TransitionSubmission(ctx context.Context, t store.SubmissionTransition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[t.ID]
	if !ok {
		return model.ErrNotFound
	}
	if s.Status != t.ObservedStatus ||
		!equalStringPtr(s.ReviewerID, t.ObservedReviewer) ||
		!equalTimePtr(s.ReviewStartedOn, t.ObservedStartedOn) {
		return model.ErrStale
	}
	s.Status = t.NewStatus
	s.ReviewerID = t.NewReviewer
	s.ReviewStartedOn = t.NewStartedOn
	f.submissions[t.ID] = s
	return nil
}

func (f *fakeRepo) FindSubmissionsToReview(ctx context.Context, reviewerID string, expiredBefore time.Time) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Submission
	for _, s := range f.submissions {
		switch {
		case s.Status == model.StatusPending:
			out = append(out, s)
		case s.Status == model.StatusReviewing && s.ReviewerID != nil && *s.ReviewerID == reviewerID:
			out = append(out, s)
		case s.Status == model.StatusReviewing && s.ReviewStartedOn != nil && !s.ReviewStartedOn.After(expiredBefore):
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) ListApproved(ctx context.Context, category model.Category, language string) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Submission
	for _, s := range f.submissions {
		if s.Status == model.StatusApproved && s.Category == category {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NumberOfStars > out[j].NumberOfStars })
	return out, nil
}

func (f *fakeRepo) ListByOwner(ctx context.Context, ownerID string) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Submission
	for _, s := range f.submissions {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) ListAll(ctx context.Context) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Submission
	for _, s := range f.submissions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) CountSubmissions(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submissions), nil
}

func (f *fakeRepo) FindRefreshBatch(ctx context.Context, limit int) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Submission, 0, len(f.submissions))
	for _, s := range f.submissions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].GitHubDataFetchedOn, out[j].GitHubDataFetchedOn
		switch {
		case a == nil && b == nil:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) SaveRefreshResult(ctx context.Context, r store.RefreshResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[r.ID]
	if !ok {
		return model.ErrNotFound
	}
	if r.NumberOfStars != nil {
		s.NumberOfStars = *r.NumberOfStars
	}
	if r.RepositoryStatus != nil {
		s.RepositoryStatus = *r.RepositoryStatus
	}
	if len(r.GitHubData) > 0 {
		s.GitHubData = r.GitHubData
	}
	t := r.FetchedOn
	s.GitHubDataFetchedOn = &t
	f.submissions[r.ID] = s
	return nil
}

func (f *fakeRepo) UpsertUser(ctx context.Context, u model.User) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.GitHubID == u.GitHubID {
			existing.Username = u.Username
			existing.Email = u.Email
			existing.AvatarURL = u.AvatarURL
			f.users[existing.ID] = existing
			return existing, nil
		}
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) GetUser(ctx context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) GetUserByGitHubID(ctx context.Context, githubID int64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.GitHubID == githubID {
			return u, nil
		}
	}
	return model.User{}, model.ErrNotFound
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// stubProvider answers metadata calls from a configurable function.
type stubProvider struct {
	fetch       func(owner, name string) (github.Metadata, error)
	contributor func(owner, name string, githubID int64) (bool, error)
}

func (s *stubProvider) FetchRepository(ctx context.Context, owner, name string) (github.Metadata, error) {
	return s.fetch(owner, name)
}

func (s *stubProvider) IsContributor(ctx context.Context, owner, name string, githubID int64) (bool, error) {
	if s.contributor == nil {
		return false, nil
	}
	return s.contributor(owner, name, githubID)
}

// recordingNotifier captures notification events on channels so tests can
// wait for the asynchronous delivery.
type recordingNotifier struct {
	received chan model.Submission
	approved chan model.Submission
	err      error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		received: make(chan model.Submission, 8),
		approved: make(chan model.Submission, 8),
	}
}

func (n *recordingNotifier) SubmissionReceived(s model.Submission) error {
	n.received <- s
	return n.err
}

func (n *recordingNotifier) SubmissionApproved(s model.Submission, owner model.User) error {
	n.approved <- s
	return n.err
}
