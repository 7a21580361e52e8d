package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/appcraft/showcase-service/src/internal/api/apiErrors"
	"github.com/appcraft/showcase-service/src/internal/auth"
	"github.com/appcraft/showcase-service/src/internal/github"
	"github.com/appcraft/showcase-service/src/internal/mailer"
	"github.com/appcraft/showcase-service/src/internal/model"
	"github.com/appcraft/showcase-service/src/internal/service"
	"github.com/appcraft/showcase-service/src/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubRepo embeds the interface so each test overrides only the calls its
// route exercises; anything else panics loudly.
type stubRepo struct {
	store.Repository
	listApproved func(model.Category, string) ([]model.Submission, error)
	getUser      func(string) (model.User, error)
}

func (s *stubRepo) ListApproved(ctx context.Context, category model.Category, language string) ([]model.Submission, error) {
	return s.listApproved(category, language)
}

func (s *stubRepo) GetUser(ctx context.Context, id string) (model.User, error) {
	return s.getUser(id)
}

type stubGitHub struct{}

func (stubGitHub) FetchRepository(ctx context.Context, owner, name string) (github.Metadata, error) {
	return github.Metadata{NumberOfStars: 1, HasIssues: true}, nil
}

func (stubGitHub) IsContributor(ctx context.Context, owner, name string, githubID int64) (bool, error) {
	return false, nil
}

func newTestRouter(t *testing.T, repo store.Repository) *chi.Mux {
	t.Helper()
	logger := zap.NewNop()

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)
	oauth := auth.NewGitHubProvider("client-id", "client-secret", "http://localhost/auth/github/callback")

	submissions := service.NewSubmissionService(repo, stubGitHub{}, mailer.NopNotifier{Log: logger}, logger)
	users := service.NewUserService(repo, logger)
	refresh := service.NewRefreshService(repo, stubGitHub{}, logger)

	h := NewHandler(submissions, users, refresh, oauth, tokens, "http://localhost:3000", "", logger)

	r := chi.NewRouter()
	r.Use(auth.WithPrincipal(tokens, repo, logger))
	RegisterRoutes(r, h)
	return r
}

func approvedSubmission(id string, stars int) model.Submission {
	return model.Submission{
		ID:               id,
		RepositoryURL:    "https://github.com/acme/" + id,
		OwnerID:          "owner-1",
		Category:         model.CategoryBackend,
		Language:         "Go",
		Libraries:        []string{"chi"},
		Status:           model.StatusApproved,
		NumberOfStars:    stars,
		RepositoryStatus: model.RepositoryAvailable,
		CreatedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

func TestHealth(t *testing.T) {
	r := newTestRouter(t, &stubRepo{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListApproved_PublicView(t *testing.T) {
	repo := &stubRepo{
		listApproved: func(category model.Category, language string) ([]model.Submission, error) {
			assert.Equal(t, model.CategoryBackend, category)
			return []model.Submission{approvedSubmission("a", 10), approvedSubmission("b", 3)}, nil
		},
	}
	r := newTestRouter(t, repo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/implementations?category=backend", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Implementations []map[string]any `json:"implementations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Implementations, 2)
	for _, impl := range body.Implementations {
		assert.NotContains(t, impl, "status", "Anonymous callers must not see review state")
		assert.NotContains(t, impl, "owner_id")
		assert.Contains(t, impl, "number_of_stars")
	}
}

func TestListApproved_UnknownCategory(t *testing.T) {
	r := newTestRouter(t, &stubRepo{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/implementations?category=embedded", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}

func TestSubmit_Anonymous401(t *testing.T) {
	r := newTestRouter(t, &stubRepo{})

	req := httptest.NewRequest("POST", "/implementations",
		jsonBody(`{"repository_url":"https://github.com/acme/widgets","category":"backend","language":"Go","libraries":["chi"]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmit_SignedInSessionResolved(t *testing.T) {
	admin := model.User{ID: "u-admin", GitHubID: 7, IsAdmin: true}
	repo := &stubRepo{
		getUser: func(id string) (model.User, error) {
			if id == admin.ID {
				return admin, nil
			}
			return model.User{}, model.ErrNotFound
		},
	}
	r := newTestRouter(t, repo)

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)
	token, err := tokens.Generate(admin.ID)
	require.NoError(t, err)

	// Malformed body after a valid session: the request gets past the
	// auth layer and fails on decoding, not with 401.
	req := httptest.NewRequest("POST", "/implementations", jsonBody(`{broken`))
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSvcError_Mapping(t *testing.T) {
	cases := []struct {
		code apiErrors.ErrorCode
		want int
	}{
		{apiErrors.ValidationError, http.StatusBadRequest},
		{apiErrors.Unauthorized, http.StatusUnauthorized},
		{apiErrors.Forbidden, http.StatusForbidden},
		{apiErrors.NotAContributor, http.StatusForbidden},
		{apiErrors.NotFound, http.StatusNotFound},
		{apiErrors.RepositoryNotFound, http.StatusNotFound},
		{apiErrors.ReviewLocked, http.StatusConflict},
		{apiErrors.AlreadyReviewed, http.StatusConflict},
		{apiErrors.NotAuthorizedReviewer, http.StatusConflict},
		{apiErrors.RepositoryArchived, http.StatusConflict},
		{apiErrors.IssuesDisabled, http.StatusConflict},
		{apiErrors.InternalError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleSvcError(rec, apiErrors.APIError{Code: tc.code, Message: "boom"})
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestHandleSvcError_UnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	handleSvcError(rec, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error.Message, "Internal details must not leak")
}

func TestViewFor_RoleExposure(t *testing.T) {
	s := approvedSubmission("a", 10)
	reviewer := "admin-1"
	startedOn := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	s.ReviewerID = &reviewer
	s.ReviewStartedOn = &startedOn

	anonymous := model.Principal{}
	owner := model.Principal{UserID: s.OwnerID, GitHubID: 1}
	admin := model.Principal{UserID: "admin-1", GitHubID: 2, IsAdmin: true}

	assert.IsType(t, publicSubmissionView{}, viewFor(anonymous, s))
	assert.IsType(t, ownerSubmissionView{}, viewFor(owner, s))
	assert.IsType(t, adminSubmissionView{}, viewFor(admin, s))

	av := viewFor(admin, s).(adminSubmissionView)
	assert.Equal(t, s.OwnerID, av.OwnerID)
	assert.Equal(t, reviewer, *av.ReviewerID)
}
