package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/appcraft/showcase-service/src/internal/api/apiErrors"
	"github.com/appcraft/showcase-service/src/internal/auth"
	"github.com/appcraft/showcase-service/src/internal/model"
	"github.com/appcraft/showcase-service/src/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	submissions *service.SubmissionService
	users       *service.UserService
	refresh     *service.RefreshService

	oauth  *auth.GitHubProvider
	tokens *auth.TokenService

	frontendBaseURL string
	schedulerToken  string
	log             *zap.Logger
}

func NewHandler(
	submissions *service.SubmissionService,
	users *service.UserService,
	refresh *service.RefreshService,
	oauth *auth.GitHubProvider,
	tokens *auth.TokenService,
	frontendBaseURL string,
	schedulerToken string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		submissions:     submissions,
		users:           users,
		refresh:         refresh,
		oauth:           oauth,
		tokens:          tokens,
		frontendBaseURL: frontendBaseURL,
		schedulerToken:  schedulerToken,
		log:             logger,
	}
}

func RegisterRoutes(r *chi.Mux, h *Handler) {
	r.Get("/implementations", withTimeout(h.listApproved))
	r.Post("/implementations", withTimeout(h.submit))
	r.Get("/implementations/all", withTimeout(h.listAll))
	r.Get("/implementations/review", withTimeout(h.reviewQueue))
	r.Get("/implementations/{id}", withTimeout(h.get))
	r.Put("/implementations/{id}", withTimeout(h.update))
	r.Delete("/implementations/{id}", withTimeout(h.delete))
	r.Post("/implementations/{id}/claim", withTimeout(h.claim))
	r.Post("/implementations/{id}/approve", withTimeout(h.approve))
	r.Post("/implementations/{id}/reject", withTimeout(h.reject))
	r.Post("/implementations/{id}/cancel-review", withTimeout(h.cancelReview))

	r.Get("/user/implementations", withTimeout(h.listOwn))

	r.Get("/auth/github/login", h.githubLogin)
	r.Get("/auth/github/callback", withTimeout(h.githubCallback))
	r.Post("/auth/logout", h.logout)
	r.Get("/auth/me", withTimeout(h.me))

	// Invoked by the external scheduler, once an hour. One run walks about
	// 1/24th of the submissions, so the per-request timeout is generous.
	r.Post("/internal/refresh", h.runRefresh)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
}

func withTimeout(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

func (h *Handler) listApproved(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	category := r.URL.Query().Get("category")
	language := r.URL.Query().Get("language")

	submissions, err := h.submissions.ListApproved(r.Context(), category, language)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"implementations": viewsFor(p, submissions)})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	var in service.SubmissionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, apiErrors.ValidationError, "invalid body")
		return
	}

	submission, err := h.submissions.Submit(r.Context(), p, in)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"implementation": viewFor(p, submission)})
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	submissions, err := h.submissions.ListAll(r.Context(), p)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"implementations": viewsFor(p, submissions)})
}

func (h *Handler) reviewQueue(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	submissions, err := h.submissions.FindSubmissionsToReview(r.Context(), p)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"implementations": viewsFor(p, submissions)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	submission, err := h.submissions.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"implementation": viewFor(p, submission)})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	var in service.SubmissionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, apiErrors.ValidationError, "invalid body")
		return
	}

	submission, err := h.submissions.UpdateDetails(r.Context(), p, chi.URLParam(r, "id"), in)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"implementation": viewFor(p, submission)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	if err := h.submissions.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		handleSvcError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.submissions.ClaimForReview)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.submissions.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.submissions.Reject)
}

func (h *Handler) cancelReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.submissions.CancelReview)
}

func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, model.Principal, string) (model.Submission, error),
) {
	p := auth.PrincipalFromContext(r.Context())

	submission, err := op(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"implementation": viewFor(p, submission)})
}

func (h *Handler) listOwn(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	submissions, err := h.submissions.ListOwn(r.Context(), p)
	if err != nil {
		handleSvcError(w, err)
		return
	}

	views := make([]any, 0, len(submissions))
	for _, s := range submissions {
		views = append(views, ownerView(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"implementations": views})
}

func (h *Handler) runRefresh(w http.ResponseWriter, r *http.Request) {
	if h.schedulerToken != "" && r.Header.Get("Authorization") != "Bearer "+h.schedulerToken {
		writeError(w, http.StatusUnauthorized, apiErrors.Unauthorized, "invalid scheduler token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	report, err := h.refresh.Run(ctx)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, errCode apiErrors.ErrorCode, message string) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{"code": errCode, "message": message},
	})
}

func handleSvcError(w http.ResponseWriter, err error) {
	var e apiErrors.APIError
	switch {
	case errors.As(err, &e):
		switch e.Code {
		case apiErrors.ValidationError:
			writeError(w, http.StatusBadRequest, e.Code, e.Message)
		case apiErrors.Unauthorized:
			writeError(w, http.StatusUnauthorized, e.Code, e.Message)
		case apiErrors.Forbidden, apiErrors.NotAContributor:
			writeError(w, http.StatusForbidden, e.Code, e.Message)
		case apiErrors.NotFound, apiErrors.RepositoryNotFound:
			writeError(w, http.StatusNotFound, e.Code, e.Message)
		case apiErrors.ReviewLocked, apiErrors.AlreadyReviewed, apiErrors.NotAuthorizedReviewer,
			apiErrors.RepositoryArchived, apiErrors.IssuesDisabled:
			writeError(w, http.StatusConflict, e.Code, e.Message)
		default:
			writeError(w, http.StatusInternalServerError, apiErrors.InternalError, e.Message)
		}
	default:
		writeError(w, http.StatusInternalServerError, apiErrors.InternalError, "internal error")
	}
}
