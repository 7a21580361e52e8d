package api

import (
	"net/http"

	"github.com/appcraft/showcase-service/src/internal/api/apiErrors"
	"github.com/appcraft/showcase-service/src/internal/auth"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

const oauthStateCookie = "oauth_state"

// githubLogin starts the OAuth handshake: a random state value goes into a
// short-lived cookie and the browser is sent to the provider.
func (h *Handler) githubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth.AuthURL(state), http.StatusTemporaryRedirect)
}

// githubCallback completes the handshake: verify the state, exchange the
// code for a profile, upsert the user and issue the session cookie.
func (h *Handler) githubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.log.Warn("oauth callback: state mismatch")
		writeError(w, http.StatusBadRequest, apiErrors.Unauthorized, "invalid OAuth state")
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.log.Info("oauth callback: authorization denied", zap.String("error", errParam))
		http.Redirect(w, r, h.frontendBaseURL, http.StatusTemporaryRedirect)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, apiErrors.Unauthorized, "missing authorization code")
		return
	}

	profile, err := h.oauth.Exchange(r.Context(), code)
	if err != nil {
		h.log.Error("oauth callback: exchange failed", zap.Error(err))
		handleSvcError(w, err)
		return
	}

	user, err := h.users.SignIn(r.Context(), *profile)
	if err != nil {
		handleSvcError(w, err)
		return
	}

	token, err := h.tokens.Generate(user.ID)
	if err != nil {
		h.log.Error("oauth callback: token generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, apiErrors.InternalError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.frontendBaseURL, http.StatusTemporaryRedirect)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())

	user, err := h.users.Me(r.Context(), p)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": viewUser(user)})
}
