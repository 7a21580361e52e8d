package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/appcraft/showcase-service/src/internal/model"
	"github.com/appcraft/showcase-service/src/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubUserStore struct {
	store.Repository
	users map[string]model.User
}

func (s *stubUserStore) GetUser(ctx context.Context, id string) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func capturePrincipal(captured *model.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithPrincipal_ValidSession(t *testing.T) {
	tokens, err := NewTokenService("middleware-test-secret-123")
	require.NoError(t, err)
	repo := &stubUserStore{users: map[string]model.User{
		"u1": {ID: "u1", GitHubID: 42, IsAdmin: true},
	}}

	token, err := tokens.Generate("u1")
	require.NoError(t, err)

	var p model.Principal
	handler := WithPrincipal(tokens, repo, zap.NewNop())(capturePrincipal(&p))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, model.Principal{UserID: "u1", GitHubID: 42, IsAdmin: true}, p)
}

func TestWithPrincipal_NoCookie(t *testing.T) {
	tokens, err := NewTokenService("middleware-test-secret-123")
	require.NoError(t, err)

	var p model.Principal
	handler := WithPrincipal(tokens, &stubUserStore{}, zap.NewNop())(capturePrincipal(&p))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.False(t, p.Authenticated(), "Missing cookie means the anonymous principal")
}

func TestWithPrincipal_GarbageToken(t *testing.T) {
	tokens, err := NewTokenService("middleware-test-secret-123")
	require.NoError(t, err)

	var p model.Principal
	handler := WithPrincipal(tokens, &stubUserStore{}, zap.NewNop())(capturePrincipal(&p))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "nonsense"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.False(t, p.Authenticated(), "A bad token does not block the request, it just stays anonymous")
}

func TestWithPrincipal_DeletedUser(t *testing.T) {
	tokens, err := NewTokenService("middleware-test-secret-123")
	require.NoError(t, err)

	token, err := tokens.Generate("gone")
	require.NoError(t, err)

	var p model.Principal
	handler := WithPrincipal(tokens, &stubUserStore{users: map[string]model.User{}}, zap.NewNop())(capturePrincipal(&p))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.False(t, p.Authenticated())
}
