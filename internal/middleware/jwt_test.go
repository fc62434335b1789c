package myMiddleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticValidator map[string]string

func (v staticValidator) ValidateToken(token string) (string, error) {
	if name, ok := v[token]; ok {
		return name, nil
	}
	return "", errors.New("unknown token")
}

func echoUsername(w http.ResponseWriter, r *http.Request) {
	name, _ := r.Context().Value(UsernameKey).(string)
	w.Write([]byte(name))
}

func TestHandleBearer(t *testing.T) {
	am := NewAuthMiddleware(staticValidator{"t1": "alice"})

	req := httptest.NewRequest(http.MethodGet, "/api/users/search", nil)
	req.Header.Set("Authorization", "Bearer t1")
	rr := httptest.NewRecorder()
	am.Handle(http.HandlerFunc(echoUsername)).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "alice", rr.Body.String())
}

func TestHandleQueryParam(t *testing.T) {
	am := NewAuthMiddleware(staticValidator{"t2": "bob"})

	req := httptest.NewRequest(http.MethodGet, "/api/users/search?token=t2", nil)
	rr := httptest.NewRecorder()
	am.Handle(http.HandlerFunc(echoUsername)).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "bob", rr.Body.String())
}

func TestHandleMissingToken(t *testing.T) {
	am := NewAuthMiddleware(staticValidator{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/search", nil)
	rr := httptest.NewRecorder()
	am.Handle(http.HandlerFunc(echoUsername)).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "Missing authentication token\n", rr.Body.String())
}

func TestHandleInvalidToken(t *testing.T) {
	am := NewAuthMiddleware(staticValidator{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rr := httptest.NewRecorder()
	am.Handle(http.HandlerFunc(echoUsername)).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "Invalid token\n", rr.Body.String())
}
