package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSession_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		assert.Contains(t, r.Header.Get("Accept-Language"), "pt-BR")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	sess, err := NewHTTPFetcher(Config{}).NewSession(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	body, err := sess.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
}

func TestHTTPSession_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sess, err := NewHTTPFetcher(Config{}).NewSession(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestHTTPSession_CookiesPersistAcrossRequests(t *testing.T) {
	var sawCookie bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err == nil {
			sawCookie = true
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	sess, err := NewHTTPFetcher(Config{}).NewSession(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	_, err = sess.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, sawCookie, "second request must replay the cookie")
}
