package fetlife

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/retry"
)

func newTestClient(maxRetries int) *Client {
	return NewClient(Options{
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
		Backoff:    &retry.ConstantBackoff{Delay: time.Millisecond},
	})
}

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := newTestClient(3)
	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(resp.Body))
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(3)
	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(3)
	_, err := c.Get(srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(3)
	_, err := c.Get(srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindHTTP))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostSendsFormAndIsNeverRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice", r.PostFormValue("user[login]"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(3)
	form := map[string][]string{"user[login]": {"alice"}}
	_, err := c.Post(srv.URL, form)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindHTTP))
	// POST is not idempotent and must not be retried on 5xx
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostReturnsBodyOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`<div class="error">wrong password</div>`))
	}))
	defer srv.Close()

	c := newTestClient(1)
	resp, err := c.Post(srv.URL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Contains(t, string(resp.Body), "wrong password")
}

func TestDownloadToFile(t *testing.T) {
	payload := make([]byte, 3*chunkSize+17)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.bin")
	c := newTestClient(1)
	n, err := c.DownloadToFile(context.Background(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownloadToFileHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.bin")
	c := newTestClient(1)
	_, err := c.DownloadToFile(context.Background(), srv.URL, path)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindHTTP))
}

func TestRequestsAreRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(Options{
		RateLimitDelay: 50 * time.Millisecond,
		MaxRetries:     1,
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Get(srv.URL)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestSessionState(t *testing.T) {
	c := newTestClient(1)

	assert.False(t, c.IsAuthenticated())
	assert.Empty(t, c.CSRFToken())

	c.SetCSRFToken("tok123")
	c.MarkAuthenticated(true)

	assert.Equal(t, "tok123", c.CSRFToken())
	assert.True(t, c.IsAuthenticated())

	c.MarkAuthenticated(false)
	assert.False(t, c.IsAuthenticated())
}

func TestCookiesPersistAcrossRequests(t *testing.T) {
	var sawCookie bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		case "/check":
			if c, err := r.Cookie("session"); err == nil && c.Value == "abc" {
				sawCookie = true
			}
		}
	}))
	defer srv.Close()

	c := newTestClient(1)
	_, err := c.Get(srv.URL + "/set")
	require.NoError(t, err)
	_, err = c.Get(srv.URL + "/check")
	require.NoError(t, err)
	assert.True(t, sawCookie, "session cookie should be replayed by the jar")
}
