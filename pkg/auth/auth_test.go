package auth

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/fetlife"
)

func newAuthClient() *fetlife.Client {
	return fetlife.NewClient(fetlife.Options{
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	})
}

func TestExtractCSRFTokenFromMetaTag(t *testing.T) {
	body := []byte(`<html><head><meta name="csrf-token" content="meta-token-123"></head></html>`)
	assert.Equal(t, "meta-token-123", ExtractCSRFToken(body))
}

func TestExtractCSRFTokenFromHiddenInput(t *testing.T) {
	body := []byte(`<html><body><form><input type="hidden" name="authenticity_token" value="input-token-456"></form></body></html>`)
	assert.Equal(t, "input-token-456", ExtractCSRFToken(body))
}

func TestExtractCSRFTokenFromScript(t *testing.T) {
	body := []byte(`<html><script>window.csrf_token = "script-token-789";</script></html>`)
	assert.Equal(t, "script-token-789", ExtractCSRFToken(body))
}

func TestExtractCSRFTokenPrefersMetaTag(t *testing.T) {
	body := []byte(`<html><head><meta name="csrf-token" content="from-meta"></head>
<body><input name="authenticity_token" value="from-input"></body></html>`)
	assert.Equal(t, "from-meta", ExtractCSRFToken(body))
}

func TestExtractCSRFTokenMissing(t *testing.T) {
	assert.Empty(t, ExtractCSRFToken([]byte(`<html><body>nothing here</body></html>`)))
}

func TestLoginSuccess(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`<meta name="csrf-token" content="tok">`))
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok", r.PostFormValue("authenticity_token"))
		assert.Equal(t, "alice", r.PostFormValue("user[login]"))
		assert.Equal(t, "secret", r.PostFormValue("user[password]"))
		assert.Equal(t, "en", r.PostFormValue("user[locale]"))
		assert.Equal(t, "1", r.PostFormValue("user[remember_me]"))
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<a href="/session?method=delete">Logout</a>`))
	})

	client := newAuthClient()
	a := NewAuthenticator(client, srv.URL, srv.URL+"/login", nil)

	require.NoError(t, a.Login("alice", "secret"))
	assert.True(t, client.IsAuthenticated())
	assert.Equal(t, "tok", client.CSRFToken())
}

func TestLoginNoTokenDoesNotSubmitForm(t *testing.T) {
	var posts int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(&posts, 1)
			return
		}
		w.Write([]byte(`<html><body>no token anywhere</body></html>`))
	})

	client := newAuthClient()
	a := NewAuthenticator(client, srv.URL, srv.URL+"/login", nil)

	err := a.Login("alice", "secret")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAuth))
	assert.Equal(t, int32(0), atomic.LoadInt32(&posts), "no form submission without a token")
	assert.False(t, client.IsAuthenticated())
	assert.NotEmpty(t, a.LoginPageBody())
}

func TestLoginRejectedWithErrorElement(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`<meta name="csrf-token" content="tok">`))
			return
		}
		// Re-rendered login page with an inline error, no redirect
		w.Write([]byte(`<div class="alert alert-danger">Invalid username or password.</div>`))
	})

	client := newAuthClient()
	a := NewAuthenticator(client, srv.URL, srv.URL+"/login", nil)

	err := a.Login("alice", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAuth))
	assert.Contains(t, err.Error(), "Invalid username or password")
	assert.False(t, client.IsAuthenticated())
}

func TestLoginMissingCredentials(t *testing.T) {
	client := newAuthClient()
	a := NewAuthenticator(client, "http://example.invalid", "http://example.invalid/login", nil)

	err := a.Login("", "")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAuth))
}

func TestVerify(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	loggedIn := true
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		if loggedIn {
			w.Write([]byte(`<a href="/session?method=delete">Logout</a>`))
			return
		}
		w.Write([]byte(`<a href="/login">Sign in</a>`))
	})

	client := newAuthClient()
	a := NewAuthenticator(client, srv.URL, srv.URL+"/login", nil)

	// Not marked authenticated: probe short-circuits
	assert.False(t, a.Verify())

	client.MarkAuthenticated(true)
	assert.True(t, a.Verify())

	loggedIn = false
	assert.False(t, a.Verify())
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("FETSCRAPER_USERNAME", "envuser")
	t.Setenv("FETSCRAPER_PASSWORD", "envpass")

	store := NewEnvironmentStore()
	creds, err := store.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, "envuser", creds.Username)
	assert.Equal(t, "envpass", creds.Password)

	assert.Error(t, store.Store(&Credentials{Username: "x", Password: "y"}))
	assert.Error(t, store.Delete())
}

func TestEnvironmentStoreMissing(t *testing.T) {
	t.Setenv("FETSCRAPER_USERNAME", "")
	t.Setenv("FETSCRAPER_PASSWORD", "")

	_, err := NewEnvironmentStore().Retrieve()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("FETSCRAPER_PASSPHRASE", "test-passphrase")

	dir := t.TempDir()
	store, err := NewEncryptedFileStore(dir + "/credentials.enc")
	require.NoError(t, err)

	creds := &Credentials{Username: "alice", Password: "secret"}
	require.NoError(t, store.Store(creds))

	got, err := store.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "secret", got.Password)

	require.NoError(t, store.Delete())
	_, err = store.Retrieve()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEncryptedFileStoreRejectsEmpty(t *testing.T) {
	t.Setenv("FETSCRAPER_PASSPHRASE", "test-passphrase")

	store, err := NewEncryptedFileStore(t.TempDir() + "/credentials.enc")
	require.NoError(t, err)
	assert.ErrorIs(t, store.Store(&Credentials{}), ErrInvalidCredentials)
}
