package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OEngineer/fetscraper/pkg/config"
	"github.com/OEngineer/fetscraper/pkg/errors"
)

// mockSite mimics the parts of the site the scraper touches: a login
// page with a CSRF token, the post-login landing page, a search listing
// and a video stream.
type mockSite struct {
	server      *httptest.Server
	loginPosted bool
}

func newMockSite(t *testing.T) *mockSite {
	t.Helper()
	site := &mockSite{}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			site.loginPosted = true
			assert.Equal(t, "token-abc", r.FormValue("authenticity_token"))
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		fmt.Fprint(w, `<html><head><meta name="csrf-token" content="token-abc"></head><body></body></html>`)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/session?method=delete">Logout</a></body></html>`)
	})
	mux.HandleFunc("/search/videos", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			fmt.Fprint(w, `<div data-component="VideoSearchStories" data-props='{"stories":[]}'></div>`)
			return
		}
		props := `{"stories":[{"attributes":{"videos":[` +
			`{"id":101,"path":"/alice/videos/101","formattedTitle":"Short","durationString":"0:20",` +
			`"sources":[{"src":"/media/101.mp4"}]},` +
			`{"id":102,"path":"/alice/videos/102","formattedTitle":"Long Enough","durationString":"4:00",` +
			`"sources":[{"src":"/media/102.mp4"}]}]}}]}`
		fmt.Fprintf(w, `<div data-component="VideoSearchStories" data-props='%s'></div>`, props)
	})
	mux.HandleFunc("/media/102.mp4", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "long-enough-bytes")
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>No members found</p></body></html>`)
	})

	site.server = httptest.NewServer(mux)
	t.Cleanup(site.server.Close)
	return site
}

func testConfig(t *testing.T, site *mockSite) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = site.server.URL
	cfg.Site.LoginURL = site.server.URL + "/login"
	cfg.Site.SearchURL = site.server.URL + "/search/videos"
	cfg.Credentials.Username = "user@example.com"
	cfg.Credentials.Password = "hunter2"
	cfg.HTTP.RateLimitDelay = config.Duration(time.Millisecond)
	cfg.HTTP.MaxRetries = 1
	cfg.Download.OutputDir = t.TempDir()
	cfg.Download.Workers = 1
	return cfg
}

func TestScraperLoginThenSearchAndDownload(t *testing.T) {
	site := newMockSite(t)
	cfg := testConfig(t, site)
	cfg.Filter.MinDuration = 60

	s, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, s.Login())
	assert.True(t, site.loginPosted)
	assert.True(t, s.VerifySession())

	stats, err := s.SearchAndDownload(context.Background(), "test query")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total, "the twenty second clip is filtered out")
	assert.Equal(t, 1, stats.Success)

	data, err := os.ReadFile(filepath.Join(cfg.Download.OutputDir, "alice", "Long_Enough_102.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "long-enough-bytes", string(data))
}

func TestScraperSearchWithoutLogin(t *testing.T) {
	site := newMockSite(t)
	s, err := New(testConfig(t, site))
	require.NoError(t, err)

	_, err = s.SearchVideos("anything")
	assert.True(t, errors.IsKind(err, errors.KindAuth))
}

func TestScraperLoginWithoutCredentials(t *testing.T) {
	site := newMockSite(t)
	cfg := testConfig(t, site)
	cfg.Credentials.Username = ""
	cfg.Credentials.Password = ""

	s, err := New(cfg)
	require.NoError(t, err)

	err = s.Login()
	assert.True(t, errors.IsKind(err, errors.KindAuth))
}

func TestScraperDownloadProfileResolutionError(t *testing.T) {
	site := newMockSite(t)
	s, err := New(testConfig(t, site))
	require.NoError(t, err)
	require.NoError(t, s.Login())

	_, err = s.DownloadProfile(context.Background(), "ghost_user")
	assert.True(t, errors.IsKind(err, errors.KindResolution))
}

func TestScraperRerunSkipsDownloadedVideos(t *testing.T) {
	site := newMockSite(t)
	cfg := testConfig(t, site)
	cfg.Filter.MinDuration = 60

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Login())

	stats, err := s.SearchAndDownload(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, 1, stats.Success)

	// A second scraper over the same output directory reads the ledger
	s2, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s2.Login())

	stats, err = s2.SearchAndDownload(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Success)
}
