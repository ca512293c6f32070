package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
)

// MockSite simulates the site with realistic behavior: a CSRF-protected
// login, an embedded-JSON search listing, a server-rendered profile
// listing with rel-next pagination, and a CDN serving streams. Error
// injection and request counting support failure-path tests.
type MockSite struct {
	Server *httptest.Server

	csrfToken    string
	validUser    string
	validPass    string
	requestCount int32
	loginCount   int32

	mu             sync.Mutex
	errorResponses map[string]int // path -> status, consumed on first hit
}

// NewMockSite starts a mock site accepting the given credentials
func NewMockSite(validUser, validPass string) *MockSite {
	m := &MockSite{
		csrfToken:      "integration-test-token",
		validUser:      validUser,
		validPass:      validPass,
		errorResponses: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", m.handleLogin)
	mux.HandleFunc("/home", m.handleHome)
	mux.HandleFunc("/search/videos", m.handleSearch)
	mux.HandleFunc("/users/501/videos", m.handleProfileListing)
	mux.HandleFunc("/carol/videos/", m.handleVideoPage)
	mux.HandleFunc("/media/", m.handleStream)

	m.Server = httptest.NewServer(mux)
	return m
}

// Close shuts the server down
func (m *MockSite) Close() {
	m.Server.Close()
}

// URL returns the mock site's base URL
func (m *MockSite) URL() string {
	return m.Server.URL
}

// RequestCount returns how many requests the site has served
func (m *MockSite) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// LoginCount returns how many login form submissions arrived
func (m *MockSite) LoginCount() int {
	return int(atomic.LoadInt32(&m.loginCount))
}

// FailOnce makes the next request to path answer with status
func (m *MockSite) FailOnce(path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorResponses[path] = status
}

// consumeError pops a configured one-shot error for path
func (m *MockSite) consumeError(path string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.errorResponses[path]
	if ok {
		delete(m.errorResponses, path)
	}
	return status, ok
}

func (m *MockSite) track(r *http.Request) {
	atomic.AddInt32(&m.requestCount, 1)
}

func (m *MockSite) handleLogin(w http.ResponseWriter, r *http.Request) {
	m.track(r)

	if r.Method == http.MethodPost {
		atomic.AddInt32(&m.loginCount, 1)
		if r.FormValue("authenticity_token") != m.csrfToken {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `<html><body><div class="alert">Invalid authenticity token</div></body></html>`)
			return
		}
		if r.FormValue("user[login]") != m.validUser || r.FormValue("user[password]") != m.validPass {
			fmt.Fprint(w, `<html><body><div class="alert alert-danger">Invalid username or password.</div></body></html>`)
			return
		}
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}

	fmt.Fprintf(w, `<html><head><meta name="csrf-token" content="%s"></head>
		<body><form action="/login" method="post"></form></body></html>`, m.csrfToken)
}

func (m *MockSite) handleHome(w http.ResponseWriter, r *http.Request) {
	m.track(r)
	fmt.Fprint(w, `<html><body><a href="/session?method=delete">Logout</a></body></html>`)
}

// handleSearch serves two embedded-JSON pages, then an empty one
func (m *MockSite) handleSearch(w http.ResponseWriter, r *http.Request) {
	m.track(r)

	switch r.URL.Query().Get("page") {
	case "", "1":
		m.writeStories(w,
			video{id: 1, uploader: "alice", title: "First", duration: "3:00"},
			video{id: 2, uploader: "alice", title: "Second", duration: "0:30"},
		)
	case "2":
		m.writeStories(w,
			video{id: 3, uploader: "bob", title: "Third", duration: "10:00"},
		)
	default:
		fmt.Fprint(w, `<div data-component="VideoSearchStories" data-props='{"stories":[]}'></div>`)
	}
}

// handleProfileListing serves server-rendered cards with rel-next links
func (m *MockSite) handleProfileListing(w http.ResponseWriter, r *http.Request) {
	m.track(r)

	if r.URL.Query().Get("page") == "" {
		fmt.Fprint(w, `<html><body>
			<div class="video-item">
				<a href="/carol/videos/10"><h3>Card Ten</h3></a>
				<a href="/users/501">carol</a>
				<span class="duration">2:00</span>
			</div>
			<a rel="next" href="?page=2">Next</a>
		</body></html>`)
		return
	}
	fmt.Fprint(w, `<html><body>
		<div class="video-item">
			<a href="/carol/videos/11"><h3>Card Eleven</h3></a>
			<a href="/users/501">carol</a>
			<span class="duration">4:00</span>
		</div>
	</body></html>`)
}

// handleVideoPage serves a single-video page whose gallery component
// carries the stream source, exercising the resolve-on-demand path
func (m *MockSite) handleVideoPage(w http.ResponseWriter, r *http.Request) {
	m.track(r)

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	id := parts[len(parts)-1]
	fmt.Fprintf(w, `<div data-component="VideoStoriesGallery" `+
		`data-props='{"preload":{"entries":[{"attributes":{"videos":[`+
		`{"id":%s,"sources":[{"src":"/media/%s.mp4"}]}]}}]}}'></div>`, id, id)
}

// handleStream serves stream bytes, honoring one-shot error injection
func (m *MockSite) handleStream(w http.ResponseWriter, r *http.Request) {
	m.track(r)

	if status, ok := m.consumeError(r.URL.Path); ok {
		w.WriteHeader(status)
		return
	}
	fmt.Fprintf(w, "bytes-of-%s", r.URL.Path)
}

type video struct {
	id       int
	uploader string
	title    string
	duration string
}

func (m *MockSite) writeStories(w http.ResponseWriter, videos ...video) {
	props := `{"stories":[{"attributes":{"videos":[`
	for i, v := range videos {
		if i > 0 {
			props += ","
		}
		props += fmt.Sprintf(
			`{"id":%d,"path":"/%s/videos/%d","formattedTitle":"%s","durationString":"%s","sources":[{"src":"/media/%d.mp4"}]}`,
			v.id, v.uploader, v.id, v.title, v.duration, v.id,
		)
	}
	props += `]}}]}`
	fmt.Fprintf(w, `<div data-component="VideoSearchStories" data-props='%s'></div>`, props)
}
