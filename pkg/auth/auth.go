package auth

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/fetlife"
	"github.com/OEngineer/fetscraper/pkg/logger"
)

const postLoginFragment = "/home"

var (
	scriptTokenPattern = regexp.MustCompile(`(?i)csrf[_-]?token["\s:=]+["']([\w-]+)["']`)
	loginErrorPattern  = regexp.MustCompile(`(?i)error|alert`)
	logoutHrefPattern  = regexp.MustCompile(`/session.*method=delete`)
)

// ExtractCSRFToken pulls the anti-forgery token out of a login page.
// It tries a meta tag, then a hidden form field, then a scan of inline
// script content; the first match wins. Returns "" when no token is found.
func ExtractCSRFToken(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if content, ok := doc.Find(`meta[name="csrf-token"]`).First().Attr("content"); ok && content != "" {
			return content
		}
		if value, ok := doc.Find(`input[name="authenticity_token"]`).First().Attr("value"); ok && value != "" {
			return value
		}
	}

	if m := scriptTokenPattern.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	return ""
}

// Authenticator drives the login state machine on a shared client:
// Anonymous -> TokenFetched -> Authenticated, or Anonymous -> Failed.
type Authenticator struct {
	client   *fetlife.Client
	loginURL string
	baseURL  string
	logger   logger.Logger

	// lastPageBody holds the most recent login page so the CLI can dump
	// it for debugging when token extraction fails
	lastPageBody []byte
}

// NewAuthenticator creates an authenticator bound to a client
func NewAuthenticator(client *fetlife.Client, baseURL, loginURL string, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Authenticator{
		client:   client,
		loginURL: loginURL,
		baseURL:  baseURL,
		logger:   log,
	}
}

// LoginPageBody returns the raw body of the last fetched login page.
// Only meaningful after a failed Login; intended as a debugging aid.
func (a *Authenticator) LoginPageBody() []byte {
	return a.lastPageBody
}

// Login fetches the login page, extracts the CSRF token and submits the
// credential form. On success the client is marked authenticated.
func (a *Authenticator) Login(username, password string) error {
	if username == "" || password == "" {
		return errors.Auth("username and password are required")
	}

	a.logger.Info("fetching login page")
	resp, err := a.client.Get(a.loginURL)
	if err != nil {
		return errors.Auth("fetching login page failed").Wrap(err)
	}
	a.lastPageBody = resp.Body

	token := ExtractCSRFToken(resp.Body)
	if token == "" {
		return errors.Auth("could not extract CSRF token from login page")
	}
	a.client.SetCSRFToken(token)
	a.logger.WithField("token_prefix", truncate(token, 8)).Debug("CSRF token obtained")

	form := url.Values{
		"authenticity_token": {token},
		"user[otp_attempt]":  {"step_1"},
		"user[locale]":       {"en"},
		"user[login]":        {username},
		"user[password]":     {password},
		"user[remember_me]":  {"1"},
	}

	a.logger.Info("submitting login credentials")
	resp, err = a.client.Post(a.loginURL, form)
	if err != nil {
		if resp != nil {
			if msg := findLoginError(resp.Body); msg != "" {
				return errors.Auth("login failed: %s", msg).Wrap(err)
			}
		}
		return errors.Auth("login request failed").Wrap(err)
	}

	// A successful login redirects to the member home page
	if strings.Contains(resp.FinalURL, postLoginFragment) {
		a.client.MarkAuthenticated(true)
		a.logger.WithField("username", username).Info("authentication successful")
		return nil
	}

	if msg := findLoginError(resp.Body); msg != "" {
		return errors.Auth("login failed: %s", msg)
	}
	return errors.Auth("authentication failed, check your username and password")
}

// Verify re-fetches the member home page and looks for a logout link.
// This is a best-effort probe: any failure reports "not authenticated".
func (a *Authenticator) Verify() bool {
	if !a.client.IsAuthenticated() {
		return false
	}

	resp, err := a.client.Get(a.baseURL + postLoginFragment)
	if err != nil {
		return false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return false
	}

	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if logoutHrefPattern.MatchString(href) {
			found = true
			return false
		}
		return true
	})
	return found
}

// findLoginError scans a login response for an element whose class matches
// an error/alert pattern and returns its text
func findLoginError(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var msg string
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if loginErrorPattern.MatchString(class) {
			msg = strings.TrimSpace(s.Text())
			return msg == ""
		}
		return true
	})
	return msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
