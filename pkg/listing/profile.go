package listing

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/fetlife"
	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/media"
)

var (
	digitsOnlyPattern = regexp.MustCompile(`^\d+$`)
	profileURLPattern = regexp.MustCompile(`/users/(\d+)`)
)

// ExtractUserID pulls a numeric user ID out of an identifier that is
// either the raw ID or a profile URL. Returns "" when neither matches.
func ExtractUserID(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if digitsOnlyPattern.MatchString(identifier) {
		return identifier
	}
	if m := profileURLPattern.FindStringSubmatch(identifier); m != nil {
		return m[1]
	}
	return ""
}

// LookupUserID resolves a nickname to a numeric user ID through the
// member search. Only an exact case-insensitive nickname match counts;
// near-misses would point the downloader at somebody else's videos.
// Returns "" when no result matches.
func LookupUserID(client *fetlife.Client, baseURL, nickname string, log logger.Logger) (string, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	u := fmt.Sprintf("%s/search?q=%s&type=users", baseURL, url.QueryEscape(nickname))
	resp, err := client.Get(u)
	if err != nil {
		return "", err
	}

	page := memberSearchResults(resp.Body)
	for _, hit := range page {
		if strings.EqualFold(hit.nickname, nickname) {
			return hit.id, nil
		}
	}
	if len(page) > 0 {
		log.WithFields(map[string]interface{}{
			"nickname": nickname,
			"closest":  page[0].nickname,
		}).Warn("no exact nickname match among search results")
	}
	return "", nil
}

// ProfileVideos walks the video listing of a member identified by raw
// ID, profile URL, or nickname. Nicknames go through LookupUserID; an
// identifier that resolves to nothing is a resolution error.
func ProfileVideos(client *fetlife.Client, baseURL, identifier string, opts Options, log logger.Logger) ([]media.Record, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if !client.IsAuthenticated() {
		return nil, errors.Auth("must be logged in to list profile videos")
	}

	id := ExtractUserID(identifier)
	if id == "" {
		resolved, err := LookupUserID(client, baseURL, identifier, log)
		if err != nil {
			return nil, err
		}
		if resolved == "" {
			return nil, errors.Resolution("could not find user %q", identifier)
		}
		id = resolved
	}

	log.WithField("user_id", id).Info("listing profile videos")

	fetch := func(page int) (*Page, error) {
		u := fmt.Sprintf("%s/users/%s/videos", baseURL, id)
		if page > 1 {
			u += fmt.Sprintf("?page=%d", page)
		}
		resp, err := client.Get(u)
		if err != nil {
			return nil, err
		}
		return ParsePage(resp.Body, baseURL, log), nil
	}

	return Paginate(fetch, opts, log)
}

type memberHit struct {
	id       string
	nickname string
}

// memberSearchResults scrapes profile links off a member search page
func memberSearchResults(body []byte) []memberHit {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var hits []memberHit
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := profileURLPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		nickname := strings.TrimSpace(a.Text())
		if nickname == "" || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		hits = append(hits, memberHit{id: m[1], nickname: nickname})
	})
	return hits
}
