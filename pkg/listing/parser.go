package listing

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/media"
)

const (
	// searchComponent marks pages whose listing ships as embedded JSON
	searchComponent = "VideoSearchStories"
	// galleryComponent marks single-video pages carrying stream sources
	galleryComponent = "VideoStoriesGallery"
)

var (
	videoHrefPattern    = regexp.MustCompile(`/videos/(\d+)`)
	userHrefPattern     = regexp.MustCompile(`/users/(\d+)`)
	cardClassPattern    = regexp.MustCompile(`(?i)video[-_]?(item|card)`)
	durationClassProbe  = regexp.MustCompile(`(?i)duration`)
	durationTextPattern = regexp.MustCompile(`\d+:\d+`)
)

// Page is the parsed result of one listing page
type Page struct {
	Records []media.Record
	// RawCount is the number of underlying items the page carried before
	// any filtering; zero means the listing is exhausted
	RawCount int
	// HasNext reports whether the page offers a continuation
	HasNext bool
}

// videoPayload mirrors one video entry of the embedded JSON component
type videoPayload struct {
	ID             json.Number `json:"id"`
	Path           string      `json:"path"`
	FormattedTitle string      `json:"formattedTitle"`
	DurationString string      `json:"durationString"`
	ScreencapSrc   string      `json:"screencapSrc"`
	CreatedAt      string      `json:"createdAt"`
	Sources        []struct {
		Src string `json:"src"`
	} `json:"sources"`
}

type storiesPayload struct {
	Stories []struct {
		Attributes struct {
			Videos []videoPayload `json:"videos"`
		} `json:"attributes"`
	} `json:"stories"`
}

type galleryPayload struct {
	Preload struct {
		Entries []struct {
			Attributes struct {
				Videos []videoPayload `json:"videos"`
			} `json:"attributes"`
		} `json:"entries"`
	} `json:"preload"`
}

// ParsePage turns a fetched listing page into normalized media records.
// Pages carrying the embedded-JSON component are decoded from its data
// attribute; every other page goes through DOM heuristics. A malformed
// element or payload never fails the page, it is logged and skipped.
func ParsePage(body []byte, baseURL string, log logger.Logger) *Page {
	if log == nil {
		log = logger.GetLogger()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Warn("failed to parse listing page")
		return &Page{}
	}

	if sel := doc.Find(`[data-component="` + searchComponent + `"]`); sel.Length() > 0 {
		return parseEmbeddedJSON(sel.First(), baseURL, log)
	}
	return parseDOM(doc, baseURL, log)
}

// parseEmbeddedJSON decodes the data-props attribute of the listing
// component. The HTML parser has already entity-decoded the attribute.
func parseEmbeddedJSON(sel *goquery.Selection, baseURL string, log logger.Logger) *Page {
	props, ok := sel.Attr("data-props")
	if !ok || props == "" {
		log.Warn("listing component has no data-props attribute")
		return &Page{}
	}

	var payload storiesPayload
	if err := json.Unmarshal([]byte(props), &payload); err != nil {
		// A broken payload ends this page's sequence, not the whole run
		log.WithError(err).Warn("failed to decode embedded listing JSON")
		return &Page{}
	}

	page := &Page{}
	for _, story := range payload.Stories {
		for _, v := range story.Attributes.Videos {
			page.RawCount++
			rec, ok := recordFromPayload(v, baseURL, log)
			if !ok {
				continue
			}
			page.Records = append(page.Records, rec)
		}
	}

	// The embedded listing keeps paging while stories keep coming
	page.HasNext = len(payload.Stories) > 0
	return page
}

// recordFromPayload maps one embedded JSON entry to a media record
func recordFromPayload(v videoPayload, baseURL string, log logger.Logger) (media.Record, bool) {
	id := v.ID.String()
	if id == "" {
		return media.Record{}, false
	}

	rec := media.Record{
		ID:           id,
		Title:        v.FormattedTitle,
		Uploader:     uploaderFromPath(v.Path),
		UploaderID:   "0", // not exposed by the embedded listing
		ThumbnailURL: v.ScreencapSrc,
		PublishedAt:  v.CreatedAt,
	}
	if rec.Title == "" {
		rec.Title = "Video " + id
	}
	if v.Path != "" {
		rec.PageURL = absoluteURL(baseURL, v.Path)
	}
	if v.DurationString != "" {
		if d, err := media.ParseDuration(v.DurationString); err == nil {
			rec.Duration = d
		} else {
			log.WithField("video_id", id).Debug("unparseable duration string, treating as unknown")
		}
	}
	if len(v.Sources) > 0 {
		rec.StreamURL = v.Sources[0].Src
	}
	return rec, true
}

// uploaderFromPath takes the second path segment of a video path like
// /username/videos/123
func uploaderFromPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	return "Unknown"
}

// parseDOM extracts records from server-rendered video cards
func parseDOM(doc *goquery.Document, baseURL string, log logger.Logger) *Page {
	cards := doc.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return cardClassPattern.MatchString(class)
	})
	if cards.Length() == 0 {
		cards = doc.Find("article")
	}
	if cards.Length() == 0 {
		cards = doc.Find(".media")
	}

	page := &Page{RawCount: cards.Length()}
	cards.Each(func(_ int, s *goquery.Selection) {
		rec, ok := parseCard(s, baseURL)
		if !ok {
			log.Debug("skipping malformed video card")
			return
		}
		page.Records = append(page.Records, rec)
	})

	page.HasNext = doc.Find(`a[rel="next"]`).Length() > 0
	return page
}

// parseCard extracts one record from a video card element. Any missing
// mandatory piece makes the card invalid; optional pieces default.
func parseCard(s *goquery.Selection, baseURL string) (media.Record, bool) {
	link := findAnchor(s, videoHrefPattern)
	if link == nil {
		return media.Record{}, false
	}
	href, _ := link.Attr("href")

	m := videoHrefPattern.FindStringSubmatch(href)
	if m == nil {
		return media.Record{}, false
	}
	id := m[1]

	rec := media.Record{
		ID:         id,
		PageURL:    absoluteURL(baseURL, href),
		Uploader:   "Unknown",
		UploaderID: "0",
	}

	title := strings.TrimSpace(s.Find("h3").First().Text())
	if title == "" {
		title = strings.TrimSpace(s.Find("h2").First().Text())
	}
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}
	if title == "" {
		title = "Video " + id
	}
	rec.Title = title

	if uploaderLink := findAnchor(s, userHrefPattern); uploaderLink != nil {
		rec.Uploader = strings.TrimSpace(uploaderLink.Text())
		if uhref, _ := uploaderLink.Attr("href"); uhref != "" {
			if um := userHrefPattern.FindStringSubmatch(uhref); um != nil {
				rec.UploaderID = um[1]
			}
		}
		if rec.Uploader == "" {
			rec.Uploader = "Unknown"
		}
	}

	rec.Duration = cardDuration(s)

	if img := s.Find("img").First(); img.Length() > 0 {
		if src, ok := img.Attr("src"); ok && src != "" {
			rec.ThumbnailURL = src
		} else if lazy, ok := img.Attr("data-src"); ok {
			rec.ThumbnailURL = lazy
		}
	}

	if el := s.Find("time").First(); el.Length() > 0 {
		if dt, ok := el.Attr("datetime"); ok && dt != "" {
			rec.PublishedAt = dt
		} else {
			rec.PublishedAt = strings.TrimSpace(el.Text())
		}
	}

	return rec, true
}

// cardDuration finds a duration either in a duration-labeled element or
// anywhere in the card's text. Unparseable durations count as unknown.
func cardDuration(s *goquery.Selection) int {
	text := ""
	labeled := s.Find("[class]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		class, _ := el.Attr("class")
		return durationClassProbe.MatchString(class)
	})
	if labeled.Length() > 0 {
		text = strings.TrimSpace(labeled.First().Text())
	} else {
		text = durationTextPattern.FindString(s.Text())
	}

	if text == "" {
		return 0
	}
	d, err := media.ParseDuration(text)
	if err != nil {
		return 0
	}
	return d
}

// findAnchor returns the first anchor under s whose href matches pattern
func findAnchor(s *goquery.Selection, pattern *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if pattern.MatchString(href) {
			found = a
			return false
		}
		return true
	})
	return found
}

// ExtractStreamURL pulls the first stream source out of a single-video
// page's gallery component. Returns "" when no source is present.
func ExtractStreamURL(body []byte, log logger.Logger) string {
	if log == nil {
		log = logger.GetLogger()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	sel := doc.Find(`[data-component="` + galleryComponent + `"]`).First()
	if sel.Length() == 0 {
		return ""
	}
	props, ok := sel.Attr("data-props")
	if !ok || props == "" {
		return ""
	}

	var payload galleryPayload
	if err := json.Unmarshal([]byte(props), &payload); err != nil {
		log.WithError(err).Warn("failed to decode video gallery JSON")
		return ""
	}

	entries := payload.Preload.Entries
	if len(entries) == 0 || len(entries[0].Attributes.Videos) == 0 {
		return ""
	}
	sources := entries[0].Attributes.Videos[0].Sources
	if len(sources) == 0 {
		return ""
	}
	return sources[0].Src
}

// absoluteURL joins a possibly relative URL with the site base
func absoluteURL(baseURL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimRight(baseURL, "/") + ref
}
