package listing

import (
	"fmt"
	"net/url"

	"github.com/OEngineer/fetscraper/pkg/errors"
	"github.com/OEngineer/fetscraper/pkg/fetlife"
	"github.com/OEngineer/fetscraper/pkg/logger"
	"github.com/OEngineer/fetscraper/pkg/media"
)

// SearchVideos walks the video search listing for a query and returns
// the filtered records. The client must already be logged in.
func SearchVideos(client *fetlife.Client, baseURL, query string, opts Options, log logger.Logger) ([]media.Record, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if !client.IsAuthenticated() {
		return nil, errors.Auth("must be logged in to search videos")
	}

	log.WithField("query", query).Info("searching videos")

	fetch := func(page int) (*Page, error) {
		u := fmt.Sprintf("%s/search/videos?q=%s", baseURL, url.QueryEscape(query))
		if page > 1 {
			u += fmt.Sprintf("&page=%d", page)
		}
		resp, err := client.Get(u)
		if err != nil {
			return nil, err
		}
		return ParsePage(resp.Body, baseURL, log), nil
	}

	return Paginate(fetch, opts, log)
}
