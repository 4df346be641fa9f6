// Package feed fetches source stories from the Guardian content API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"lurnetreau/newsapi/internal/categories"
	"lurnetreau/newsapi/internal/models"
)

const requestTimeout = 15 * time.Second

// Client fetches the newest story per category from the upstream content
// API. Per-category failures are tolerated: a category that cannot be
// fetched is skipped and the rest still come back.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a feed client for the given API base URL and key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// searchResponse mirrors the slice of the upstream payload we consume.
type searchResponse struct {
	Response struct {
		Results []struct {
			Fields struct {
				Headline  string `json:"headline"`
				BodyText  string `json:"bodyText"`
				Thumbnail string `json:"thumbnail"`
			} `json:"fields"`
		} `json:"results"`
	} `json:"response"`
}

// FetchLatest requests exactly one newest item for each of the fixed
// categories. It never aborts wholesale: each category failure is logged
// and skipped, and whatever succeeded is returned, possibly nothing.
// Retries are the caller's concern on the next scheduled pass.
func (c *Client) FetchLatest(ctx context.Context) []models.RawFeedItem {
	items := make([]models.RawFeedItem, 0, len(categories.All))

	for _, cat := range categories.All {
		item, err := c.fetchSection(ctx, cat)
		if err != nil {
			log.Warn().Err(err).Str("category", cat.Name).Msg("Skipping category, feed fetch failed")
			continue
		}
		if item == nil {
			log.Debug().Str("category", cat.Name).Msg("Feed returned no items for category")
			continue
		}
		items = append(items, *item)
	}

	return items
}

// fetchSection requests the single newest item of one section. A nil item
// with nil error means the section had nothing to offer.
func (c *Client) fetchSection(ctx context.Context, cat categories.Category) (*models.RawFeedItem, error) {
	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("section", cat.Section)
	params.Set("order-by", "newest")
	params.Set("show-fields", "bodyText,headline,thumbnail")
	params.Set("lang", "en")
	params.Set("page-size", "1")

	reqURL := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching section %s: %w", cat.Section, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching section %s: unexpected status %s", cat.Section, resp.Status)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding section %s response: %w", cat.Section, err)
	}

	if len(payload.Response.Results) == 0 {
		return nil, nil
	}

	fields := payload.Response.Results[0].Fields
	if fields.Headline == "" || fields.BodyText == "" {
		return nil, fmt.Errorf("section %s item is missing required fields", cat.Section)
	}

	return &models.RawFeedItem{
		Headline:  fields.Headline,
		Body:      fields.BodyText,
		Category:  cat.Name,
		Thumbnail: fields.Thumbnail,
	}, nil
}
