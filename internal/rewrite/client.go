// Package rewrite turns source stories into original articles using a
// generative text model.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lurnetreau/newsapi/internal/models"
)

const requestTimeout = 60 * time.Second

const promptTemplate = `Rewrite the following article with a new headline. Output as a JSON object with "title" and "content" keys.

Original headline: %s

Source:
%s`

// Client invokes the generative text model over its REST API and parses
// the structured JSON it is asked to produce. Any failure surfaces as an
// error; callers treat that as "skip this item", never as fatal.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a rewrite client for the given model endpoint and key.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Rewrite asks the model for a fresh title and content based on the source
// story. Code-fence markup is stripped from the model's output before
// parsing, and a response without a usable title is an error.
func (c *Client) Rewrite(ctx context.Context, headline, body string) (*models.GeneratedArticle, error) {
	prompt := fmt.Sprintf(promptTemplate, headline, body)

	reqBody, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling text model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("text model error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding model response: %w", err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("model returned no candidates")
	}

	text := stripFences(payload.Candidates[0].Content.Parts[0].Text)

	var article models.GeneratedArticle
	if err := json.Unmarshal([]byte(text), &article); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	if strings.TrimSpace(article.Title) == "" {
		return nil, fmt.Errorf("model output is missing a title")
	}

	return &article, nil
}

// stripFences removes markdown code-fence markup that models wrap around
// JSON output despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
