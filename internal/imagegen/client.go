// Package imagegen illustrates articles using a generative image model.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 90 * time.Second

// Client invokes the generative image model over its REST API. It shares
// the fail-soft contract of the rewrite client: any failure surfaces as an
// error and callers skip the illustration rather than abort.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds an image client for the given model endpoint and key.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type predictRequest struct {
	Instances  []instance `json:"instances"`
	Parameters parameters `json:"parameters"`
}

type instance struct {
	Prompt string `json:"prompt"`
}

type parameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type predictResponse struct {
	Predictions []struct {
		URL                string `json:"url"`
		MimeType           string `json:"mimeType"`
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
	} `json:"predictions"`
}

// Generate produces one illustration for an article title in the given
// style and returns a URL for it. Predictions that carry raw image bytes
// instead of a URL are returned as data URIs so the frontend can embed
// them directly.
func (c *Client) Generate(ctx context.Context, title, style string) (string, error) {
	if style == "" {
		style = "photorealistic"
	}
	prompt := fmt.Sprintf("A %s news illustration, no text or lettering, for an article titled: %s", style, title)

	reqBody, err := json.Marshal(predictRequest{
		Instances:  []instance{{Prompt: prompt}},
		Parameters: parameters{SampleCount: 1, AspectRatio: "16:9"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal prediction payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling image model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("image model error %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var payload predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	if len(payload.Predictions) == 0 {
		return "", fmt.Errorf("model returned no predictions")
	}

	p := payload.Predictions[0]
	if p.URL != "" {
		return p.URL, nil
	}
	if p.BytesBase64Encoded != "" {
		mime := p.MimeType
		if mime == "" {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + p.BytesBase64Encoded, nil
	}
	return "", fmt.Errorf("model prediction carried no image")
}
