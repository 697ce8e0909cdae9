// Package search provides the external news search provider.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vigilab/sragwatch/internal/retrieval"
	"github.com/vigilab/sragwatch/internal/tracing"
)

const defaultEndpoint = "https://api.tavily.com/search"

// Provider issues one search request and returns a bounded list of
// documents with raw content.
type Provider interface {
	Search(ctx context.Context, query string) ([]retrieval.Document, error)
}

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey     string
	endpoint   string
	maxResults int
	client     *http.Client
}

// NewTavily constructs a Tavily provider. maxResults bounds the returned
// document count (default 5).
func NewTavily(apiKey string, maxResults int) *Tavily {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Tavily{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// NewTavilyWithEndpoint overrides the API endpoint; used by tests.
func NewTavilyWithEndpoint(apiKey string, maxResults int, endpoint string, client *http.Client) *Tavily {
	t := NewTavily(apiKey, maxResults)
	t.endpoint = endpoint
	if client != nil {
		t.client = client
	}
	return t
}

// Search posts the query and returns up to maxResults documents including
// their raw page content.
func (t *Tavily) Search(ctx context.Context, query string) ([]retrieval.Document, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	body := map[string]any{
		"query":               query,
		"api_key":             t.apiKey,
		"max_results":         t.maxResults,
		"include_raw_content": true,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, t.endpoint)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var response struct {
		Results []struct {
			Title      string `json:"title"`
			URL        string `json:"url"`
			Content    string `json:"content"`
			RawContent string `json:"raw_content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	docs := make([]retrieval.Document, 0, t.maxResults)
	for _, r := range response.Results {
		content := r.RawContent
		if content == "" {
			content = r.Content
		}
		docs = append(docs, retrieval.Document{Content: content, URL: r.URL, Title: r.Title})
		if len(docs) >= t.maxResults {
			break
		}
	}
	return docs, nil
}
