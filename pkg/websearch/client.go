// Package websearch performs web searches through the OpenAI Responses API
// web_search tool and parses the heterogeneous response shapes it returns.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Client performs web searches against the Responses API.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// UserLocation narrows search results geographically.
type UserLocation struct {
	Type    string `json:"type"`
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// SearchRequest is one search invocation.
type SearchRequest struct {
	Query        string
	Model        string
	UserLocation *UserLocation

	// Temperature is omitted from the wire request when nil. Some models
	// reject the parameter outright; see IsTemperatureRejected.
	Temperature *float64
}

// Source is a discrete URL found in the response, either a structured
// search source or an inline citation annotation.
type Source struct {
	Title string
	URL   string
}

// SearchResponse is the parsed search result.
type SearchResponse struct {
	// Sources come from web_search_call action sources.
	Sources []Source
	// Citations come from url_citation annotations in message content.
	Citations []Source
	// AnalysisText is the synthesized prose the model wrote alongside the
	// sources, when present.
	AnalysisText string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default search model.
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = model
	}
}

// WithAzure switches to Azure OpenAI conventions: the web_search_preview
// tool type and api-key header auth.
func WithAzure() Option {
	return func(c *httpClient) {
		c.azure = true
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	azure   bool
	http    *http.Client
}

// NewClient creates a Responses API search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type toolParam struct {
	Type         string        `json:"type"`
	UserLocation *UserLocation `json:"user_location,omitempty"`
}

type responsesRequest struct {
	Model       string      `json:"model"`
	Tools       []toolParam `json:"tools"`
	ToolChoice  string      `json:"tool_choice"`
	Include     []string    `json:"include"`
	Input       string      `json:"input"`
	Temperature *float64    `json:"temperature,omitempty"`
}

// Wire shapes for the slices of the Responses API output we consume.
type responsesOutput struct {
	Output []outputItem `json:"output"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Action  *searchAction `json:"action,omitempty"`
	Content []contentPart `json:"content,omitempty"`
}

type searchAction struct {
	Sources []wireSource `json:"sources"`
}

type wireSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type contentPart struct {
	Text        string       `json:"text"`
	Annotations []annotation `json:"annotations"`
}

type annotation struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	toolType := "web_search"
	if c.azure {
		toolType = "web_search_preview"
	}

	body := responsesRequest{
		Model:       model,
		Tools:       []toolParam{{Type: toolType, UserLocation: req.UserLocation}},
		ToolChoice:  "auto",
		Include:     []string{"web_search_call.action.sources"},
		Input:       req.Query,
		Temperature: req.Temperature,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "websearch: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.azure {
		httpReq.Header.Set("api-key", c.apiKey)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("websearch: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed responsesOutput
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, eris.Wrap(err, "websearch: unmarshal response")
	}

	return collect(parsed), nil
}

// collect flattens the output items into sources, citations and analysis
// prose. Standard OpenAI puts URLs in web_search_call action sources;
// Azure puts them in url_citation annotations on the message.
func collect(parsed responsesOutput) *SearchResponse {
	out := &SearchResponse{}
	for _, item := range parsed.Output {
		switch item.Type {
		case "web_search_call":
			if item.Action == nil {
				continue
			}
			for _, s := range item.Action.Sources {
				if s.URL == "" {
					continue
				}
				out.Sources = append(out.Sources, Source{Title: s.Title, URL: s.URL})
			}
		case "message":
			for _, part := range item.Content {
				if part.Text != "" {
					out.AnalysisText = part.Text
				}
				for _, a := range part.Annotations {
					if a.Type != "url_citation" || a.URL == "" {
						continue
					}
					out.Citations = append(out.Citations, Source{Title: a.Title, URL: a.URL})
				}
			}
		}
	}
	return out
}
