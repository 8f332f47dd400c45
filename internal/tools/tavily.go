package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const TavilyToolName = "tavily_search_results_json"

// Tavily queries the Tavily web search API.
type Tavily struct {
	BaseURL         string
	APIKey          string
	MaxResults      int
	MaxContentChars int
	UserAgent       string
	Client          *http.Client
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// TavilyResult is one entry of the tool output.
type TavilyResult struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Spec implements Tool.
func (t *Tavily) Spec() Spec {
	return Spec{
		Name: TavilyToolName,
		Description: "A search engine optimized for comprehensive, accurate, and trusted results. Useful for when " +
			"you need to answer questions about current events. Input should be a search query.",
		Parameters: QueryParameters(),
	}
}

// Invoke implements Tool. The output is a JSON array of {url, content}.
func (t *Tavily) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := parseQuery(args)
	if err != nil {
		return "", err
	}
	if t.APIKey == "" {
		return "", fmt.Errorf("tavily API key is not configured")
	}

	payload, err := json.Marshal(tavilyRequest{Query: query, MaxResults: max(t.MaxResults, 1), SearchDepth: "basic"})
	if err != nil {
		return "", fmt.Errorf("failed to marshal tavily request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, t.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	client := t.Client
	if client == nil {
		client = defaultHTTPClient()
	}
	body, err := doRequest(ctx, client, req, t.UserAgent)
	if err != nil {
		return "", fmt.Errorf("tavily search failed: %w", err)
	}

	var resp tavilyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode tavily response: %w", err)
	}

	results := make([]TavilyResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(results) >= max(t.MaxResults, 1) {
			break
		}
		results = append(results, TavilyResult{URL: r.URL, Content: truncate(r.Content, t.MaxContentChars)})
	}
	out, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tavily results: %w", err)
	}
	return string(out), nil
}
