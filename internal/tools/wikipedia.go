package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	WikipediaToolName = "wikipedia"
	wikipediaNoResult = "No good Wikipedia Search Result was found"
)

// Wikipedia searches the MediaWiki API and returns page summaries.
type Wikipedia struct {
	BaseURL         string
	MaxResults      int
	MaxContentChars int
	UserAgent       string
	Client          *http.Client
}

type wikipediaResponse struct {
	Query struct {
		Pages []struct {
			PageID  int64  `json:"pageid"`
			Title   string `json:"title"`
			Index   int    `json:"index"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// Spec implements Tool.
func (w *Wikipedia) Spec() Spec {
	return Spec{
		Name: WikipediaToolName,
		Description: "A wrapper around Wikipedia. Useful for when you need to answer general questions about " +
			"people, places, companies, facts, historical events, or other subjects. Input should be a search query.",
		Parameters: QueryParameters(),
	}
}

// Invoke implements Tool.
func (w *Wikipedia) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := parseQuery(args)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", strconv.Itoa(max(w.MaxResults, 1)))
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("exlimit", "max")
	params.Set("redirects", "1")

	req, err := http.NewRequest(http.MethodGet, w.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build wikipedia request: %w", err)
	}
	body, err := doRequest(ctx, w.client(), req, w.UserAgent)
	if err != nil {
		return "", fmt.Errorf("wikipedia search failed: %w", err)
	}

	var resp wikipediaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode wikipedia response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("wikipedia error %s: %s", resp.Error.Code, resp.Error.Info)
	}

	pages := resp.Query.Pages
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	var blocks []string
	for _, p := range pages {
		if len(blocks) >= max(w.MaxResults, 1) {
			break
		}
		if strings.TrimSpace(p.Extract) == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Page: %s\nSummary: %s", p.Title, strings.TrimSpace(p.Extract)))
	}
	if len(blocks) == 0 {
		return wikipediaNoResult, nil
	}
	return truncate(strings.Join(blocks, "\n\n"), w.MaxContentChars), nil
}

func (w *Wikipedia) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return defaultHTTPClient()
}
