package tools

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	ArxivToolName = "arxiv"
	arxivNoResult = "No good Arxiv Result was found"
)

var (
	arxivNewID     = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	arxivOldID     = regexp.MustCompile(`^[a-z\-]+(\.[A-Z]{2})?/\d{7}(v\d+)?$`)
	arxivSpaceRune = regexp.MustCompile(`\s+`)
)

// Arxiv searches the arXiv Atom API.
type Arxiv struct {
	BaseURL         string
	MaxResults      int
	MaxContentChars int
	UserAgent       string
	Client          *http.Client
}

type arxivFeed struct {
	Entries []arxivEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

type arxivEntry struct {
	ID        string `xml:"http://www.w3.org/2005/Atom id"`
	Title     string `xml:"http://www.w3.org/2005/Atom title"`
	Summary   string `xml:"http://www.w3.org/2005/Atom summary"`
	Published string `xml:"http://www.w3.org/2005/Atom published"`
	Authors   []struct {
		Name string `xml:"http://www.w3.org/2005/Atom name"`
	} `xml:"http://www.w3.org/2005/Atom author"`
}

// Spec implements Tool.
func (a *Arxiv) Spec() Spec {
	return Spec{
		Name: ArxivToolName,
		Description: "A wrapper around Arxiv.org. Useful for when you need to answer questions about Physics, " +
			"Mathematics, Computer Science, Quantitative Biology, Quantitative Finance, Statistics, Electrical " +
			"Engineering, and Economics from scientific articles on arxiv.org. Input should be a search query.",
		Parameters: QueryParameters(),
	}
}

// Invoke implements Tool.
func (a *Arxiv) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := parseQuery(args)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	if ids, ok := arxivIDs(query); ok {
		params.Set("id_list", strings.Join(ids, ","))
	} else {
		params.Set("search_query", "all:"+query)
	}
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(max(a.MaxResults, 1)))

	req, err := http.NewRequest(http.MethodGet, a.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build arxiv request: %w", err)
	}
	body, err := doRequest(ctx, a.client(), req, a.UserAgent)
	if err != nil {
		return "", fmt.Errorf("arxiv search failed: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", fmt.Errorf("failed to decode arxiv response: %w", err)
	}

	var blocks []string
	for _, e := range feed.Entries {
		if len(blocks) >= max(a.MaxResults, 1) {
			break
		}
		// arXiv reports query errors as a single entry titled "Error".
		if strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.Title) == "Error" {
			continue
		}
		authors := make([]string, 0, len(e.Authors))
		for _, au := range e.Authors {
			authors = append(authors, strings.TrimSpace(au.Name))
		}
		published := strings.TrimSpace(e.Published)
		if len(published) >= 10 {
			published = published[:10]
		}
		blocks = append(blocks, fmt.Sprintf("Published: %s\nTitle: %s\nAuthors: %s\nSummary: %s",
			published, clean(e.Title), strings.Join(authors, ", "), clean(e.Summary)))
	}
	if len(blocks) == 0 {
		return arxivNoResult, nil
	}
	return truncate(strings.Join(blocks, "\n\n"), a.MaxContentChars), nil
}

func (a *Arxiv) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return defaultHTTPClient()
}

// arxivIDs reports whether every word of q is an arXiv identifier.
func arxivIDs(q string) ([]string, bool) {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return nil, false
	}
	for _, f := range fields {
		if !arxivNewID.MatchString(f) && !arxivOldID.MatchString(f) {
			return nil, false
		}
	}
	return fields, true
}

func clean(s string) string {
	return strings.TrimSpace(arxivSpaceRune.ReplaceAllString(s, " "))
}
