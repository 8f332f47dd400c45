package tools

import (
	"net/http"
	"time"

	"github.com/xiaot623/gogo/researchbot/internal/config"
)

// NewDefaultRegistry registers the wikipedia, arxiv and tavily tools, in that order.
func NewDefaultRegistry(search config.SearchConfig, toolTimeout time.Duration, cache Cache) *Registry {
	opts := []RegistryOption{WithTimeout(toolTimeout)}
	if cache != nil {
		opts = append(opts, WithCache(cache))
	}
	r := NewRegistry(opts...)
	client := &http.Client{Timeout: 30 * time.Second}

	r.MustRegister(&Wikipedia{
		BaseURL:         search.WikipediaURL,
		MaxResults:      search.MaxResults,
		MaxContentChars: search.MaxContentChars,
		UserAgent:       search.UserAgent,
		Client:          client,
	}, search.WikipediaRPS)
	r.MustRegister(&Arxiv{
		BaseURL:         search.ArxivURL,
		MaxResults:      search.MaxResults,
		MaxContentChars: search.MaxContentChars,
		UserAgent:       search.UserAgent,
		Client:          client,
	}, search.ArxivRPS)
	r.MustRegister(&Tavily{
		BaseURL:         search.TavilyURL,
		APIKey:          search.TavilyAPIKey,
		MaxResults:      search.MaxResults,
		MaxContentChars: search.MaxContentChars,
		UserAgent:       search.UserAgent,
		Client:          client,
	}, search.TavilyRPS)
	return r
}
