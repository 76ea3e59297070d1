package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/troikatech/voice-gateway/pkg/circuitbreaker"
)

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// WebSearch answers open questions through the Brave search API. A
// circuit breaker shields calls from a backend that is hard down, so
// the caller hears a quick apology instead of waiting out timeouts.
type WebSearch struct {
	client  *resty.Client
	apiKey  string
	breaker *circuitbreaker.CircuitBreaker
}

func NewWebSearch(baseURL, apiKey string) *WebSearch {
	return &WebSearch{
		client:  resty.New().SetBaseURL(baseURL).SetTimeout(8 * time.Second),
		apiKey:  apiKey,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

func (t *WebSearch) Name() string { return "web_search" }

func (t *WebSearch) Definition() map[string]interface{} {
	return funcDef("web_search",
		"Search the web for current information, news, facts or anything the assistant does not know.",
		map[string]interface{}{
			"query": strProp("The search query."),
		},
		"query")
}

func (t *WebSearch) Execute(ctx context.Context, args map[string]interface{}, _ *Context) (string, error) {
	query := argString(args, "query")
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	var body braveResponse
	err := t.breaker.Execute(ctx, func() error {
		resp, err := t.client.R().
			SetContext(ctx).
			SetHeader("X-Subscription-Token", t.apiKey).
			SetQueryParam("q", query).
			SetQueryParam("count", "5").
			SetResult(&body).
			Get("/web/search")
		if err != nil {
			return fmt.Errorf("search request: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("search request: status %d", resp.StatusCode())
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return "", fmt.Errorf("search is temporarily unavailable")
	}
	if err != nil {
		return "", err
	}
	if len(body.Web.Results) == 0 {
		return "No results found for that query.", nil
	}

	var b strings.Builder
	for i, r := range body.Web.Results {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "%s: %s\n", r.Title, r.Description)
	}
	return strings.TrimSpace(b.String()), nil
}
