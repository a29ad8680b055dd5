package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"servicechat/internal/observability"
	"servicechat/internal/ratelimit"
)

// ToolOptions mirrors the completion side tool flags.
type ToolOptions struct {
	WebSearch  bool
	URLContext bool
}

func InitToolsChain(opts ToolOptions) []tool.BaseTool {
	var tools []tool.BaseTool

	if opts.WebSearch {
		if ws := InitWebSearch(InitGooglesearch(), InitDDGsearch()); ws != nil {
			tools = append(tools, ws)
		}
	}
	if opts.URLContext {
		if fu := InitFetchURL(); fu != nil {
			tools = append(tools, fu)
		}
	}
	return tools
}

func InitWebSearch(googleTool, duckTool tool.InvokableTool) tool.InvokableTool {
	if googleTool == nil && duckTool == nil {
		observability.Logger().Warn("web search tool disabled: no search providers available")
		return nil
	}

	ws := &webSearchTool{
		google: googleTool,
		duck:   duckTool,
	}

	info := &schema.ToolInfo{
		Name: "web_search",
		Desc: "Search the web for current information about government forms and services; " +
			"automatically falls back to another provider if needed.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Natural language query to search",
				Type:     schema.String,
				Required: true,
			},
		}),
	}

	return utils.NewTool(info, ws.run)
}

type webSearchTool struct {
	google tool.InvokableTool
	duck   tool.InvokableTool
}

type webSearchParams struct {
	Query string `json:"query"`
}

func (w *webSearchTool) run(ctx context.Context, params *webSearchParams) (string, error) {
	if params == nil {
		return "", errors.New("missing search parameters")
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}
	log := observability.LoggerFromContext(ctx)

	payloadBytes, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("marshal search params: %w", err)
	}
	payload := string(payloadBytes)

	if w.google != nil {
		if result, err := w.google.InvokableRun(ctx, payload); err == nil {
			return result, nil
		} else {
			log.Warn("google search failed", "error", err)
		}
	}

	if w.duck != nil {
		if result, err := w.duck.InvokableRun(ctx, payload); err == nil {
			return result, nil
		} else {
			log.Warn("duckduckgo search failed", "error", err)
		}
	}

	return "", errors.New("no search provider succeeded")
}

// fetch url tool
type fetchURLTool struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
}

type fetchURLParams struct {
	URL string `json:"url"`
}

func InitFetchURL() tool.InvokableTool {
	fetcher := &fetchURLTool{
		httpClient: &http.Client{Timeout: WebSearchHTTPTimeout},
		limiter:    ratelimit.NewMemory(FetchURLRateLimit, FetchURLRateWindow),
	}
	info := &schema.ToolInfo{
		Name: "fetch_url",
		Desc: "Fetch the text of a web page, such as an official form or guidance page; " +
			"limited to a few calls per minute per user.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"url": {
				Desc:     "Absolute http or https URL to fetch",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, fetcher.run)
}

func (f *fetchURLTool) run(ctx context.Context, params *fetchURLParams) (string, error) {
	if params == nil {
		return "", errors.New("url is required")
	}
	target := strings.TrimSpace(params.URL)
	if !looksLikeURL(target) {
		return "", errors.New("url must start with http:// or https://")
	}
	key := "anonymous"
	if userID, ok := ToolUserFromContext(ctx); ok {
		key = userID
	}
	if err := f.limiter.Allow(ctx, key); err != nil {
		return "", errors.New("fetch_url rate limit exceeded, please retry in a minute")
	}
	return fetchURL(ctx, f.httpClient, target)
}

// InitDDGsearch Init DDG Search
func InitDDGsearch() tool.InvokableTool {
	duckConfig := &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo Search Tool (no token required)",
		MaxResults: 3,
		Region:     duckduckgo.RegionWT,
		Timeout:    10 * time.Second,
	}
	duckTool, err := duckduckgo.NewTextSearchTool(context.Background(), duckConfig)
	if err != nil {
		observability.Logger().Warn("duckduckgo search tool disabled", "error", err)
		return nil
	}
	return duckTool
}

// InitGooglesearch Init Google Search
func InitGooglesearch() tool.InvokableTool {
	googleAPIKey := os.Getenv("GOOGLE_API_KEY")
	googleSearchEngineID := os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	if googleAPIKey == "" || googleSearchEngineID == "" {
		observability.Logger().Info("google search tool disabled: missing GOOGLE_API_KEY or GOOGLE_SEARCH_ENGINE_ID")
		return nil
	}
	googleTool, err := googlesearch.NewTool(context.Background(), &googlesearch.Config{
		ToolName:       "web_search_google",
		ToolDesc:       "Google Search Tool",
		APIKey:         googleAPIKey,
		SearchEngineID: googleSearchEngineID,
		Lang:           "en",
		Num:            5,
	})
	if err != nil {
		observability.Logger().Warn("google search tool disabled", "error", err)
		return nil
	}
	return googleTool
}
