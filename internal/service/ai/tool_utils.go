package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	FetchURLRateLimit    = 5
	FetchURLRateWindow   = time.Minute
	WebSearchHTTPTimeout = 10 * time.Second
	maxFetchBodySize     = 512 * 1024
)

type toolUserContextKey struct{}

// WithToolUser records which user a completion runs for, so side tools can
// apply per-user limits.
func WithToolUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, toolUserContextKey{}, userID)
}

func ToolUserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(toolUserContextKey{}).(string)
	return userID, ok && userID != ""
}

func fetchURL(ctx context.Context, client *http.Client, target string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: WebSearchHTTPTimeout}
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("unsupported url scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "ServiceChat-FetchURL/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch url: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodySize))
	if err != nil {
		return "", err
	}

	return string(body), nil
}

func looksLikeURL(input string) bool {
	lower := strings.ToLower(input)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
