package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"servicechat/internal/config"
	"servicechat/internal/models"
	"servicechat/internal/ratelimit"
)

var sampleWindow = []models.Turn{
	{Role: models.RoleSystem, Text: "you help with forms"},
	{Role: models.RoleUser, Text: "I just had a baby"},
	{Role: models.RoleModel, Text: "Congratulations"},
	{Role: models.RoleUser, Text: "what forms do I need?"},
}

type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = cfg
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func TestGenAIGatewayComplete(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("You need a birth registration form.")}
	gw := &GenAIGateway{
		models:         gen,
		model:          "gemini-2.5-flash",
		thinkingBudget: 3798,
		webSearch:      true,
		urlContext:     true,
	}

	reply, err := gw.Complete(context.Background(), sampleWindow)
	require.NoError(t, err)
	require.Equal(t, "You need a birth registration form.", reply)

	require.Equal(t, "gemini-2.5-flash", gen.model)
	require.Len(t, gen.contents, 3)
	require.Equal(t, "user", gen.contents[0].Role)
	require.Equal(t, "model", gen.contents[1].Role)
	require.Equal(t, "what forms do I need?", gen.contents[2].Parts[0].Text)

	require.NotNil(t, gen.config.SystemInstruction)
	require.Equal(t, "you help with forms", gen.config.SystemInstruction.Parts[0].Text)
	require.Equal(t, int32(3798), *gen.config.ThinkingConfig.ThinkingBudget)
	require.Len(t, gen.config.Tools, 2)
	require.NotNil(t, gen.config.Tools[0].URLContext)
	require.NotNil(t, gen.config.Tools[1].GoogleSearch)
}

func TestGenAIGatewayToolFlags(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("ok")}
	gw := &GenAIGateway{models: gen, model: "m"}

	_, err := gw.Complete(context.Background(), sampleWindow)
	require.NoError(t, err)
	require.Empty(t, gen.config.Tools)
}

func TestGenAIGatewayFailures(t *testing.T) {
	backendErr := errors.New("quota exceeded")
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{name: "backend error", gen: &fakeGenerator{err: backendErr}},
		{name: "empty reply", gen: &fakeGenerator{resp: &genai.GenerateContentResponse{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &GenAIGateway{models: tt.gen, model: "m"}
			_, err := gw.Complete(context.Background(), sampleWindow)
			require.ErrorIs(t, err, ErrCompletionUnavailable)
		})
	}

	gw := &GenAIGateway{models: &fakeGenerator{err: backendErr}, model: "m"}
	_, err := gw.Complete(context.Background(), sampleWindow)
	require.ErrorIs(t, err, backendErr)
}

func TestEinoGatewayComplete(t *testing.T) {
	var got []*schema.Message
	gw := &EinoGateway{
		provider: "openai",
		generate: func(_ context.Context, input []*schema.Message) (*schema.Message, error) {
			got = input
			return schema.AssistantMessage("Here is the list.", nil), nil
		},
	}

	reply, err := gw.Complete(context.Background(), sampleWindow)
	require.NoError(t, err)
	require.Equal(t, "Here is the list.", reply)
	require.Len(t, got, 4)
	require.Equal(t, schema.System, got[0].Role)
	require.Equal(t, schema.User, got[1].Role)
	require.Equal(t, schema.Assistant, got[2].Role)
	require.Equal(t, "what forms do I need?", got[3].Content)
}

func TestEinoGatewayFailures(t *testing.T) {
	for _, gen := range []generateFunc{
		func(context.Context, []*schema.Message) (*schema.Message, error) {
			return nil, context.DeadlineExceeded
		},
		func(context.Context, []*schema.Message) (*schema.Message, error) {
			return &schema.Message{Role: schema.Assistant}, nil
		},
	} {
		gw := &EinoGateway{provider: "claude", generate: gen}
		_, err := gw.Complete(context.Background(), sampleWindow)
		require.ErrorIs(t, err, ErrCompletionUnavailable)
	}
}

func TestNewRejectsMissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := New(context.Background(), config.Default())
	require.Error(t, err)

	cfg := config.Default()
	cfg.Completion.Engine = "carrier-pigeon"
	_, err = New(context.Background(), cfg)
	require.Error(t, err)
}

func TestGeminiClientConfigHonorsBaseURL(t *testing.T) {
	cfg := geminiClientConfig("key", "")
	require.Equal(t, "key", cfg.APIKey)
	require.Equal(t, genai.BackendGeminiAPI, cfg.Backend)
	require.Empty(t, cfg.HTTPOptions.BaseURL)

	cfg = geminiClientConfig("key", "https://gemini-proxy.internal/")
	require.Equal(t, "https://gemini-proxy.internal/", cfg.HTTPOptions.BaseURL)
}

func TestNewEinoGeminiUsesBaseURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"proxied"}]}}]}`)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Completion.Engine = config.EngineEino
	cfg.Completion.Provider = "gemini"
	cfg.Providers = map[string]config.ProviderConfig{"gemini": {APIKey: "key", BaseURL: srv.URL}}
	disabled := false
	cfg.Completion.WebSearch = &disabled
	cfg.Completion.URLContext = &disabled

	gw, err := NewEinoGateway(context.Background(), cfg)
	require.NoError(t, err)
	reply, err := gw.Complete(context.Background(), sampleWindow)
	require.NoError(t, err)
	require.Equal(t, "proxied", reply)
	require.Positive(t, hits.Load())
}

func TestSystemTextJoinsInstructions(t *testing.T) {
	window := []models.Turn{
		{Role: models.RoleSystem, Text: "one"},
		{Role: models.RoleUser, Text: "hi"},
		{Role: models.RoleSystem, Text: "two"},
	}
	require.Equal(t, "one\n\ntwo", systemText(window))
	require.Equal(t, "", systemText(window[1:2]))
}

type fakeSearch struct {
	name   string
	result string
	err    error
	calls  int
}

func (f *fakeSearch) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: f.name}, nil
}

func (f *fakeSearch) InvokableRun(_ context.Context, _ string, _ ...tool.Option) (string, error) {
	f.calls++
	return f.result, f.err
}

func TestWebSearchFallsBackToDuckDuckGo(t *testing.T) {
	google := &fakeSearch{name: "google", err: errors.New("quota")}
	duck := &fakeSearch{name: "ddg", result: "ddg results"}
	ws := &webSearchTool{google: google, duck: duck}

	out, err := ws.run(context.Background(), &webSearchParams{Query: "nsw birth registration"})
	require.NoError(t, err)
	require.Equal(t, "ddg results", out)
	require.Equal(t, 1, google.calls)
	require.Equal(t, 1, duck.calls)

	_, err = ws.run(context.Background(), &webSearchParams{Query: "  "})
	require.Error(t, err)

	duck.err = errors.New("down")
	_, err = ws.run(context.Background(), &webSearchParams{Query: "forms"})
	require.Error(t, err)
}

func TestInitToolsChainHonorsFlags(t *testing.T) {
	require.Nil(t, InitWebSearch(nil, nil))
	require.Empty(t, InitToolsChain(ToolOptions{}))
	require.Len(t, InitToolsChain(ToolOptions{URLContext: true}), 1)
}

func TestFetchURLTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "Change of address form")
	}))
	defer srv.Close()

	f := &fetchURLTool{httpClient: srv.Client(), limiter: ratelimit.NewMemory(2, time.Hour)}
	ctx := WithToolUser(context.Background(), "alice")

	body, err := f.run(ctx, &fetchURLParams{URL: srv.URL + "/form"})
	require.NoError(t, err)
	require.Equal(t, "Change of address form", body)

	_, err = f.run(ctx, &fetchURLParams{URL: srv.URL + "/missing"})
	require.Error(t, err)

	// third call for alice exceeds the limit
	_, err = f.run(ctx, &fetchURLParams{URL: srv.URL + "/form"})
	require.Error(t, err)

	_, err = f.run(context.Background(), &fetchURLParams{URL: "ftp://example.com"})
	require.Error(t, err)
}

func TestToolUserContext(t *testing.T) {
	_, ok := ToolUserFromContext(context.Background())
	require.False(t, ok)

	user, ok := ToolUserFromContext(WithToolUser(context.Background(), "bob"))
	require.True(t, ok)
	require.Equal(t, "bob", user)

	_, ok = ToolUserFromContext(WithToolUser(context.Background(), ""))
	require.False(t, ok)
}
