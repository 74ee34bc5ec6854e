package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/internal/prompts"
	"github.com/JaimeStill/patrol/pkg/credentials"
	"github.com/JaimeStill/patrol/pkg/formatting"
)

type gemini struct {
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	prompts prompts.Reader
	logger  *slog.Logger

	mu      sync.Mutex
	clients map[credentials.Credential]*genai.Client
}

// NewGemini creates a Client backed by the Gemini generateContent API.
// One SDK client is created lazily per credential and reused.
func NewGemini(cfg *Config, reader prompts.Reader, logger *slog.Logger) Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &gemini{
		baseURL: cfg.BaseURL,
		timeout: cfg.TimeoutDuration(),
		limiter: limiter,
		prompts: reader,
		logger:  logger.With("system", "inference"),
		clients: make(map[credentials.Credential]*genai.Client),
	}
}

func (g *gemini) ClassifyBulk(
	ctx context.Context,
	group []items.Item,
	cred credentials.Credential,
	model string,
) (map[int]Label, error) {
	text, err := g.generate(ctx, cred, model, prompts.StageScreen, BulkMessage(group))
	if err != nil {
		return nil, err
	}

	labels, err := formatting.Parse[[]Label](text)
	if err != nil {
		return nil, Fail(MalformedPayload, 0, err)
	}

	return collect(group, labels), nil
}

func (g *gemini) ClassifyOne(
	ctx context.Context,
	item items.Item,
	prior Prior,
	cred credentials.Credential,
	model string,
) (Verdict, error) {
	text, err := g.generate(ctx, cred, model, prompts.StageRefine, RefineMessage(item, prior))
	if err != nil {
		return Verdict{}, err
	}

	verdict, err := formatting.Parse[Verdict](text)
	if err != nil {
		return Verdict{}, Fail(MalformedPayload, 0, err)
	}

	return verdict, nil
}

func (g *gemini) generate(
	ctx context.Context,
	cred credentials.Credential,
	model string,
	stage prompts.Stage,
	message string,
) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", Fail(Transient, 0, err)
		}
	}

	system, err := prompts.Compose(ctx, g.prompts, stage)
	if err != nil {
		return "", Fail(Transient, 0, err)
	}

	client, err := g.client(ctx, cred)
	if err != nil {
		return "", Fail(BadRequest, 0, err)
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(system)},
		},
		ResponseMIMEType: "application/json",
	}

	resp, err := client.Models.GenerateContent(callCtx, model, genai.Text(message), config)
	if err != nil {
		return "", g.failure(ctx, cred, model, err)
	}

	text := responseText(resp)
	if text == "" {
		return "", Fail(MalformedPayload, 0, errors.New("empty response"))
	}

	return text, nil
}

func (g *gemini) client(ctx context.Context, cred credentials.Credential) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[cred]; ok {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  string(cred),
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	g.clients[cred] = c
	return c, nil
}

func (g *gemini) failure(ctx context.Context, cred credentials.Credential, model string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := apiStatus(err)
	if status == 0 {
		return Fail(Transient, 0, err)
	}

	d := StatusDisposition(status)
	g.logger.Debug(
		"inference call failed",
		"credential", cred,
		"model", model,
		"status", status,
		"disposition", d,
	)
	return Fail(d, status, err)
}

func apiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
