package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// DefaultModel handles extraction and planning tasks.
	DefaultModel = "gemini-2.0-flash"
	// FilterModel is the cheaper model used for inventory search.
	FilterModel = "gemini-2.0-flash-lite"

	defaultTimeout = 30 * time.Second
)

// GeminiExtractor implements Extractor against the Gemini API.
type GeminiExtractor struct {
	client  *genai.Client
	model   string
	filter  string
	timeout time.Duration
	log     *zap.Logger
}

// GeminiOption configures a GeminiExtractor.
type GeminiOption func(*GeminiExtractor)

// WithModel overrides the primary model.
func WithModel(model string) GeminiOption {
	return func(g *GeminiExtractor) { g.model = model }
}

// WithFilterModel overrides the model used for inventory filtering.
func WithFilterModel(model string) GeminiOption {
	return func(g *GeminiExtractor) { g.filter = model }
}

// WithTimeout sets the per-call deadline.
func WithTimeout(d time.Duration) GeminiOption {
	return func(g *GeminiExtractor) { g.timeout = d }
}

// NewGeminiExtractor builds an extractor from an API key.
func NewGeminiExtractor(ctx context.Context, apiKey string, log *zap.Logger, opts ...GeminiOption) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	g := &GeminiExtractor{
		client:  client,
		model:   DefaultModel,
		filter:  FilterModel,
		timeout: defaultTimeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GeminiExtractor) generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		if strings.Contains(err.Error(), "429") {
			g.log.Warn("gemini rate limited", zap.String("model", model))
			return "", fmt.Errorf("generate content: %w", ErrRateLimited)
		}
		g.log.Warn("gemini call failed", zap.String("model", model), zap.Error(err))
		return "", fmt.Errorf("generate content: %w: %v", ErrUnavailable, err)
	}
	text := resp.Text()
	g.log.Debug("gemini response",
		zap.String("model", model),
		zap.Duration("took", time.Since(start)),
		zap.Int("chars", len(text)))
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty model reply: %w", ErrUnparsable)
	}
	return text, nil
}

func (g *GeminiExtractor) ParseLending(ctx context.Context, query string, tools []ToolContext, people []string) (*LendingParse, error) {
	text, err := g.generate(ctx, g.model, lendingPrompt(query, tools, people))
	if err != nil {
		return nil, err
	}
	return decodeLendingParse(text)
}

func (g *GeminiExtractor) ParseNewTool(ctx context.Context, raw string) (*ToolParse, error) {
	text, err := g.generate(ctx, g.model, newToolPrompt(raw))
	if err != nil {
		return nil, err
	}
	var parse ToolParse
	if err := decodeReply(text, &parse); err != nil {
		return nil, err
	}
	return &parse, nil
}

func (g *GeminiExtractor) CheckDuplicate(ctx context.Context, candidate *ToolParse, existing []ToolContext) (*DuplicateVerdict, error) {
	text, err := g.generate(ctx, g.model, duplicatePrompt(candidate, existing))
	if err != nil {
		return nil, err
	}
	var verdict DuplicateVerdict
	if err := decodeReply(text, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

func (g *GeminiExtractor) FilterInventory(ctx context.Context, query string, tools []ToolContext) ([]string, error) {
	text, err := g.generate(ctx, g.filter, filterPrompt(query, tools))
	if err != nil {
		return nil, err
	}
	return decodeIDList(text, "match_ids")
}

func (g *GeminiExtractor) FindDeletions(ctx context.Context, query string, tools []ToolContext) ([]string, error) {
	text, err := g.generate(ctx, g.model, deletionPrompt(query, tools))
	if err != nil {
		return nil, err
	}
	return decodeIDList(text, "delete_ids")
}

func (g *GeminiExtractor) ParseLocationUpdate(ctx context.Context, query string, tools []ToolContext) (*LocationUpdate, error) {
	text, err := g.generate(ctx, g.model, locationPrompt(query, tools))
	if err != nil {
		return nil, err
	}
	return decodeLocationUpdate(text)
}

func (g *GeminiExtractor) PlanProject(ctx context.Context, query string, inventory []PlanContext) (*ProjectPlan, error) {
	text, err := g.generate(ctx, g.model, planPrompt(query, inventory))
	if err != nil {
		return nil, err
	}
	return decodeProjectPlan(text)
}

func (g *GeminiExtractor) Advise(ctx context.Context, query string, tools []ToolContext) (string, error) {
	return g.generate(ctx, g.model, advicePrompt(query, tools))
}
