package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Model selection. Analysis needs real reasoning, so the default is the
// high-end model; the env override exists for cost experiments.
//
// - SCOUT_MODEL: override the analysis model
const (
	ModelSonnet = "claude-sonnet-4-5-20250929"
	ModelHaiku  = "claude-3-5-haiku-20241022"
)

// DefaultModel returns the analysis model, checking SCOUT_MODEL first
func DefaultModel() string {
	if model := os.Getenv("SCOUT_MODEL"); model != "" {
		return model
	}
	return ModelSonnet
}

// AnalystConfig configures the Anthropic-backed analyst
type AnalystConfig struct {
	APIKey             string      // if empty, the SDK reads ANTHROPIC_API_KEY
	Model              string      // default: DefaultModel()
	Retry              RetryConfig // zero value means DefaultRetryConfig()
	MaxConcurrentCalls int64       // bounded concurrency (default: 1, sequential)
	RequestsPerMinute  float64     // rate limit across the batch (default: 30)
}

// AnthropicAnalyst implements Analyst against the Anthropic Messages API.
// It is constructor-injected into the pipeline so tests can substitute a
// deterministic stub; there is no package-level client.
type AnthropicAnalyst struct {
	client  anthropic.Client
	model   string
	retry   RetryConfig
	breaker *circuitBreaker
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// Compile-time check that AnthropicAnalyst implements Analyst
var _ Analyst = (*AnthropicAnalyst)(nil)

// NewAnthropicAnalyst creates the production analyst
func NewAnthropicAnalyst(cfg *AnalystConfig) (*AnthropicAnalyst, error) {
	if cfg == nil {
		cfg = &AnalystConfig{}
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, fmt.Errorf("no API key: set ANTHROPIC_API_KEY or provide APIKey in config")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel()
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialBackoff == 0 {
		retry = DefaultRetryConfig()
	}
	concurrency := cfg.MaxConcurrentCalls
	if concurrency <= 0 {
		concurrency = 1
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	return &AnthropicAnalyst{
		client:  anthropic.NewClient(opts...),
		model:   model,
		retry:   retry,
		breaker: newCircuitBreaker(retry),
		sem:     semaphore.NewWeighted(concurrency),
		limiter: rate.NewLimiter(rate.Limit(rpm/60.0), 1),
	}, nil
}

// Analyze sends one enrichment request and parses the structured response.
// Calls are rate-limited and concurrency-bounded to respect third-party
// limits; retries and the circuit breaker handle transient failures.
func (a *AnthropicAnalyst) Analyze(ctx context.Context, req *Request) (*Analysis, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire analysis slot: %w", err)
	}
	defer a.sem.Release(1)

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	prompt, err := buildAnalysisPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	start := time.Now()
	var response *anthropic.Message
	err = retryWithBackoff(ctx, a.retry, a.breaker, "analysis", func(attemptCtx context.Context) error {
		resp, apiErr := a.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: 4096,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	analysis, err := parseResponse[Analysis](responseText, "analysis response for "+req.Item.ID)
	if err != nil {
		return nil, err
	}
	if err := analysis.Validate(); err != nil {
		return nil, fmt.Errorf("malformed analysis for %s: %w", req.Item.ID, err)
	}
	if err := analysis.Finalize(); err != nil {
		return nil, fmt.Errorf("malformed analysis for %s: %w", req.Item.ID, err)
	}

	slog.Debug("analysis complete",
		"item", req.Item.ID,
		"subject", analysis.SubjectName,
		"duration", time.Since(start),
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens)
	return &analysis, nil
}

// buildAnalysisPrompt serializes the request context into the analysis
// prompt. The project summary is already trimmed; no source code is ever
// forwarded.
func buildAnalysisPrompt(req *Request) (string, error) {
	context, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are a conservative technology advisor. A project is considering the action %s for an externally observed technology signal. Analyze whether adopting it is worth disturbing a working stack.

Context (feed item, project summary, prefilter match, maturity gate):

%s

Respond with ONLY a JSON object, no prose, with these fields:
{
  "claims": [{"kind": "FACT|INFERENCE|ASSUMPTION", "text": "...", "source": "required for FACT", "reliability": 0.0, "derived_from": ["required for INFERENCE"], "confidence": 0.0}],
  "effort": "day-range string, e.g. 3-5 days",
  "complexity": "low|medium|high",
  "breaking_change": false,
  "reversibility": "easy|moderate|hard",
  "regression_risk": "low|medium|high (optional)",
  "learning_curve": "gentle|moderate|steep (optional)",
  "dependencies_affected": 0,
  "steps": ["ordered adoption steps"],
  "impact": {
    "security": {"direction": "improves|neutral|degrades", "detail": "..."},
    "performance": {"direction": "...", "detail": "..."},
    "maintainability": {"direction": "...", "detail": "..."},
    "cost": {"direction": "...", "detail": "..."},
    "overall_risk": "low|medium|high|critical"
  },
  "gains": ["..."], "losses": ["..."],
  "failure_modes": [{"mode": "...", "probability": "low|medium|high", "mitigation": "..."}],
  "limitations": ["..."],
  "technical_summary": "engineer-facing write-up",
  "human_summary": "non-technical write-up",
  "subject_name": "canonical technology name",
  "subject_type": "library|framework|service|practice",
  "subject_version": "if known",
  "subject_ecosystem": "if known"
}

Tag every statement honestly: FACT only with a named source, INFERENCE with its derivation, ASSUMPTION otherwise.`, req.Action, string(context)), nil
}
