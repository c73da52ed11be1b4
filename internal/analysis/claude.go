package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/dealflow-cli/internal/cost"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/pkg/anthropic"
)

const screeningSystemPrompt = `You are an acquisition analyst screening companies for a buy-side team. For each company in the input, assess acquisition attractiveness from the supplied financials. Respond with a valid JSON array, one object per company, in input order: [{"orgnr": "<orgnr>", "company_name": "<name>", "screening_score": <0-100 or null>, "risk_flag": "Low"|"Medium"|"High", "brief_summary": "<one sentence>"}]`

const deepSystemPrompt = `You are an acquisition analyst producing a structured deep-dive assessment of one company. Respond with a valid JSON object: {"orgnr": "<orgnr>", "company_name": "<name>", "summary": "<paragraph>", "recommendation": "<pursue|monitor|pass with rationale>", "confidence": <0-5>, "risk_score": <0-5>, "financial_grade": "A"-"D", "commercial_grade": "A"-"D", "operational_grade": "A"-"D", "next_steps": ["<step>"], "sections": [{"section_type": "<market|financials|operations|risks>", "content": "<markdown>", "metrics": [], "confidence": <0-1>}], "metrics": [{"name": "<name>", "value": <number>, "unit": "<unit>", "source": "<source>", "year": <year>, "confidence": <0-1>}]}`

const reportSystemPrompt = `You are an acquisition analyst writing an operational-uplift report for one company. Respond with a valid JSON object: {"business_model": "<narrative>", "weaknesses": ["<weakness>"], "levers": [{"name": "<lever>", "impact": "low|medium|high", "effort": "low|medium|high", "category": "<category>"}], "impact_range": {"low": <number>, "high": <number>, "unit": "MSEK"}, "outreach_angle": "<angle>"}`

// ClaudeConfig tunes the Claude-backed analysis backend.
type ClaudeConfig struct {
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxConcurrency    int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

func (c ClaudeConfig) withDefaults() ClaudeConfig {
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5-20250929"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	return c
}

// ClaudeBackend implements Backend on the Anthropic messages API.
// Screening sends the whole selection in one message; deep dive fans out
// per company under a concurrency cap and rate limiter. Report generation
// always returns a populated body, never a status-only acknowledgement.
type ClaudeBackend struct {
	client  anthropic.Client
	cfg     ClaudeConfig
	costs   *cost.Calculator
	limiter *rate.Limiter
}

// NewClaudeBackend creates a ClaudeBackend. Zero config fields fall back
// to defaults; a nil calculator prices with the default rates.
func NewClaudeBackend(client anthropic.Client, cfg ClaudeConfig, costs *cost.Calculator) *ClaudeBackend {
	cfg = cfg.withDefaults()
	if costs == nil {
		costs = cost.NewCalculator(cost.DefaultRates())
	}
	return &ClaudeBackend{
		client:  client,
		cfg:     cfg,
		costs:   costs,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// priceUsage prices one API call's token usage with the configured rates.
func (b *ClaudeBackend) priceUsage(u anthropic.TokenUsage) float64 {
	return b.costs.Claude(b.cfg.Model,
		int(u.InputTokens), int(u.OutputTokens),
		int(u.CacheCreationInputTokens), int(u.CacheReadInputTokens))
}

func (b *ClaudeBackend) logCost(u anthropic.TokenUsage, phase string) {
	zap.L().Info("cost attribution",
		zap.String("model", b.cfg.Model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", b.priceUsage(u)),
	)
}

func (b *ClaudeBackend) ModelVersion() string {
	return b.cfg.Model
}

func (b *ClaudeBackend) Screen(ctx context.Context, req Request) ([]model.ScreeningResult, error) {
	companiesJSON, err := json.Marshal(req.Companies)
	if err != nil {
		return nil, eris.Wrap(err, "claude: marshal companies")
	}

	prompt := fmt.Sprintf("Screen these %d companies.%s\n\nCompanies:\n%s",
		len(req.Companies), instructionSuffix(req), companiesJSON)

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "claude: rate limit wait")
	}
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.cfg.Model,
		MaxTokens: b.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(screeningSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "claude: screening request")
	}
	b.logCost(resp.Usage, "screening")

	var results []model.ScreeningResult
	if err := json.Unmarshal([]byte(cleanJSONArray(resp.Text())), &results); err != nil {
		return nil, eris.Wrap(err, "claude: parse screening results")
	}
	return results, nil
}

func (b *ClaudeBackend) DeepDive(ctx context.Context, req Request) ([]model.CompanyResult, error) {
	results := make([]model.CompanyResult, len(req.Companies))
	systemBlocks := anthropic.BuildCachedSystemBlocks(deepSystemPrompt)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.MaxConcurrency)

	for i, company := range req.Companies {
		g.Go(func() error {
			result, err := b.deepDiveOne(gCtx, company, systemBlocks, req)
			if err != nil {
				// Per-company failure stays inside the run as a partial
				// result; the run completes with errors instead of failing.
				zap.L().Warn("claude: deep dive failed for company",
					zap.String("orgnr", company.Orgnr),
					zap.Error(err),
				)
				results[i] = model.CompanyResult{
					Orgnr:       company.Orgnr,
					CompanyName: company.Name,
					Error:       err.Error(),
				}
				return nil
			}
			results[i] = *result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "claude: deep dive")
	}
	return results, nil
}

func (b *ClaudeBackend) deepDiveOne(ctx context.Context, company model.Company, system []anthropic.SystemBlock, req Request) (*model.CompanyResult, error) {
	companyJSON, err := json.Marshal(company)
	if err != nil {
		return nil, eris.Wrap(err, "marshal company")
	}

	prompt := fmt.Sprintf("Produce a deep-dive assessment.%s\n\nCompany:\n%s",
		instructionSuffix(req), companyJSON)

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit wait")
	}
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.cfg.Model,
		MaxTokens: b.cfg.MaxTokens,
		System:    system,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "deep dive request")
	}
	b.logCost(resp.Usage, "deep_dive")

	var result model.CompanyResult
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &result); err != nil {
		return nil, eris.Wrap(err, "parse deep dive result")
	}
	if result.Orgnr == "" {
		result.Orgnr = company.Orgnr
	}
	if result.Orgnr != company.Orgnr {
		return nil, eris.Errorf("result orgnr %s does not match request orgnr %s", result.Orgnr, company.Orgnr)
	}
	if result.Sections == nil {
		result.Sections = []model.SectionResult{}
	}
	if result.Metrics == nil {
		result.Metrics = []model.MetricResult{}
	}
	return &result, nil
}

func (b *ClaudeBackend) GenerateReport(ctx context.Context, orgnr string, force bool) (*GenerateResult, error) {
	prompt := fmt.Sprintf("Write the operational-uplift report for the company with organization number %s.", orgnr)

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "claude: rate limit wait")
	}
	resp, err := b.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.cfg.Model,
		MaxTokens: b.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(reportSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "claude: report request %s", orgnr)
	}
	b.logCost(resp.Usage, "report")

	var report model.AIReport
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &report); err != nil {
		return nil, eris.Wrapf(err, "claude: parse report %s", orgnr)
	}
	report.Orgnr = orgnr
	report.GeneratedAt = time.Now().UTC()
	return &GenerateResult{Report: &report}, nil
}

// FetchReport exists for the legacy status-only acknowledgement path.
// This backend always returns a populated report from GenerateReport, so
// there is nothing to fetch.
func (b *ClaudeBackend) FetchReport(ctx context.Context, orgnr string) (*model.AIReport, error) {
	return nil, eris.Errorf("claude: no deferred report for %s", orgnr)
}

func instructionSuffix(req Request) string {
	var parts []string
	if req.Instructions != "" {
		parts = append(parts, req.Instructions)
	}
	if req.CustomInstructions != "" {
		parts = append(parts, req.CustomInstructions)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	return cleanDelimited(text, "{", "}")
}

// cleanJSONArray is cleanJSON for top-level JSON arrays.
func cleanJSONArray(text string) string {
	return cleanDelimited(text, "[", "]")
}

func cleanDelimited(text, opener, closer string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, opener)
	end := strings.LastIndex(text, closer)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
