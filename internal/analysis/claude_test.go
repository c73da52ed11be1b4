package analysis

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/cost"
	"github.com/sells-group/dealflow-cli/internal/model"
	"github.com/sells-group/dealflow-cli/pkg/anthropic"
)

// fakeClient implements anthropic.Client with a scriptable respond func.
type fakeClient struct {
	mu      sync.Mutex
	calls   int
	respond func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (f *fakeClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.respond(req)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
	}
}

func fastClaudeConfig() ClaudeConfig {
	return ClaudeConfig{RequestsPerSecond: 10000, MaxConcurrency: 4}
}

func TestClaudeBackend_Screen(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("```json\n[{\"orgnr\":\"556000001\",\"company_name\":\"Acme AB\",\"screening_score\":91,\"risk_flag\":\"Low\",\"brief_summary\":\"solid\"},{\"orgnr\":\"556000002\",\"company_name\":\"Beta AB\",\"screening_score\":null,\"risk_flag\":\"High\",\"brief_summary\":\"thin data\"}]\n```"), nil
		},
	}
	b := NewClaudeBackend(client, fastClaudeConfig(), nil)

	results, err := b.Screen(context.Background(), Request{Companies: testCompanies("556000001", "556000002")})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "556000001", results[0].Orgnr)
	require.NotNil(t, results[0].ScreeningScore)
	assert.Equal(t, 91.0, *results[0].ScreeningScore)
	assert.Nil(t, results[1].ScreeningScore)
	assert.Equal(t, model.RiskHigh, results[1].RiskFlag)
	assert.Equal(t, 1, client.calls, "screening is one message for the whole selection")
}

func TestClaudeBackend_Screen_SkipsNonTextBlocks(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return &anthropic.MessageResponse{
				Content: []anthropic.ContentBlock{
					{Type: "thinking", Text: "not for parsing"},
					{Type: "text", Text: `[{"orgnr":"556000001","company_name":"Acme AB","screening_score":80,"risk_flag":"Low"}]`},
				},
				StopReason: "end_turn",
			}, nil
		},
	}
	b := NewClaudeBackend(client, fastClaudeConfig(), nil)

	results, err := b.Screen(context.Background(), Request{Companies: testCompanies("556000001")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "556000001", results[0].Orgnr)
}

func TestClaudeBackend_Screen_UnparsableResponse(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("I can't help with that."), nil
		},
	}
	b := NewClaudeBackend(client, fastClaudeConfig(), nil)

	_, err := b.Screen(context.Background(), Request{Companies: testCompanies("556000001")})
	require.Error(t, err)
}

func TestClaudeBackend_DeepDive_PerCompanyFailureIsPartial(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			if strings.Contains(req.Messages[0].Content, "556000002") {
				return nil, eris.New("overloaded")
			}
			return textResponse(`{"orgnr":"556000001","company_name":"Acme AB","summary":"ok","recommendation":"pursue","confidence":4,"risk_score":1,"financial_grade":"A","commercial_grade":"B","operational_grade":"B","next_steps":["call owner"],"sections":[],"metrics":[]}`), nil
		},
	}
	b := NewClaudeBackend(client, fastClaudeConfig(), nil)

	results, err := b.DeepDive(context.Background(), Request{Companies: testCompanies("556000001", "556000002")})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "556000001", results[0].Orgnr)
	assert.Equal(t, "pursue", results[0].Recommendation)
	assert.Empty(t, results[0].Error)

	assert.Equal(t, "556000002", results[1].Orgnr)
	assert.Contains(t, results[1].Error, "overloaded")
}

func TestClaudeBackend_DeepDive_OrgnrMismatchRejected(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"orgnr":"999999999","recommendation":"pursue","sections":[],"metrics":[]}`), nil
		},
	}
	b := NewClaudeBackend(client, fastClaudeConfig(), nil)

	results, err := b.DeepDive(context.Background(), Request{Companies: testCompanies("556000001")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "does not match")
}

func TestClaudeBackend_DeepDive_DefaultsMissingOrgnr(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"recommendation":"monitor","sections":[],"metrics":[]}`), nil
		},
	}
	b := NewClaudeBackend(client, fastClaudeConfig(), nil)

	results, err := b.DeepDive(context.Background(), Request{Companies: testCompanies("556000001")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "556000001", results[0].Orgnr)
	assert.NotNil(t, results[0].Sections)
	assert.NotNil(t, results[0].Metrics)
}

func TestClaudeBackend_GenerateReport_AlwaysPopulated(t *testing.T) {
	client := &fakeClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"business_model":"distribution","weaknesses":["margin pressure"],"levers":[{"name":"procurement","impact":"medium","effort":"low","category":"cost"}],"impact_range":{"low":1,"high":3,"unit":"MSEK"},"outreach_angle":"consolidation"}`), nil
		},
	}
	b := NewClaudeBackend(client, fastClaudeConfig(), nil)

	res, err := b.GenerateReport(context.Background(), "556000001", true)
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.False(t, res.Accepted)
	assert.Equal(t, "556000001", res.Report.Orgnr)
	assert.Equal(t, "distribution", res.Report.BusinessModel)
	assert.False(t, res.Report.GeneratedAt.IsZero())
}

func TestClaudeBackend_FetchReport_NotSupported(t *testing.T) {
	b := NewClaudeBackend(&fakeClient{}, fastClaudeConfig(), nil)

	_, err := b.FetchReport(context.Background(), "556000001")
	require.Error(t, err)
}

func TestClaudeBackend_PriceUsage_ConfiguredRates(t *testing.T) {
	rates := cost.Rates{
		Anthropic: map[string]cost.ModelRate{
			"test-model": {Input: 2.00, Output: 10.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
		},
	}
	b := NewClaudeBackend(&fakeClient{}, ClaudeConfig{Model: "test-model"}, cost.NewCalculator(rates))

	got := b.priceUsage(anthropic.TokenUsage{
		InputTokens:              1_000_000,
		OutputTokens:             1_000_000,
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	})
	// 2.00 input + 10.00 output + 2.50 cache write + 0.20 cache read
	assert.InDelta(t, 14.70, got, 0.001)
}

func TestClaudeBackend_PriceUsage_DefaultRates(t *testing.T) {
	b := NewClaudeBackend(&fakeClient{}, ClaudeConfig{Model: "claude-sonnet-4-5-20250929"}, nil)

	got := b.priceUsage(anthropic.TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	assert.InDelta(t, 18.0, got, 0.001)

	unknown := NewClaudeBackend(&fakeClient{}, ClaudeConfig{Model: "some-future-model"}, nil)
	assert.Zero(t, unknown.priceUsage(anthropic.TokenUsage{InputTokens: 1000}))
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose wrapped", `Here you go: {"a":1} hope that helps`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestCleanJSONArray(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, cleanJSONArray("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[1,2]`, cleanJSONArray(`The results: [1,2]`))
}
