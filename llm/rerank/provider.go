package rerank

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/llm"
	"github.com/BaSui01/ragcore/types"
)

// APIProvider Cohere 与 Jina 共用的实现：两者请求体和结果结构一致，只有路径与用量字段不同
type APIProvider struct {
	client   *llm.Client
	cfg      Config
	endpoint string
	maxDocs  int
}

// NewCohereProvider POST /v2/rerank
func NewCohereProvider(cfg Config, m *metrics.Collector, logger *zap.Logger) *APIProvider {
	return newAPIProvider("cohere-rerank", "/v2/rerank", 1000, cfg.withDefaults(DefaultCohereConfig()), m, logger)
}

// NewJinaProvider POST /v1/rerank
func NewJinaProvider(cfg Config, m *metrics.Collector, logger *zap.Logger) *APIProvider {
	return newAPIProvider("jina-rerank", "/v1/rerank", 1024, cfg.withDefaults(DefaultJinaConfig()), m, logger)
}

// New 按名称创建提供者
func New(name string, cfg Config, m *metrics.Collector, logger *zap.Logger) (*APIProvider, error) {
	switch name {
	case "cohere":
		return NewCohereProvider(cfg, m, logger), nil
	case "jina":
		return NewJinaProvider(cfg, m, logger), nil
	default:
		return nil, types.ConfigError("unknown rerank provider %q", name)
	}
}

func newAPIProvider(name, endpoint string, maxDocs int, cfg Config, m *metrics.Collector, logger *zap.Logger) *APIProvider {
	client := llm.NewClient(llm.ClientConfig{
		Provider:     name,
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Timeout:      cfg.Timeout,
		RateLimitRPS: cfg.RateLimitRPS,
	}, logger).WithMetrics(m)
	return &APIProvider{client: client, cfg: cfg, endpoint: endpoint, maxDocs: maxDocs}
}

func (p *APIProvider) Name() string      { return p.client.Provider() }
func (p *APIProvider) MaxDocuments() int { return p.maxDocs }

type apiRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopN      int      `json:"top_n,omitempty"`
}

type apiRerankResponse struct {
	Model   string `json:"model"`
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	// Jina
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	// Cohere
	Meta struct {
		BilledUnits struct {
			SearchUnits int `json:"search_units"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Rerank 对文档打分；结果按服务端顺序返回（相关度降序）
func (p *APIProvider) Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error) {
	if len(req.Documents) > p.maxDocs {
		return nil, types.Errorf(types.ErrInvalidRequest, "%s accepts at most %d documents, got %d",
			p.Name(), p.maxDocs, len(req.Documents))
	}
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	resp := &RerankResponse{Provider: p.Name(), Model: model, Results: []RerankResult{}, CreatedAt: time.Now()}
	if len(req.Documents) == 0 {
		return resp, nil
	}

	body := apiRerankRequest{Query: req.Query, Documents: req.Documents, Model: model, TopN: req.TopN}
	var out apiRerankResponse
	err := p.client.PostJSON(ctx, p.endpoint, model, body, &out, func() llm.Usage {
		return llm.Usage{PromptTokens: out.Usage.TotalTokens}
	})
	if err != nil {
		return nil, err
	}

	for _, r := range out.Results {
		if r.Index < 0 || r.Index >= len(req.Documents) {
			return nil, types.Errorf(types.ErrUpstreamError, "result index %d out of range", r.Index).
				WithProvider(p.Name())
		}
		resp.Results = append(resp.Results, RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}
	if out.Model != "" {
		resp.Model = out.Model
	}
	resp.Usage = RerankUsage{
		SearchUnits: out.Meta.BilledUnits.SearchUnits,
		TotalTokens: out.Usage.TotalTokens,
	}
	return resp, nil
}

// RerankSimple 便捷方法
func (p *APIProvider) RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	resp, err := p.Rerank(ctx, &RerankRequest{Query: query, Documents: documents, TopN: topN})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}
	return resp.Results, nil
}
