package embedding

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/llm"
	"github.com/BaSui01/ragcore/types"
)

// OpenAIProvider 调用 OpenAI 兼容的向量化接口
type OpenAIProvider struct {
	client *llm.Client
	cfg    OpenAIConfig
}

// NewOpenAIProvider 创建提供者，未设置的字段取默认值
func NewOpenAIProvider(cfg OpenAIConfig, m *metrics.Collector, logger *zap.Logger) *OpenAIProvider {
	def := DefaultOpenAIConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = def.MaxBatch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	client := llm.NewClient(llm.ClientConfig{
		Provider:     "openai-embedding",
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Timeout:      cfg.Timeout,
		RateLimitRPS: cfg.RateLimitRPS,
	}, logger).WithMetrics(m)

	return &OpenAIProvider{client: client, cfg: cfg}
}

func (p *OpenAIProvider) Name() string      { return p.client.Provider() }
func (p *OpenAIProvider) Dimensions() int   { return p.cfg.Dimensions }
func (p *OpenAIProvider) MaxBatchSize() int { return p.cfg.MaxBatch }

type openAIEmbedRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed 单次请求，不做分批
func (p *OpenAIProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return &EmbeddingResponse{Provider: p.Name(), Model: p.cfg.Model, CreatedAt: time.Now()}, nil
	}
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	dims := req.Dimensions
	if dims == 0 {
		dims = p.cfg.Dimensions
	}

	body := openAIEmbedRequest{
		Input:          req.Input,
		Model:          model,
		Dimensions:     dims,
		EncodingFormat: "float",
	}
	var oaResp openAIEmbedResponse
	err := p.client.PostJSON(ctx, "/v1/embeddings", model, body, &oaResp, func() llm.Usage {
		return llm.Usage{PromptTokens: oaResp.Usage.PromptTokens}
	})
	if err != nil {
		return nil, err
	}
	if len(oaResp.Data) != len(req.Input) {
		return nil, types.Errorf(types.ErrUpstreamError, "expected %d embeddings, got %d", len(req.Input), len(oaResp.Data)).
			WithProvider(p.Name())
	}

	embeddings := make([]EmbeddingData, len(oaResp.Data))
	for i, d := range oaResp.Data {
		embeddings[i] = EmbeddingData{Index: d.Index, Embedding: d.Embedding}
	}
	// 服务端不保证按输入顺序返回
	sort.Slice(embeddings, func(i, j int) bool { return embeddings[i].Index < embeddings[j].Index })

	return &EmbeddingResponse{
		Provider:   p.Name(),
		Model:      oaResp.Model,
		Embeddings: embeddings,
		Usage: EmbeddingUsage{
			PromptTokens: oaResp.Usage.PromptTokens,
			TotalTokens:  oaResp.Usage.TotalTokens,
		},
		CreatedAt: time.Now(),
	}, nil
}

// EmbedQuery 单条查询
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := p.Embed(ctx, &EmbeddingRequest{Input: []string{query}, InputType: InputTypeQuery})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%s: no embeddings returned", p.Name())
	}
	return resp.Embeddings[0].Embedding, nil
}

// EmbedDocuments 按 MaxBatchSize 分批
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, 0, len(documents))
	for start := 0; start < len(documents); start += p.cfg.MaxBatch {
		end := min(start+p.cfg.MaxBatch, len(documents))
		resp, err := p.Embed(ctx, &EmbeddingRequest{Input: documents[start:end], InputType: InputTypeDocument})
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Embedding)
		}
	}
	return out, nil
}
