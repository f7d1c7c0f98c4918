package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/internal/tlsutil"
	"github.com/BaSui01/ragcore/types"
)

// QdrantConfig Qdrant 稠密索引配置。
//
// Qdrant 的点 ID 必须是 UUID，这里由块 ID 派生稳定的 UUID，原始块 ID 存在 payload 中。
type QdrantConfig struct {
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	BaseURL    string        `json:"base_url,omitempty"`
	APIKey     string        `json:"api_key,omitempty"`
	Collection string        `json:"collection"`
	Timeout    time.Duration `json:"timeout,omitempty"`

	AutoCreateCollection bool   `json:"auto_create_collection,omitempty"`
	Distance             string `json:"distance,omitempty"` // Cosine (default), Dot, Euclid
	Wait                 *bool  `json:"wait,omitempty"`     // 等待写入完成，默认 true
}

// QdrantStore 通过 REST API 实现 DenseIndex
type QdrantStore struct {
	cfg QdrantConfig

	baseURL string
	client  *http.Client
	logger  *zap.Logger

	ensureOnce sync.Once
	ensureErr  error
}

// NewQdrantStore 创建 Qdrant 索引
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, types.ConfigError("qdrant collection is required")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Distance == "" {
		cfg.Distance = "Cosine"
	}
	if cfg.Wait == nil {
		wait := true
		cfg.Wait = &wait
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}

	return &QdrantStore{
		cfg:     cfg,
		baseURL: baseURL,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		logger:  logger.With(zap.String("component", "qdrant_store")),
	}, nil
}

var qdrantNamespace = uuid.MustParse("d9bde6d4-4f3a-4e6b-8f7a-5d8d2f3b4c1a")

// qdrantPointID 由块 ID 派生稳定 UUID
func qdrantPointID(chunkID string) string {
	return uuid.NewSHA1(qdrantNamespace, []byte(chunkID)).String()
}

const qdrantChunkField = "chunk_id"

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Upsert 写入单个块向量
func (s *QdrantStore) Upsert(ctx context.Context, chunkID string, vector []float64, metadata map[string]any) error {
	return s.UpsertBatch(ctx, []VectorRecord{{ChunkID: chunkID, Vector: vector, Metadata: metadata}})
}

// UpsertBatch 批量写入
func (s *QdrantStore) UpsertBatch(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	size := len(records[0].Vector)
	points := make([]qdrantPoint, 0, len(records))
	for i, r := range records {
		if r.ChunkID == "" {
			return fmt.Errorf("record[%d] has empty chunk id", i)
		}
		if len(r.Vector) == 0 || len(r.Vector) != size {
			return fmt.Errorf("record[%d] dimension mismatch: got=%d want=%d", i, len(r.Vector), size)
		}
		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[qdrantChunkField] = r.ChunkID
		points = append(points, qdrantPoint{ID: qdrantPointID(r.ChunkID), Vector: r.Vector, Payload: payload})
	}

	if err := s.ensureCollection(ctx, size); err != nil {
		return err
	}

	req := struct {
		Points []qdrantPoint `json:"points"`
	}{Points: points}
	if err := s.doJSON(ctx, http.MethodPut, s.pointsPath("")+s.waitQuery(), req, nil); err != nil {
		return err
	}
	s.logger.Debug("qdrant upsert completed", zap.Int("count", len(points)))
	return nil
}

// Search 余弦相似度检索
func (s *QdrantStore) Search(ctx context.Context, vector []float64, topK int) ([]ScoredID, error) {
	if topK <= 0 {
		return []ScoredID{}, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}

	req := struct {
		Vector      []float64 `json:"vector"`
		Limit       int       `json:"limit"`
		WithPayload []string  `json:"with_payload"`
	}{Vector: vector, Limit: topK, WithPayload: []string{qdrantChunkField}}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.pointsPath("/search"), req, &resp); err != nil {
		return nil, err
	}

	out := make([]ScoredID, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, _ := r.Payload[qdrantChunkField].(string)
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		out = append(out, ScoredID{ID: id, Score: r.Score})
	}
	sortScoredIDs(out)
	return out, nil
}

// Delete 删除块向量
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	points := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			points = append(points, qdrantPointID(id))
		}
	}
	if len(points) == 0 {
		return nil
	}
	req := struct {
		Points []string `json:"points"`
	}{Points: points}
	return s.doJSON(ctx, http.MethodPost, s.pointsPath("/delete")+s.waitQuery(), req, nil)
}

// Count 精确计数
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	req := struct {
		Exact bool `json:"exact"`
	}{Exact: true}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.pointsPath("/count"), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// HealthCheck 读取集合信息
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.cfg.Collection))
	return s.doJSON(ctx, http.MethodGet, path, nil, nil)
}

func (s *QdrantStore) pointsPath(suffix string) string {
	return fmt.Sprintf("/collections/%s/points%s", url.PathEscape(s.cfg.Collection), suffix)
}

func (s *QdrantStore) waitQuery() string {
	if s.cfg.Wait == nil || *s.cfg.Wait {
		return "?wait=true"
	}
	return ""
}

func (s *QdrantStore) ensureCollection(ctx context.Context, vectorSize int) error {
	if !s.cfg.AutoCreateCollection {
		return nil
	}
	s.ensureOnce.Do(func() {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     vectorSize,
				"distance": s.cfg.Distance,
			},
		}
		path := fmt.Sprintf("/collections/%s", url.PathEscape(s.cfg.Collection))
		err := s.doJSON(ctx, http.MethodPut, path, body, nil)
		// 集合已存在时返回 409
		if isConflict(err) {
			err = nil
		}
		s.ensureErr = err
	})
	return s.ensureErr
}

func isConflict(err error) bool {
	var e *types.Error
	return errors.As(err, &e) && e.HTTPStatus == http.StatusConflict
}

func (s *QdrantStore) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrUpstreamError, "qdrant request failed").
			WithCause(err).WithRetryable(true).WithProvider("qdrant")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.FromHTTPStatus(resp.StatusCode,
			fmt.Sprintf("%s %s: %s", method, path, strings.TrimSpace(string(raw))), "qdrant")
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
