package rag

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/ragcore/types"
)

// StageName 可降级的管线阶段
type StageName string

const (
	StageDense      StageName = "dense"
	StageSparse     StageName = "sparse"
	StageHyDE       StageName = "hyde"
	StageRerank     StageName = "reranker"
	StageGraph      StageName = "graph"
	StageGeneration StageName = "generation"
)

// StageStatus 阶段状态
type StageStatus string

const (
	StatusUsed    StageStatus = "used"
	StatusSkipped StageStatus = "skipped"
)

// 跳过原因
const (
	ReasonDisabled      = "disabled"
	ReasonNotConfigured = "not_configured"
	ReasonUnavailable   = "unavailable"
	ReasonTimeout       = "timeout"
	ReasonNoSeeds       = "no_seed_entities"
	ReasonNoCandidates  = "no_candidates"
)

// StageOutcome 一个阶段的执行结果：使用或跳过（附原因）
type StageOutcome struct {
	Stage    StageName     `json:"stage"`
	Status   StageStatus   `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Used 构造使用状态
func Used(stage StageName, d time.Duration) StageOutcome {
	return StageOutcome{Stage: stage, Status: StatusUsed, Duration: d}
}

// Skipped 构造跳过状态
func Skipped(stage StageName, reason string, err error) StageOutcome {
	return StageOutcome{Stage: stage, Status: StatusSkipped, Reason: reason, Err: err}
}

// skipReason 根据错误给出跳过原因
func skipReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case types.IsCode(err, types.ErrConfiguration):
		return ReasonNotConfigured
	default:
		return ReasonUnavailable
	}
}

// SignalReport 记录每个阶段的使用情况
type SignalReport struct {
	Stages []StageOutcome `json:"stages"`
}

// Add 追加阶段结果
func (r *SignalReport) Add(o StageOutcome) {
	r.Stages = append(r.Stages, o)
}

// Get 返回阶段结果
func (r *SignalReport) Get(stage StageName) (StageOutcome, bool) {
	for _, o := range r.Stages {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// Used 阶段是否被使用
func (r *SignalReport) Used(stage StageName) bool {
	o, ok := r.Get(stage)
	return ok && o.Status == StatusUsed
}

// Skipped 阶段是否被跳过
func (r *SignalReport) Skipped(stage StageName) bool {
	o, ok := r.Get(stage)
	return ok && o.Status == StatusSkipped
}
