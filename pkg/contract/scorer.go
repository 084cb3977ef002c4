package contract

import (
	"context"
	"io"
)

// Scorer: 对单个难度的地图数据运行外部 parity 评分方，返回归一化汇总。
// 约束：
//  1. 同步执行，返回前评估已结束；
//  2. 每次调用使用全新的诊断集合，不得观察到前一次调用的诊断；
//  3. 地图内容非法 JSON 返回 ErrMapParse；
//  4. 不在内部重试。
type Scorer interface {
	Evaluate(ctx context.Context, id FileID, r io.Reader) (DifficultyResult, error)
}

// Reporter: 评分方“上报到 UI”的能力接口。
// 实现按到达顺序保存，不去重、不丢弃。
type Reporter interface {
	Report(d Diagnostic)
	// Reset 清空当前集合（每次 Evaluate 开始时调用）。
	Reset()
	Diagnostics() []Diagnostic
}

// ScorerEngine: 评分方的进程级句柄（脚本只加载/编译一次）。
// 每次地图集运行调用 NewScorer 取得隔离的 Scorer，运行之间不共享全局状态。
type ScorerEngine interface {
	NewScorer() (Scorer, error)
}
