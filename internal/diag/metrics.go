package diag

import (
	"strconv"
	"strings"
	"sync"
)

// 进程内计数器（无导出器，运行结束时由 cmd 汇总写日志）：
// - op_total{comp,stage,result}
// - error_total{comp,code}
// - op_duration_ms{comp,stage}（累计）

var metrics = struct {
	mu    sync.Mutex
	ops   map[string]int64
	errs  map[string]int64
	durMS map[string]int64
}{ops: map[string]int64{}, errs: map[string]int64{}, durMS: map[string]int64{}}

func key(parts ...string) string { return strings.Join(parts, "/") }

// IncOp 累加操作计数（result=success|error|skip）。
func IncOp(comp, stage, result string) {
	metrics.mu.Lock()
	metrics.ops[key(comp, stage, result)]++
	metrics.mu.Unlock()
}

// IncError 按分类累加错误计数。
func IncError(comp string, code Code) {
	metrics.mu.Lock()
	metrics.errs[key(comp, string(code))]++
	metrics.mu.Unlock()
}

// ObserveDuration 累计阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	metrics.mu.Lock()
	metrics.durMS[key(comp, stage)] += durMS
	metrics.mu.Unlock()
}

// Snapshot: 计数器的只读拷贝。
type Snapshot struct {
	Ops    map[string]int64
	Errors map[string]int64
	DurMS  map[string]int64
}

// TakeSnapshot 返回当前计数的拷贝。
func TakeSnapshot() Snapshot {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	return Snapshot{Ops: clone(metrics.ops), Errors: clone(metrics.errs), DurMS: clone(metrics.durMS)}
}

// ResetMetrics 清零（测试用）。
func ResetMetrics() {
	metrics.mu.Lock()
	metrics.ops = map[string]int64{}
	metrics.errs = map[string]int64{}
	metrics.durMS = map[string]int64{}
	metrics.mu.Unlock()
}

func clone(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// KV 将快照展平为日志键值。
func (s Snapshot) KV() map[string]string {
	out := map[string]string{}
	put := func(prefix string, m map[string]int64) {
		for k, v := range m {
			out[prefix+"."+k] = strconv.FormatInt(v, 10)
		}
	}
	put("op_total", s.Ops)
	put("error_total", s.Errors)
	put("op_duration_ms", s.DurMS)
	return out
}
