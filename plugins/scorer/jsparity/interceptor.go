package jsparity

import (
	"log/slog"

	"github.com/dop251/goja"

	"bsparity/pkg/contract"
)

// Collector 为 contract.Reporter 的内存实现：按到达顺序追加，不去重。
type Collector struct {
	diags []contract.Diagnostic
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Report(d contract.Diagnostic) { c.diags = append(c.diags, d) }

// Reset 丢弃引用而非截断，已返回给调用方的切片保持不变。
func (c *Collector) Reset() { c.diags = nil }

func (c *Collector) Diagnostics() []contract.Diagnostic { return c.diags }

// reportFunc 生成 outputUI 的 Go 侧落点：
// outputUI(note, parity, message, messageType, persistent?) -> Reporter.Report。
// persistent 只影响渲染，这里忽略。
func reportFunc(rep contract.Reporter, log *slog.Logger, current func() contract.FileID) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		raw := jsString(call.Argument(3))
		sev, ok := contract.ParseSeverity(raw)
		if !ok {
			log.Warn("unknown severity tag, counted as info", "tag", raw, "file_id", string(current()))
		}
		rep.Report(contract.Diagnostic{
			NoteRef:     call.Argument(0).Export(),
			Parity:      jsString(call.Argument(1)),
			Message:     jsString(call.Argument(2)),
			Severity:    sev,
			RawSeverity: raw,
		})
		return goja.Undefined()
	}
}

func jsString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
