package mock

import (
	"context"
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"bsparity/pkg/contract"
)

// Counts: 为指定地图文件预置的诊断数量。
type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Options: 离线调试/测试用的确定性评分方（可选）。
type Options struct {
	// Results: 地图文件名 -> 预置数量。未列出的文件按 note 上的
	// _customData.diag.severity 标签计数（与 jsparity 的夹具脚本一致）。
	Results map[string]Counts `json:"results"`
}

// Scorer 不加载任何脚本，仅依据配置或地图内标签产出诊断。
type Scorer struct {
	results map[contract.FileID]Counts
	calls   []contract.FileID
}

func New(opts *Options) *Scorer {
	m := make(map[contract.FileID]Counts)
	if opts != nil {
		for name, c := range opts.Results {
			m[contract.NormalizeFileID(name)] = c
		}
	}
	return &Scorer{results: m}
}

// NewScorer 实现 contract.ScorerEngine；mock 无运行时状态，直接复用自身。
func (s *Scorer) NewScorer() (contract.Scorer, error) { return s, nil }

// Calls 返回按调用顺序记录的 FileID。
func (s *Scorer) Calls() []contract.FileID { return append([]contract.FileID(nil), s.calls...) }

func (s *Scorer) Evaluate(ctx context.Context, id contract.FileID, r io.Reader) (contract.DifficultyResult, error) {
	if err := ctx.Err(); err != nil {
		return contract.DifficultyResult{}, err
	}
	s.calls = append(s.calls, id)
	b, err := io.ReadAll(r)
	if err != nil {
		return contract.DifficultyResult{}, fmt.Errorf("read %s: %w", id, err)
	}
	st, err := contract.StatMap(b)
	if err != nil {
		return contract.DifficultyResult{}, fmt.Errorf("%s: %w", id, err)
	}
	if c, ok := s.results[id]; ok {
		return contract.Tally(id, synth(c)), nil
	}
	return contract.Tally(id, tagged(b, st)), nil
}

func synth(c Counts) []contract.Diagnostic {
	out := make([]contract.Diagnostic, 0, c.Errors+c.Warnings)
	for i := 0; i < c.Errors; i++ {
		out = append(out, contract.Diagnostic{Parity: "mock", Message: "mock error", Severity: contract.SeverityError, RawSeverity: "error"})
	}
	for i := 0; i < c.Warnings; i++ {
		out = append(out, contract.Diagnostic{Parity: "mock", Message: "mock warning", Severity: contract.SeverityWarning, RawSeverity: "warning"})
	}
	return out
}

// tagged 读取 note 上的 diag 标签；v2/v3 字段名与 StatMap 的判定一致。
func tagged(b []byte, st contract.MapStats) []contract.Diagnostic {
	notes := "_notes"
	if st.Version != "" && !gjson.GetBytes(b, "_version").Exists() {
		notes = "colorNotes"
	}
	var out []contract.Diagnostic
	gjson.GetBytes(b, notes).ForEach(func(_, n gjson.Result) bool {
		d := n.Get("_customData.diag")
		if !d.Exists() {
			return true
		}
		raw := d.Get("severity").String()
		sev, _ := contract.ParseSeverity(raw)
		out = append(out, contract.Diagnostic{
			NoteRef:     n.Value(),
			Parity:      d.Get("parity").String(),
			Message:     d.Get("message").String(),
			Severity:    sev,
			RawSeverity: raw,
		})
		return true
	})
	return out
}
