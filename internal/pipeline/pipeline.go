package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bsparity/internal/diag"
	"bsparity/pkg/contract"
)

// - 单线程：地图集内各难度严格按 manifest 顺序串行评估，组件均为同步实现。
// - 首错即止：任何致命错误中止整批，不产出部分结论，不调用 Emitter。
// - 不短路：已判定失败后仍继续评估剩余难度，收集全部原因。

// WarningLimit: warning 数严格大于该值时判定失败（10 通过，11 失败）。
const WarningLimit = 10

// ReasonSeparator 连接多条失败原因。
const ReasonSeparator = ", "

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader  contract.Reader
	Scorer  contract.ScorerEngine
	Emitter contract.Emitter
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// Root: 地图集位置（目录、manifest 文件或归档，取决于 Reader）。
	Root string
	// ScorerName: 仅用于终端提示。
	ScorerName string
}

// Run 执行完整流程：Reader.Open → 解析 manifest → 新建评分会话 → RunBatch → Emitter。
// 致命错误直接返回（已分类记录日志），此时不调用 Emitter。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (err error) {
	if err := sanity(comp, set); err != nil {
		return fmt.Errorf("sanity: %w", err)
	}
	runStart := time.Now()
	if t := diag.GetTerminal(); t != nil {
		t.RunStart(set.ScorerName, set.Root)
	}
	failed := false
	defer func() {
		if t := diag.GetTerminal(); t != nil {
			t.RunFinish(failed || err != nil, time.Since(runStart))
		}
	}()

	rtimer := logger.StartWith("reader", "open", set.Root, nil)
	maps, err := comp.Reader.Open(ctx, set.Root)
	if err != nil {
		return stageError(logger, "reader", "open failed", rtimer, set.Root, fmt.Errorf("reader open: %w", err))
	}
	defer maps.Close()

	m, err := readManifest(maps)
	if err != nil {
		return stageError(logger, "reader", "manifest failed", rtimer, set.Root, err)
	}
	rtimer.Finish("open", int64(len(m.Sets)), nil)
	diag.IncOp("reader", "finish", "success")

	stimer := logger.Start("scorer", "session")
	sc, err := comp.Scorer.NewScorer()
	if err != nil {
		return stageError(logger, "scorer", "session failed", stimer, "", fmt.Errorf("scorer session: %w", err))
	}
	stimer.Finish("session", 0, nil)

	v, err := RunBatch(ctx, m, maps, sc, logger)
	if err != nil {
		return err
	}
	failed = v.Failed

	etimer := logger.Start("emitter", "emit")
	if err := comp.Emitter.Emit(ctx, v); err != nil {
		return stageError(logger, "emitter", "emit failed", etimer, "", fmt.Errorf("emitter emit: %w", err))
	}
	etimer.Finish("emit", 1, map[string]string{"failed": fmt.Sprint(v.Failed)})
	diag.IncOp("emitter", "finish", "success")
	return nil
}

func readManifest(maps contract.MapSet) (contract.Manifest, error) {
	rc, err := maps.Manifest()
	if err != nil {
		return contract.Manifest{}, fmt.Errorf("open manifest: %w", err)
	}
	defer rc.Close()
	return contract.ParseManifest(rc)
}

// RunBatch 对地图集执行批处理策略，返回 Verdict。
// 规则：
//  1. 按 manifest 顺序遍历 特征组 × 难度；
//  2. Easy/Normal 跳过且不评分；Hard/Expert/ExpertPlus 各评分一次；其他标签中止（ErrUnknownDifficulty）；
//  3. errors>0 记 "<组>:<难度> had N errors"；warnings>WarningLimit 记 "... had N warnings"，两者可同时成立；
//  4. 原因以 ", " 连接；无原因则 failed=false 且 whyfailed=""。
func RunBatch(ctx context.Context, m contract.Manifest, maps contract.MapSet, sc contract.Scorer, logger *diag.Logger) (contract.Verdict, error) {
	if maps == nil || sc == nil {
		return contract.Verdict{}, fmt.Errorf("%w: run batch requires map set and scorer", contract.ErrInvalidInput)
	}
	total := 0
	for _, g := range m.Sets {
		total += len(g.Difficulties)
	}

	var reasons []string
	idx := 0
	for _, g := range m.Sets {
		for _, e := range g.Difficulties {
			idx++
			if err := ctx.Err(); err != nil {
				return contract.Verdict{}, err
			}
			label := g.Name + ":" + e.Label
			d, err := contract.ParseDifficulty(e.Label)
			if err != nil {
				logger.ErrorWith("pipeline", diag.Classify(err), "unknown difficulty", nil, e.Filename, map[string]string{"set": label})
				diag.IncError("pipeline", diag.Classify(err))
				return contract.Verdict{}, fmt.Errorf("%s: %w", g.Name, err)
			}
			if d.Exempt() {
				logger.Skip("pipeline", "exempt difficulty", e.Filename, map[string]string{"set": label})
				diag.IncOp("pipeline", "skip", "skip")
				if t := diag.GetTerminal(); t != nil {
					t.DiffSkip(label)
				}
				continue
			}

			t0 := time.Now()
			res, err := scoreOne(ctx, maps, sc, g.Name, d, e.Filename, idx, total, logger)
			if err != nil {
				return contract.Verdict{}, err
			}
			before := len(reasons)
			reasons = appendReasons(reasons, res)
			if t := diag.GetTerminal(); t != nil {
				t.DiffFinish(label, res.Errors, res.Warnings, len(reasons) > before, time.Since(t0))
			}
		}
	}
	if len(reasons) == 0 {
		return contract.Verdict{}, nil
	}
	return contract.Verdict{Failed: true, WhyFailed: strings.Join(reasons, ReasonSeparator)}, nil
}

// appendReasons 按固定策略追加失败原因。
func appendReasons(reasons []string, res contract.DifficultyResult) []string {
	label := res.Label()
	if res.Errors > 0 {
		reasons = append(reasons, fmt.Sprintf("%s had %d errors", label, res.Errors))
	}
	if res.Warnings > WarningLimit {
		reasons = append(reasons, fmt.Sprintf("%s had %d warnings", label, res.Warnings))
	}
	return reasons
}

func scoreOne(ctx context.Context, maps contract.MapSet, sc contract.Scorer, group string, d contract.Difficulty, filename string, idx, total int, logger *diag.Logger) (contract.DifficultyResult, error) {
	label := group + ":" + d.String()
	if t := diag.GetTerminal(); t != nil {
		t.DiffStart(label, idx, total)
	}
	timer := logger.StartWith("scorer", "evaluate", filename, map[string]string{"set": label})
	id, err := contract.MapFileID(filename)
	if err != nil {
		return contract.DifficultyResult{}, stageError(logger, "scorer", "invalid map filename", timer, filename, fmt.Errorf("%s: %w", label, err))
	}
	rc, err := maps.Map(filename)
	if err != nil {
		return contract.DifficultyResult{}, stageError(logger, "scorer", "open map failed", timer, filename, fmt.Errorf("%s: open map: %w", label, err))
	}
	res, err := sc.Evaluate(ctx, id, rc)
	_ = rc.Close()
	if err != nil {
		return contract.DifficultyResult{}, stageError(logger, "scorer", "evaluate failed", timer, filename, fmt.Errorf("%s: %w", label, err))
	}
	res.Characteristic = group
	res.Difficulty = d
	timer.Finish("evaluate", int64(len(res.Diagnostics)), map[string]string{
		"set":      label,
		"errors":   fmt.Sprint(res.Errors),
		"warnings": fmt.Sprint(res.Warnings),
	})
	diag.IncOp("scorer", "finish", "success")
	return res, nil
}

// stageError 分类记录一次致命错误并原样返回。
func stageError(logger *diag.Logger, comp, msg string, timer *diag.Timer, fileID string, err error) error {
	code := diag.Classify(err)
	logger.ErrorWith(comp, code, msg+": "+err.Error(), timer.Since(), fileID, nil)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, code)
	}
	return err
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Scorer == nil || c.Emitter == nil {
		return errors.New("pipeline: missing components")
	}
	if strings.TrimSpace(s.Root) == "" {
		return errors.New("pipeline: empty root")
	}
	return nil
}
