package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bsparity/pkg/contract"
)

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	if err := w.WriteLine([]byte("first line that is very long")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := w.WriteLine([]byte("second")); err != nil {
		t.Fatalf("第二次写入失败: %v", err)
	}
	defer w.Close()
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("读取目录失败: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("应存在轮转文件, got %d", len(files))
	}
	hasCurrent, hasRotated := false, false
	for _, e := range files {
		switch {
		case e.Name() == currentLog:
			hasCurrent = true
		case strings.HasPrefix(e.Name(), "bsparity-") && strings.HasSuffix(e.Name(), ".log"):
			hasRotated = true
		}
	}
	if !hasCurrent || !hasRotated {
		t.Fatalf("expect both current and rotated files, got current=%v rotated=%v", hasCurrent, hasRotated)
	}
}

// 单行超过阈值时不产生空的轮转文件
func TestRotatingFileOversizedLine(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 4)
	defer w.Close()
	if err := w.WriteLine([]byte("0123456789")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ents, _ := os.ReadDir(dir)
	if len(ents) != 1 {
		t.Fatalf("expect single current file, got %d", len(ents))
	}
}

// io.Writer 适配：去掉结尾换行后整行写入
func TestRotatingFileWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 0)
	n, err := w.Write([]byte("{\"a\":1}\n"))
	if err != nil || n != 8 {
		t.Fatalf("write: %d %v", n, err)
	}
	w.Close()
	b, _ := os.ReadFile(filepath.Join(dir, currentLog))
	if string(b) != "{\"a\":1}\n" {
		t.Fatalf("unexpected content %q", string(b))
	}
	// f==nil 分支
	if err := w.rotate(); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	w.Close()
}

// UT-DIAG-02: 指标计数
func TestMetrics(t *testing.T) {
	ResetMetrics()
	IncOp("scorer", "evaluate", "success")
	IncOp("scorer", "evaluate", "success")
	IncError("scorer", CodeMapParse)
	ObserveDuration("scorer", "finish", 5)
	ObserveDuration("scorer", "finish", 7)
	s := TakeSnapshot()
	if s.Ops["scorer/evaluate/success"] != 2 || s.Errors["scorer/map_parse"] != 1 || s.DurMS["scorer/finish"] != 12 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	kv := s.KV()
	if kv["op_total.scorer/evaluate/success"] != "2" || kv["op_duration_ms.scorer/finish"] != "12" {
		t.Fatalf("unexpected kv %v", kv)
	}
	// 快照是拷贝
	IncOp("scorer", "evaluate", "success")
	if s.Ops["scorer/evaluate/success"] != 2 {
		t.Fatalf("snapshot should not change")
	}
	ResetMetrics()
	if len(TakeSnapshot().Ops) != 0 {
		t.Fatalf("reset failed")
	}
}

// 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{context.Canceled, CodeCancel},
		{fmt.Errorf("x: %w", context.DeadlineExceeded), CodeCancel},
		{fmt.Errorf("info.dat: %w", contract.ErrManifestParse), CodeManifest},
		{fmt.Errorf("Expert.dat: %w", contract.ErrMapParse), CodeMapParse},
		{fmt.Errorf("%w: \"Insane\"", contract.ErrUnknownDifficulty), CodeUnknownDifficulty},
		{contract.ErrShimMismatch, CodeShimMismatch},
		{contract.ErrCollaboratorLoad, CodeCollaborator},
		{contract.ErrCollaboratorRuntime, CodeCollaborator},
		{contract.ErrPathInvalid, CodeInvariant},
		{contract.ErrInvalidInput, CodeInvariant},
		{&fs.PathError{Op: "open", Path: "/", Err: errors.New("x")}, CodeIO},
		{errors.New("other"), CodeUnknown},
		{nil, CodeUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Fatalf("Classify(%v)=%s want %s", c.err, got, c.want)
		}
	}
}

// Logger 基本流程：终端文本 + 级别过滤
func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("corr-1", Options{Level: "info", Console: &buf})
	timer := l.StartWith("pipeline", "batch", "Expert.dat", map[string]string{"k": "v"})
	timer.Finish("ok", 3, nil)
	l.Debug("pipeline", "hidden", "", nil)
	l.Skip("pipeline", "exempt", "Easy.dat", nil)
	l.Warn("scorer", "odd tag", map[string]string{"tag": "weird"})
	start := time.Now().Add(-10 * time.Millisecond)
	l.ErrorWith("pipeline", CodeMapParse, "bad map", &start, "Hard.dat", nil)

	out := buf.String()
	for _, want := range []string{"corr_id=corr-1", "comp=pipeline", "stage=start", "file_id=Expert.dat", "kv.k=v", "stage=finish", "count=3", "stage=skip", "tag=weird", "code=map_parse"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug should be filtered: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("non-tty writer should not be colored: %q", out)
	}
	l.SetLevel("debug")
	l.Debug("pipeline", "visible", "", nil)
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("debug after SetLevel")
	}
	if l.CorrID() != "corr-1" || l.Slog() == nil {
		t.Fatalf("accessors")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// 文件旁路：JSON 行，字段与终端一致
func TestLoggerWithSink(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := NewLogger("corr-2", Options{Level: "warn", Console: &buf, Dir: dir})
	l.Start("pipeline", "filtered").Finish("filtered", 0, nil)
	l.Error("pipeline", CodeShimMismatch, "boom", nil)
	l.Slog().With("comp", "scorer").Warn("via slog")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, currentLog))
	if err != nil {
		t.Fatalf("log file not found: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expect 2 lines, got %q", string(b))
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("json: %v", err)
	}
	if ev["corr_id"] != "corr-2" || ev["code"] != "shim_mismatch" || ev["stage"] != "error" || ev["level"] != "ERROR" {
		t.Fatalf("unexpected event %v", ev)
	}
	if !strings.Contains(buf.String(), "via slog") {
		t.Fatalf("console should receive slog records")
	}
}

// 级别解析与 nil 接收者
func TestParseLevelAndNil(t *testing.T) {
	if ParseLevel(" WARN ") != ParseLevel("warning") || ParseLevel("x").String() != "INFO" || ParseLevel("debug").String() != "DEBUG" || ParseLevel("error").String() != "ERROR" {
		t.Fatalf("parse level")
	}
	var tnil *Timer
	tnil.Finish("x", 0, nil)
	(&Timer{}).Finish("x", 0, nil)
	if tnil.Since() != nil {
		t.Fatalf("nil since")
	}
	var lnil *Logger
	lnil.Warn("c", "m", nil)
	if lnil.Close() != nil {
		t.Fatalf("nil close")
	}
}

// UT-DIAG-03: 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	if term.isTTY {
		t.Fatalf("expect non-tty")
	}
	term.RunStart("js", "/data/maps/set-a")
	term.DiffSkip("Standard:Easy")
	term.DiffStart("Standard:Expert", 2, 3)
	term.DiffFinish("Standard:Expert", 1, 0, true, 5100*time.Millisecond)
	term.RunFinish(true, 41300*time.Millisecond)

	out := sb.String()
	if strings.Contains(out, "\r") {
		t.Fatalf("non-tty should not contain carriage returns: %q", out)
	}
	for _, want := range []string{
		"[run] 地图集=set-a | 评分=js",
		"[skip] Standard:Easy",
		"[diff] Standard:Expert | 2/3",
		"[fail] Standard:Expert | errors 1 | warnings 0 | 用时 5.1s",
		"[fail] 评估 1 | 跳过 1 | 未通过 1 | 总用时 41.3s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q: %q", want, out)
		}
	}
}

// UT-DIAG-04: 终端（TTY）进度节流与清尾
func TestTerminalTTYThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart("mock", "set")
	term.DiffStart("Standard:Hard-with-a-long-name", 1, 2)
	first := sb.String()
	if !strings.Contains(first, "\r[diff]") {
		t.Fatalf("first progress should be inline with CR: %q", first)
	}
	term.DiffStart("Standard:Hard-with-a-long-name", 1, 2)
	if sb.String() != first {
		t.Fatalf("second progress should be throttled")
	}
	term.DiffFinish("Standard:Hard", 0, 3, false, 0)
	final := sb.String()
	idx := strings.LastIndex(final, "[pass]")
	if idx < 0 {
		t.Fatalf("finish should include pass line: %q", final)
	}
	seg := final[:idx]
	cr := strings.LastIndex(seg, "\r")
	if cr < 0 || !strings.Contains(seg[cr+1:], " ") {
		t.Fatalf("clear tail should write spaces after CR: %q", seg)
	}
}

// UT-DIAG-05: 写失败降级为禁用态
type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	term := NewTerminal(&flakyWriter{fail: true}, true)
	term.isTTY = false
	term.RunStart("x", "y")
	if term.enabled {
		t.Fatalf("terminal should be disabled after write error")
	}
	term.DiffStart("a", 1, 1)
	term.DiffSkip("a")
	term.DiffFinish("a", 0, 0, false, 0)
	term.RunFinish(false, 0)
}

func TestTerminalInlineWriteError(t *testing.T) {
	term := NewTerminal(&flakyWriter{fail: true}, true)
	term.isTTY = true
	term.DiffStart("a", 1, 2)
	if term.enabled {
		t.Fatalf("terminal should be disabled after inline error")
	}
}

// 覆盖 Terminal nil 接收者与 CI 环境分支
func TestTerminalNilAndCI(t *testing.T) {
	var tn *Terminal
	tn.RunStart("x", "y")
	tn.DiffStart("a", 1, 1)
	tn.DiffSkip("a")
	tn.DiffFinish("a", 0, 0, false, 0)
	tn.RunFinish(true, 0)

	t.Setenv("CI", "true")
	if NewTerminal(os.Stderr, true).isTTY {
		t.Fatalf("CI env should force non-tty")
	}
	SetTerminal(nil)
	if GetTerminal() != nil {
		t.Fatalf("expected nil terminal")
	}
	SetTerminal(NewTerminal(nil, false))
	if GetTerminal() == nil {
		t.Fatalf("expected non-nil terminal")
	}
	SetTerminal(nil)
}

// 工具函数
func TestHelpers(t *testing.T) {
	if got := shortenBase("/x/y/这是一个很长的文件名用于截断测试abcdefghijk.txt", 10); visLen(got) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("shortenBase: %q", got)
	}
	if shortenBase("x", 0) != "" {
		t.Fatalf("shortenBase max<=0 should be empty")
	}
	if safe("a\nb\rc") != "a b c" {
		t.Fatalf("safe replace failed")
	}
	if formatDur(0) != "0ms" || formatDur(1500*time.Millisecond) != "1.5s" {
		t.Fatalf("formatDur")
	}
}
