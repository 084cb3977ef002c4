package diag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// ParseLevel 解析配置中的级别字符串；未知值按 info。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options: 日志输出目标。
type Options struct {
	// Level: debug|info|warn|error，默认 info。
	Level string
	// Console: 终端输出（默认 stderr）。stdout 只留给 Verdict，不得作为日志目标。
	Console io.Writer
	// Dir: 非空时额外写 JSON 行到轮转文件（bsparity-current.log）。
	Dir string
	// MaxBytes: 轮转阈值，默认 10MiB。
	MaxBytes int64
}

// Logger: 结构化事件日志（comp/stage/code/dur_ms/file_id/kv），底层为 slog。
// 终端用 tint 彩色文本；可选 JSON 文件旁路。
type Logger struct {
	corrID string
	lvl    *slog.LevelVar
	sl     *slog.Logger
	sink   *RotatingFile
}

// NewLogger 按配置构造日志器；所有记录携带 corr_id。
func NewLogger(corrID string, opts Options) *Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(ParseLevel(opts.Level))
	w := opts.Console
	if w == nil {
		w = os.Stderr
	}
	handlers := []slog.Handler{tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
		NoColor:    !colorable(w),
	})}
	l := &Logger{corrID: corrID, lvl: lvl}
	if strings.TrimSpace(opts.Dir) != "" {
		l.sink = NewRotatingFile(opts.Dir, opts.MaxBytes)
		handlers = append(handlers, slog.NewJSONHandler(l.sink, &slog.HandlerOptions{Level: lvl}))
	}
	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = fanout(handlers)
	}
	l.sl = slog.New(h).With("corr_id", corrID)
	return l
}

// colorable: 仅当目标是终端且不在 CI 中时着色。
func colorable(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("CI") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Slog 返回底层 slog.Logger（供 slog.SetDefault 与插件使用）。
func (l *Logger) Slog() *slog.Logger { return l.sl }

// CorrID 返回本次运行的关联 id。
func (l *Logger) CorrID() string { return l.corrID }

// SetLevel 动态调整级别（合并配置后按最终 logging.level 调整）。
func (l *Logger) SetLevel(s string) { l.lvl.Set(ParseLevel(s)) }

// Close 关闭文件旁路（若有）。
func (l *Logger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

// Event 为标准事件结构。
type Event struct {
	Comp   string
	Stage  string // start|finish|error|skip
	Code   string
	DurMS  int64
	Count  int64
	FileID string
	Msg    string
	KV     map[string]string
}

func (l *Logger) log(lv slog.Level, ev Event) {
	if l == nil || !l.sl.Enabled(context.Background(), lv) {
		return
	}
	attrs := make([]slog.Attr, 0, 7)
	attrs = append(attrs, slog.String("comp", ev.Comp))
	if ev.Stage != "" {
		attrs = append(attrs, slog.String("stage", ev.Stage))
	}
	if ev.Code != "" {
		attrs = append(attrs, slog.String("code", ev.Code))
	}
	if ev.DurMS > 0 {
		attrs = append(attrs, slog.Int64("dur_ms", ev.DurMS))
	}
	if ev.Count > 0 {
		attrs = append(attrs, slog.Int64("count", ev.Count))
	}
	if ev.FileID != "" {
		attrs = append(attrs, slog.String("file_id", ev.FileID))
	}
	if len(ev.KV) > 0 {
		kv := make([]any, 0, len(ev.KV))
		for k, v := range ev.KV {
			kv = append(kv, slog.String(k, v))
		}
		attrs = append(attrs, slog.Group("kv", kv...))
	}
	l.sl.LogAttrs(context.Background(), lv, ev.Msg, attrs...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	return l.StartWith(comp, msg, "", nil)
}

// StartWith 记录带 file_id 与键值的 start。
func (l *Logger) StartWith(comp, msg, fileID string, kv map[string]string) *Timer {
	l.log(slog.LevelInfo, Event{Comp: comp, Stage: "start", FileID: fileID, Msg: msg, KV: kv})
	return &Timer{l: l, comp: comp, fileID: fileID, t0: time.Now()}
}

// Debug 输出调试事件（仅在 level=debug 时生效）。
func (l *Logger) Debug(comp, msg, fileID string, kv map[string]string) {
	l.log(slog.LevelDebug, Event{Comp: comp, FileID: fileID, Msg: msg, KV: kv})
}

// Skip 记录被策略跳过的单元（例如 Easy/Normal 难度）。
func (l *Logger) Skip(comp, msg, fileID string, kv map[string]string) {
	l.log(slog.LevelInfo, Event{Comp: comp, Stage: "skip", FileID: fileID, Msg: msg, KV: kv})
}

// Warn 记录非致命异常。
func (l *Logger) Warn(comp, msg string, kv map[string]string) {
	l.log(slog.LevelWarn, Event{Comp: comp, Msg: msg, KV: kv})
}

// Error 记录 error 事件；code 取自 Classify。
func (l *Logger) Error(comp string, code Code, msg string, durSince *time.Time) {
	l.ErrorWith(comp, code, msg, durSince, "", nil)
}

// ErrorWith 支持 file_id 与附加键值。
func (l *Logger) ErrorWith(comp string, code Code, msg string, durSince *time.Time, fileID string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(slog.LevelError, Event{Comp: comp, Stage: "error", Code: string(code), DurMS: dur, FileID: fileID, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	fileID string
	t0     time.Time
}

// Finish 记录 finish 与耗时，并计入阶段指标；kv 可选。
func (t *Timer) Finish(msg string, count int64, kv map[string]string) {
	if t == nil || t.l == nil {
		return
	}
	dur := time.Since(t.t0).Milliseconds()
	ObserveDuration(t.comp, "finish", dur)
	t.l.log(slog.LevelInfo, Event{Comp: t.comp, Stage: "finish", DurMS: dur, Count: count, FileID: t.fileID, Msg: msg, KV: kv})
}

// Since 返回计时起点（供 ErrorWith 计算耗时）。
func (t *Timer) Since() *time.Time {
	if t == nil {
		return nil
	}
	return &t.t0
}

// fanout 将同一记录分发给多个 handler（终端 + 文件）。
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, lv slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, lv) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
