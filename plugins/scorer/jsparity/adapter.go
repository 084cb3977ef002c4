package jsparity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"bsparity/pkg/contract"
)

// Options 为 JS 评分方的可选配置（最小必要）。
type Options struct {
	// ScriptPath: 评分脚本（bs-parity main.js）路径。默认 /work/bs-parity-main.js。
	ScriptPath string `json:"script_path"`
	// SummaryID: 唯一被模拟的输出容器 id。默认 "summary"。
	SummaryID string `json:"summary_id"`
	// ConsolePrefix: console.* 转发到副通道时的行前缀。默认 "stdout:"。
	ConsolePrefix string `json:"console_prefix"`
}

const (
	defaultScriptPath    = "/work/bs-parity-main.js"
	defaultSummaryID     = "summary"
	defaultConsolePrefix = "stdout:"
)

// 评分方约定的入口，加载后逐一确认存在。
var requiredEntries = []string{"getNotes", "getWalls", "checkParity"}

// bootstrap 在评分脚本之后执行：替换 UI 钩子，并提供单一评估入口。
// 通过赋值而非 Runtime.Set 覆盖，使脚本里的 let/var/function 声明都能被命中。
var bootstrap = goja.MustCompile("bsparity-bootstrap.js", `
outputUI = function (note, parity, message, messageType, persistent) {
	__bsparity_report(note, parity, message, messageType, persistent === true);
};
clearOutput = function () {};
function __bsparity_evaluate(raw) {
	var parsed = JSON.parse(raw);
	notesArray = getNotes(parsed);
	wallsArray = getWalls(parsed);
	ready = true;
	checkParity();
}
`, false)

// Engine 持有编译一次的评分脚本；每个地图集运行通过 NewSession 获得独立运行时。
type Engine struct {
	name      string
	program   *goja.Program
	summaryID string
	prefix    string
	console   io.Writer
}

// New 读取并编译评分脚本。console 为副通道（通常是 stderr），nil 表示丢弃。
func New(opts *Options, console io.Writer) (*Engine, error) {
	path := defaultScriptPath
	if opts != nil && strings.TrimSpace(opts.ScriptPath) != "" {
		path = strings.TrimSpace(opts.ScriptPath)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrCollaboratorLoad, err)
	}
	return Compile(path, src, opts, console)
}

// Compile 以给定名称编译脚本源码。
func Compile(name string, src []byte, opts *Options, console io.Writer) (*Engine, error) {
	prog, err := goja.Compile(name, string(src), false)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s: %v", contract.ErrCollaboratorLoad, name, err)
	}
	e := &Engine{
		name:      name,
		program:   prog,
		summaryID: defaultSummaryID,
		prefix:    defaultConsolePrefix,
		console:   console,
	}
	if opts != nil {
		if s := strings.TrimSpace(opts.SummaryID); s != "" {
			e.summaryID = s
		}
		if opts.ConsolePrefix != "" {
			e.prefix = opts.ConsolePrefix
		}
	}
	return e, nil
}

// Session 是一个隔离的运行时：垫片、评分脚本与拦截器只在其中安装，
// 地图集之间不共享任何全局状态。非并发安全，与单线程运行模型一致。
type Session struct {
	vm       *goja.Runtime
	shim     *shim
	rep      contract.Reporter
	evaluate goja.Callable
	log      *slog.Logger
	current  contract.FileID
}

// NewSession 构造全新的运行时并加载评分脚本。
func (e *Engine) NewSession() (*Session, error) {
	vm := goja.New()
	s := &Session{
		vm:  vm,
		rep: NewCollector(),
		log: slog.Default().With("comp", "scorer"),
	}
	sh, err := installShim(vm, e.summaryID, e.console, e.prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: shim: %v", contract.ErrCollaboratorLoad, err)
	}
	s.shim = sh
	report := reportFunc(s.rep, s.log, func() contract.FileID { return s.current })
	if err := vm.Set("__bsparity_report", report); err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrCollaboratorLoad, err)
	}

	if _, err := vm.RunProgram(e.program); err != nil {
		if sh.mismatch != nil {
			return nil, sh.mismatch
		}
		return nil, fmt.Errorf("%w: run %s: %v", contract.ErrCollaboratorLoad, e.name, err)
	}
	if sh.mismatch != nil {
		return nil, sh.mismatch
	}
	for _, name := range requiredEntries {
		v, err := vm.RunString("typeof " + name)
		if err != nil || v.String() != "function" {
			return nil, fmt.Errorf("%w: %s does not define %s()", contract.ErrCollaboratorLoad, e.name, name)
		}
	}
	if _, err := vm.RunProgram(bootstrap); err != nil {
		return nil, fmt.Errorf("%w: bootstrap: %v", contract.ErrCollaboratorLoad, err)
	}
	fn, ok := goja.AssertFunction(vm.Get("__bsparity_evaluate"))
	if !ok {
		return nil, fmt.Errorf("%w: bootstrap entry missing", contract.ErrCollaboratorLoad)
	}
	s.evaluate = fn
	return s, nil
}

// Evaluate 对单个难度运行 checkParity 并统计 error/warning。
// 步骤：清空诊断集合 → 校验 JSON → 注入 notes/walls/ready → 同步评估 → 计数。
func (s *Session) Evaluate(ctx context.Context, id contract.FileID, r io.Reader) (contract.DifficultyResult, error) {
	s.rep.Reset()
	s.current = id
	if err := ctx.Err(); err != nil {
		return contract.DifficultyResult{}, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return contract.DifficultyResult{}, fmt.Errorf("read %s: %w", id, err)
	}
	st, err := contract.StatMap(b)
	if err != nil {
		return contract.DifficultyResult{}, fmt.Errorf("%s: %w", id, err)
	}

	stop := s.interruptOnDone(ctx)
	_, err = s.evaluate(goja.Undefined(), s.vm.ToValue(string(b)))
	stop()

	if s.shim.mismatch != nil {
		return contract.DifficultyResult{}, s.shim.mismatch
	}
	if err != nil {
		var ie *goja.InterruptedError
		if errors.As(err, &ie) && ctx.Err() != nil {
			return contract.DifficultyResult{}, fmt.Errorf("checkParity %s: %w", id, ctx.Err())
		}
		return contract.DifficultyResult{}, fmt.Errorf("%w: checkParity %s: %v", contract.ErrCollaboratorRuntime, id, err)
	}

	res := contract.Tally(id, s.rep.Diagnostics())
	s.log.Debug("evaluated",
		"file_id", string(id),
		"map_version", st.Version,
		"notes", st.Notes,
		"walls", st.Walls,
		"diagnostics", len(res.Diagnostics),
		"errors", res.Errors,
		"warnings", res.Warnings,
		"summary", s.shim.summaryText(),
	)
	return res, nil
}

// interruptOnDone 在 ctx 结束时中断运行时；返回的 stop 等待监视协程退出并清除残留中断。
// 超时策略不在此处配置，由外部调用方通过 ctx 或进程级超时给出。
func (s *Session) interruptOnDone(ctx context.Context) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			s.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		wg.Wait()
		s.vm.ClearInterrupt()
	}
}

// NewScorer 实现 contract.ScorerEngine：每次地图集运行一个新 Session。
func (e *Engine) NewScorer() (contract.Scorer, error) {
	s, err := e.NewSession()
	if err != nil {
		return nil, err
	}
	return s, nil
}
