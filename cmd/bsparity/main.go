package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "bsparity/internal/config"
	"bsparity/internal/diag"
	"bsparity/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 退出码：0 已输出结论（通过或未通过）；1 运行期致命错误；3 配置/装配错误。
const (
	exitOK     = 0
	exitRun    = 1
	exitConfig = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

type cliFlags struct {
	config   string
	reader   string
	scorer   string
	script   string
	emitter  string
	logLevel string
	logDir   string
	initDir  string
	status   bool
}

func newRootCmd(code *int) *cobra.Command {
	var f cliFlags
	cmd := &cobra.Command{
		Use:   "bsparity [root]",
		Short: "对 Beat Saber 地图集批量运行 parity 检查并输出单行 JSON 结论",
		Long: `bsparity 读取地图集（目录、info.dat 或 .tar 归档），
对 Hard/Expert/ExpertPlus 难度逐一运行 parity 评分脚本，
并向标准输出写出 {"failed":bool,"whyfailed":string}。`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*code = execute(cmd.Context(), f, args)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", "", "配置文件路径（.json/.yaml/.yml）；缺省读取 ./config.json（若存在）")
	fl.StringVar(&f.reader, "reader", "", "地图集读取器：fs|tar（覆盖配置）")
	fl.StringVar(&f.scorer, "scorer", "", "评分方：js|mock（覆盖配置）")
	fl.StringVar(&f.script, "script", "", "评分脚本路径（仅 js 评分方）")
	fl.StringVar(&f.emitter, "emitter", "", "结论输出：stdout|fs（覆盖配置）")
	fl.StringVar(&f.logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	fl.StringVar(&f.logDir, "log-dir", "", "JSON 日志旁路目录（覆盖配置）")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	fl.StringVar(&f.initDir, "init-config", "", "在指定目录生成默认 config.json 和 .env 模板（已存在则跳过）；不带值时为当前目录")
	return cmd
}

func run(args []string) int {
	code := exitOK
	cmd := newRootCmd(&code)
	// 返回值非 nil，cobra 不会回退到 os.Args
	cmd.SetArgs(normalizeInitArg(args))
	cmd.SetOut(os.Stderr)
	cmd.SetErr(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fprintf(os.Stderr, "参数错误: %v\n", err)
		return exitConfig
	}
	return code
}

// normalizeInitArg: 允许 --init-config 在未提供路径值时采用当前目录 "."。
// 兼容以下形式：
//
//	--init-config                => 等价于 --init-config .
//	--init-config=out
//	--init-config out
//
// 仅在“裸开关位于末尾或后继为下一个开关”时插入默认值。
// 返回值总是非 nil。
func normalizeInitArg(args []string) []string {
	out := make([]string, 0, len(args)+1)
	for i, a := range args {
		out = append(out, a)
		if a != "--init-config" {
			continue
		}
		if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
			out = append(out, ".")
		}
	}
	return out
}

func execute(ctx context.Context, f cliFlags, args []string) int {
	start := time.Now()
	diag.ResetMetrics()
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）。
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		fprintf(os.Stderr, "提示：.env 读取失败（已跳过）：%v\n", err)
	}
	corrID := uuid.NewString()
	// 先占位默认级别，合并配置后再调整
	logger := diag.NewLogger(corrID, diag.Options{Level: "info", Console: os.Stderr})
	slog.SetDefault(logger.Slog())

	if dir := strings.TrimSpace(f.initDir); dir != "" {
		return initConfig(dir, logger, &start)
	}

	// 配置来源：--config > BSPARITY_CONFIG_FILE > BSPARITY_CONFIG_JSON > ./config.json
	cfgPath := f.config
	if cfgPath == "" {
		cfgPath = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	var cfgJSON []byte
	if cfgPath == "" {
		if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
			cfgJSON = []byte(s)
		}
	}
	if cfgPath == "" && len(cfgJSON) == 0 {
		if _, err := os.Stat("config.json"); err == nil {
			cfgPath = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	if cfgPath != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.Load(cfgPath, cfgJSON)
		if err != nil {
			fprintf(os.Stderr, "配置解析失败: %v\n", err)
			logger.Error("config", diag.Classify(err), "load failed", &start)
			return exitConfig
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fprintf(os.Stderr, "环境变量解析失败: %v\n", err)
		logger.Error("config", diag.Classify(err), "env overlay failed", &start)
		return exitConfig
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	var overCLI cfgpkg.Config
	if len(args) > 0 {
		overCLI.Root = args[0]
	}
	overCLI.Script = f.script
	overCLI.Logging = cfgpkg.Logging{Level: f.logLevel, Dir: f.logDir}
	overCLI.Components = cfgpkg.Components{Reader: f.reader, Scorer: f.scorer, Emitter: f.emitter}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(cfg)
		logger.Error("config", diag.Classify(err), "validate failed", &start)
		return exitConfig
	}

	// 级别按最终配置就地调整；需要文件旁路时才重建 logger
	logger.SetLevel(cfg.Logging.Level)
	if strings.TrimSpace(cfg.Logging.Dir) != "" {
		logger = diag.NewLogger(corrID, diag.Options{Level: cfg.Logging.Level, Console: os.Stderr, Dir: cfg.Logging.Dir})
		defer logger.Close()
		slog.SetDefault(logger.Slog())
	}

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("config", diag.Classify(err), "assemble failed", &start)
		return exitConfig
	}

	logger.Debug("config", "effective", "", map[string]string{
		"root":    set.Root,
		"reader":  cfg.Components.Reader,
		"scorer":  set.ScorerName,
		"emitter": cfg.Components.Emitter,
		"script":  cfg.Script,
		"log_dir": cfg.Logging.Dir,
	})

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, f.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	t := logger.Start("pipeline", "run")
	if err := pipelineRun(ctx, comp, set, logger); err != nil {
		code := diag.Classify(err)
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("pipeline", "error", "error")
		if code != diag.CodeUnknown {
			diag.IncError("pipeline", code)
		}
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		logger.Debug("pipeline", "metrics", "", diag.TakeSnapshot().KV())
		return exitRun
	}
	t.Finish("run", 0, nil)
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start).Milliseconds())
	logger.Debug("pipeline", "metrics", "", diag.TakeSnapshot().KV())
	return exitOK
}

func initConfig(dir string, logger *diag.Logger, start *time.Time) int {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		logger.Error("config", diag.Classify(err), "init failed", start)
		return exitConfig
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
		fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
		logger.Error("config", diag.Classify(err), "init failed", start)
		return exitConfig
	}
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return exitOK
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

// writeConfig 写出配置模板；"-" 表示 stdout。已存在的文件不覆盖。
func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(cfgpkg.DotEnvTemplate())
	return err
}
