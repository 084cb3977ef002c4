package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 地图集位于 /data（容器挂载约定），评分脚本位于 /work/bs-parity-main.js；
// - 结论输出到 stdout；
// - 选项包含所有键，值为安全中性默认。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "manifest_name": "info.dat"
}`)
	cfg.Options.Scorer = json.RawMessage(`{
  "script_path": "/work/bs-parity-main.js",
  "summary_id": "summary",
  "console_prefix": "stdout:"
}`)
	cfg.Options.Emitter = json.RawMessage(`{
  "indent": ""
}`)
	return cfg
}

// DotEnvTemplate 列出所有支持的环境变量覆盖项（--init-config 生成 .env 用）。
func DotEnvTemplate() string {
	return `# bsparity .env 模板（由 --init-config 生成）
# 优先级：CLI > ENV(.env) > 配置文件 > 默认值
# 空值表示未设置。

# 配置来源（可二选一；文件支持 .json/.yaml/.yml）
BSPARITY_CONFIG_FILE=
BSPARITY_CONFIG_JSON=

# 运行参数覆盖
BSPARITY_ROOT=
BSPARITY_SCRIPT=
BSPARITY_LOG_LEVEL=
BSPARITY_LOG_DIR=

# 组件选择
BSPARITY_COMPONENTS_READER=
BSPARITY_COMPONENTS_SCORER=
BSPARITY_COMPONENTS_EMITTER=

# 组件 Options（原样 JSON，整体替换配置文件中的对应子树）
BSPARITY_OPTIONS_READER_JSON=
BSPARITY_OPTIONS_SCORER_JSON=
BSPARITY_OPTIONS_EMITTER_JSON=
`
}
