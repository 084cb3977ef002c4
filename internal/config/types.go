package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON/YAML 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Root: 地图集位置（目录、info.dat 或 .tar，取决于 reader）。
	Root string `json:"root"`
	// Script: 评分脚本路径的快捷写法，等价于 options.scorer.script_path（仅 js 评分方）。
	Script  string  `json:"script,omitempty"`
	Logging Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 级别与可选的 JSON 文件旁路目录（空表示仅终端）。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir,omitempty"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader  string `json:"reader"`
	Scorer  string `json:"scorer"`
	Emitter string `json:"emitter"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader  json.RawMessage `json:"reader,omitempty"`
	Scorer  json.RawMessage `json:"scorer,omitempty"`
	Emitter json.RawMessage `json:"emitter,omitempty"`
}
