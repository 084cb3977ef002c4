package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix: 所有覆盖项的环境变量前缀。
const EnvPrefix = "BSPARITY_"

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Root:    "/data",
		Logging: Logging{Level: "info"},
		Components: Components{
			Reader:  "fs",
			Scorer:  "js",
			Emitter: "stdout",
		},
	}
}

// Load 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
// raw 优先；文件扩展名为 .yaml/.yml 时按 YAML 解析，其余按 JSON。
func Load(path string, raw []byte) (Config, error) {
	switch {
	case len(raw) > 0:
		return decodeStrict(bytes.NewReader(raw))
	case path != "":
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			b, err := os.ReadFile(path)
			if err != nil {
				return Config{}, err
			}
			return LoadYAML(b)
		}
		f, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer f.Close()
		return decodeStrict(f)
	default:
		return Config{}, errors.New("no config source provided")
	}
}

// LoadYAML 将 YAML 文档转为 JSON 后走同一严格解码路径，
// 使 options 子树在两种格式下得到相同的原样 JSON。
func LoadYAML(b []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return Config{}, nil
	}
	if _, ok := doc.(map[string]any); !ok {
		return Config{}, fmt.Errorf("yaml: top level must be a mapping, got %T", doc)
	}
	j, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return decodeStrict(bytes.NewReader(j))
}

func decodeStrict(r io.Reader) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.Root); s != "" {
		out.Root = s
	}
	if s := strings.TrimSpace(over.Script); s != "" {
		out.Script = s
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Scorer != "" {
		out.Components.Scorer = over.Components.Scorer
	}
	if over.Components.Emitter != "" {
		out.Components.Emitter = over.Components.Emitter
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Scorer) > 0 {
		out.Options.Scorer = cloneRaw(over.Options.Scorer)
	}
	if len(over.Options.Emitter) > 0 {
		out.Options.Emitter = cloneRaw(over.Options.Emitter)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 BSPARITY_；集合之外的键忽略。
// 支持：ROOT, SCRIPT, LOG_LEVEL, LOG_DIR, COMPONENTS_{READER,SCORER,EMITTER},
// OPTIONS_{READER,SCORER,EMITTER}_JSON（原样 JSON，非法时报错）。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		switch key {
		case "ROOT":
			over.Root = val
		case "SCRIPT":
			over.Script = val
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_SCORER":
			over.Components.Scorer = val
		case "COMPONENTS_EMITTER":
			over.Components.Emitter = val
		case "OPTIONS_READER_JSON", "OPTIONS_SCORER_JSON", "OPTIONS_EMITTER_JSON":
			// 空值视为未设置，避免清空文件中的配置
			if val == "" {
				continue
			}
			if !json.Valid([]byte(val)) {
				return Config{}, fmt.Errorf("env %s%s: invalid json", EnvPrefix, key)
			}
			raw := json.RawMessage(val)
			switch key {
			case "OPTIONS_READER_JSON":
				over.Options.Reader = raw
			case "OPTIONS_SCORER_JSON":
				over.Options.Scorer = raw
			default:
				over.Options.Emitter = raw
			}
		}
	}
	return over, nil
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// setOption 在原样 JSON 对象中设置一个键（其余键保持不变）。
func setOption(raw json.RawMessage, key string, val any) (json.RawMessage, error) {
	m := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
		if m == nil {
			m = map[string]any{}
		}
	}
	m[key] = val
	return json.Marshal(m)
}
