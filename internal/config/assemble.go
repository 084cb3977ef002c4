package config

import (
	"errors"
	"fmt"
	"strings"

	"bsparity/internal/pipeline"
	"bsparity/pkg/registry"
)

var validLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Root) == "" {
		return errors.New("config: root empty")
	}
	if !validLevels[strings.ToLower(strings.TrimSpace(cfg.Logging.Level))] {
		return fmt.Errorf("config: logging.level %q invalid (debug|info|warn|error)", cfg.Logging.Level)
	}
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	sn := effName(cfg.Components.Scorer, d.Components.Scorer)
	if registry.Scorer[sn] == nil {
		return fmt.Errorf("config: scorer %q not registered", sn)
	}
	if cfg.Script != "" && sn != "js" {
		return fmt.Errorf("config: script is only used by scorer \"js\", got %q", sn)
	}
	if name := effName(cfg.Components.Emitter, d.Components.Emitter); registry.Emitter[name] == nil {
		return fmt.Errorf("config: emitter %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
// js 评分方在此一次性加载并编译脚本，加载失败属于装配错误。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	sn := effName(cfg.Components.Scorer, d.Components.Scorer)
	en := effName(cfg.Components.Emitter, d.Components.Emitter)

	scorerOpts := cfg.Options.Scorer
	if cfg.Script != "" {
		raw, err := setOption(scorerOpts, "script_path", cfg.Script)
		if err != nil {
			return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("scorer %s: %w", sn, err)
		}
		scorerOpts = raw
	}

	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("reader %s: %w", rn, err)
	}
	s, err := registry.Scorer[sn](scorerOpts)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("scorer %s: %w", sn, err)
	}
	e, err := registry.Emitter[en](cfg.Options.Emitter)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("emitter %s: %w", en, err)
	}

	comp := pipeline.Components{Reader: r, Scorer: s, Emitter: e}
	set := pipeline.Settings{Root: strings.TrimSpace(cfg.Root), ScorerName: sn}
	return comp, set, nil
}

func effName(got, def string) string {
	if strings.TrimSpace(got) == "" {
		return def
	}
	return strings.TrimSpace(got)
}
