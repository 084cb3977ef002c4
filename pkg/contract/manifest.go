package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Manifest: 地图集描述（info.dat），每次运行只读一次。
type Manifest struct {
	Sets []CharacteristicGroup
}

// CharacteristicGroup: 一种玩法模式（如 "Standard"）及其有序难度列表。
type CharacteristicGroup struct {
	Name         string
	Difficulties []DifficultyEntry
}

// DifficultyEntry: 一个可玩难度。Label 保留原文，在批处理时校验。
type DifficultyEntry struct {
	Label    string
	Filename string
}

// info.dat 的最小必要字段；指针用于区分“缺失”与“空值”。
type infoDat struct {
	Sets *[]infoSet `json:"_difficultyBeatmapSets"`
}

type infoSet struct {
	Name     *string        `json:"_beatmapCharacteristicName"`
	Beatmaps *[]infoBeatmap `json:"_difficultyBeatmaps"`
}

type infoBeatmap struct {
	Difficulty *string `json:"_difficulty"`
	Filename   *string `json:"_beatmapFilename"`
}

// ParseManifest 解析 info.dat。非法 JSON 或缺失必需字段返回 ErrManifestParse。
// 其余字段（歌曲名、BPM 等）忽略。
func ParseManifest(r io.Reader) (Manifest, error) {
	var raw infoDat
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrManifestParse, err)
	}
	// 文档必须恰好是一个 JSON 值
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("trailing data after manifest")
		}
		return Manifest{}, fmt.Errorf("%w: %v", ErrManifestParse, err)
	}
	if raw.Sets == nil {
		return Manifest{}, fmt.Errorf("%w: missing _difficultyBeatmapSets", ErrManifestParse)
	}
	m := Manifest{Sets: make([]CharacteristicGroup, 0, len(*raw.Sets))}
	for i, s := range *raw.Sets {
		if s.Name == nil {
			return Manifest{}, fmt.Errorf("%w: set %d missing _beatmapCharacteristicName", ErrManifestParse, i)
		}
		if s.Beatmaps == nil {
			return Manifest{}, fmt.Errorf("%w: set %q missing _difficultyBeatmaps", ErrManifestParse, *s.Name)
		}
		g := CharacteristicGroup{Name: *s.Name, Difficulties: make([]DifficultyEntry, 0, len(*s.Beatmaps))}
		for j, b := range *s.Beatmaps {
			if b.Difficulty == nil || b.Filename == nil {
				return Manifest{}, fmt.Errorf("%w: set %q beatmap %d missing _difficulty or _beatmapFilename", ErrManifestParse, *s.Name, j)
			}
			g.Difficulties = append(g.Difficulties, DifficultyEntry{Label: *b.Difficulty, Filename: *b.Filename})
		}
		m.Sets = append(m.Sets, g)
	}
	return m, nil
}
