package contract

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// MapStats: 地图数据的只读摘要，仅用于日志与前置校验。
// 具体 note/wall 结构归评分方所有，这里只数个数。
type MapStats struct {
	Version string
	Notes   int64
	Walls   int64
}

// StatMap 校验地图字节为 JSON 对象并提取摘要。
// 兼容 v2（_notes/_obstacles）与 v3（colorNotes/obstacles）字段命名。
func StatMap(b []byte) (MapStats, error) {
	if !gjson.ValidBytes(b) {
		return MapStats{}, fmt.Errorf("%w: invalid json", ErrMapParse)
	}
	doc := gjson.ParseBytes(b)
	if !doc.IsObject() {
		return MapStats{}, fmt.Errorf("%w: top level is %s, want object", ErrMapParse, doc.Type)
	}
	var st MapStats
	if v := doc.Get("_version"); v.Exists() {
		st.Version = v.String()
		st.Notes = doc.Get("_notes.#").Int()
		st.Walls = doc.Get("_obstacles.#").Int()
		return st, nil
	}
	if v := doc.Get("version"); v.Exists() {
		st.Version = v.String()
		st.Notes = doc.Get("colorNotes.#").Int()
		st.Walls = doc.Get("obstacles.#").Int()
		return st, nil
	}
	// 无版本字段的旧格式按 v2 命名处理
	st.Notes = doc.Get("_notes.#").Int()
	st.Walls = doc.Get("_obstacles.#").Int()
	return st, nil
}
