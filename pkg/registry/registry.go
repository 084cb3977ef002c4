package registry

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"bsparity/pkg/contract"
	efs "bsparity/plugins/emitter/filesystem"
	estd "bsparity/plugins/emitter/stdout"
	rfs "bsparity/plugins/reader/filesystem"
	rtar "bsparity/plugins/reader/tarball"
	sjs "bsparity/plugins/scorer/jsparity"
	smock "bsparity/plugins/scorer/mock"
)

// Console: 评分脚本 console.* 的副通道，主通道（stdout）只留给 Verdict。
var Console io.Writer = os.Stderr

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewScorer 工厂签名：返回按地图集创建评分会话的引擎。
type NewScorer func(raw json.RawMessage) (contract.ScorerEngine, error)

// NewEmitter 工厂签名：接收原样 JSON Options。
type NewEmitter func(raw json.RawMessage) (contract.Emitter, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 目录或 info.dat 路径
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
	// tar: .tar 归档或 "-"（STDIN）
	"tar": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rtar.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rtar.New(&opts), nil
	},
}

// Scorer 工厂注册表。
var Scorer = map[string]NewScorer{
	// js: 在嵌入式 JS 运行时中执行 bs-parity 脚本
	"js": func(raw json.RawMessage) (contract.ScorerEngine, error) {
		var opts sjs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sjs.New(&opts, Console)
	},
	// mock: 预设计数或按 _customData.diag 标记计数
	"mock": func(raw json.RawMessage) (contract.ScorerEngine, error) {
		var opts smock.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return smock.New(&opts), nil
	},
}

// Emitter 工厂注册表。
var Emitter = map[string]NewEmitter{
	// stdout: 单行 JSON 写到标准输出
	"stdout": func(raw json.RawMessage) (contract.Emitter, error) {
		var opts estd.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return estd.New(&opts), nil
	},
	// fs: 写入文件（可原子替换）
	"fs": func(raw json.RawMessage) (contract.Emitter, error) {
		var opts efs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return efs.New(&opts)
	},
}
