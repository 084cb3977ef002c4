package contract

import "errors"

// 致命错误分类：均中止当前运行，不产出主通道载荷，不在内部重试。
var (
	// ErrManifestParse: manifest 不是合法 JSON 或缺少必需字段。
	ErrManifestParse = errors.New("manifest parse error")
	// ErrMapParse: 某个难度的地图文件不是合法 JSON。整批失败，不给部分结论。
	ErrMapParse = errors.New("map parse error")
	// ErrUnknownDifficulty: 难度标签不在固定枚举内，视为数据完整性问题。
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	// ErrShimMismatch: 协作方请求了环境垫片未模拟的能力。
	ErrShimMismatch = errors.New("shim mismatch")
	// ErrCollaboratorLoad: 评分脚本无法读取/编译/初始化，或缺少约定入口。
	ErrCollaboratorLoad = errors.New("collaborator load failed")
	// ErrCollaboratorRuntime: 评分方在评估期间抛出异常（已加载成功之后）。
	ErrCollaboratorRuntime = errors.New("collaborator runtime error")
	// ErrPathInvalid: manifest 引用的文件名为绝对路径或逃逸地图集根目录。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidInput: 调用方传入的参数不满足前置条件。
	ErrInvalidInput = errors.New("invalid input")
)
