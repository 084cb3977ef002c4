package contract

import (
	"fmt"
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符（manifest 可能来自 Windows 打包工具）
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeFileID(p string) FileID {
	s := strings.ReplaceAll(p, "\\", "/")
	return FileID(path.Clean(s))
}

// MapFileID 将 manifest 中的地图文件名映射为地图集内的相对 FileID。
// 绝对路径、盘符路径或 '..' 逃逸均返回 ErrPathInvalid。
func MapFileID(name string) (FileID, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty filename", ErrPathInvalid)
	}
	id := NormalizeFileID(name)
	s := string(id)
	switch {
	case strings.HasPrefix(s, "/"):
		return "", fmt.Errorf("%w: absolute %q", ErrPathInvalid, name)
	case len(s) >= 2 && s[1] == ':':
		return "", fmt.Errorf("%w: drive %q", ErrPathInvalid, name)
	case s == ".." || strings.HasPrefix(s, "../"):
		return "", fmt.Errorf("%w: escapes root %q", ErrPathInvalid, name)
	case s == ".":
		return "", fmt.Errorf("%w: not a file %q", ErrPathInvalid, name)
	}
	return id, nil
}
