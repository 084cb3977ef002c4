package diag

import (
	"context"
	"errors"
	"io/fs"

	"bsparity/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown           Code = "unknown"
	CodeManifest          Code = "manifest"
	CodeMapParse          Code = "map_parse"
	CodeUnknownDifficulty Code = "unknown_difficulty"
	CodeShimMismatch      Code = "shim_mismatch"
	CodeCollaborator      Code = "collaborator"
	CodeInvariant         Code = "invariant"
	CodeCancel            Code = "cancel"
	CodeIO                Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	switch {
	case errors.Is(err, contract.ErrManifestParse):
		return CodeManifest
	case errors.Is(err, contract.ErrMapParse):
		return CodeMapParse
	case errors.Is(err, contract.ErrUnknownDifficulty):
		return CodeUnknownDifficulty
	case errors.Is(err, contract.ErrShimMismatch):
		return CodeShimMismatch
	case errors.Is(err, contract.ErrCollaboratorLoad), errors.Is(err, contract.ErrCollaboratorRuntime):
		return CodeCollaborator
	case errors.Is(err, contract.ErrInvalidInput), errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
