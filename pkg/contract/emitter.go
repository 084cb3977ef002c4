package contract

import "context"

// Emitter: 将最终 Verdict 交付给调用方流水线。
// 约束：
//  1. 只写 Verdict 本身，不夹带日志；
//  2. 致命错误的运行不会调用 Emit；
//  3. 错误直接上抛（不做重试/回退）。
type Emitter interface {
	Emit(ctx context.Context, v Verdict) error
}
