package stdout

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"bsparity/pkg/contract"
)

// Options 为 stdout Emitter 的可选配置。
type Options struct {
	// Indent: 非空时美化输出（调试用）；默认单行。
	Indent string `json:"indent"`
}

// Stdout 是主通道：进程在 stdout 上只写这一个 JSON 载荷。
type Stdout struct {
	w      io.Writer
	indent string
}

func New(opts *Options) *Stdout {
	return NewWriter(os.Stdout, opts)
}

// NewWriter 以任意 io.Writer 作为主通道（测试与嵌入使用）。
func NewWriter(w io.Writer, opts *Options) *Stdout {
	s := &Stdout{w: w}
	if opts != nil {
		s.indent = opts.Indent
	}
	return s
}

var _ contract.Emitter = (*Stdout)(nil)

func (s *Stdout) Emit(ctx context.Context, v contract.Verdict) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	enc := json.NewEncoder(s.w)
	enc.SetEscapeHTML(false)
	if s.indent != "" {
		enc.SetIndent("", s.indent)
	}
	return enc.Encode(v)
}
