package filesystem

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bsparity/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// Path: 结论文件路径（必需）。父目录不存在时自动创建。
	Path string `json:"path"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：true。未提供该字段时采用原子写；显式 false 可关闭。
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用默认 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
}

// FS 将 Verdict 以单行 JSON 写入文件，供收集产物而非 stdout 的流水线使用。
type FS struct {
	path   string
	atomic bool
	permF  os.FileMode
	permD  os.FileMode
}

func New(opts *Options) (*FS, error) {
	if opts == nil || strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("%w: emitter fs requires path", contract.ErrInvalidInput)
	}
	p := filepath.Clean(opts.Path)
	if base := filepath.Base(p); base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: %q is not a file path", contract.ErrPathInvalid, opts.Path)
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	return &FS{path: p, atomic: atomic, permF: pf, permD: pd}, nil
}

var _ contract.Emitter = (*FS)(nil)

func (w *FS) Emit(ctx context.Context, v contract.Verdict) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := os.MkdirAll(filepath.Dir(w.path), w.permD); err != nil {
		return err
	}
	if w.atomic {
		return w.writeAtomic(b)
	}
	return os.WriteFile(w.path, b, w.permF)
}

func (w *FS) writeAtomic(b []byte) error {
	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, ".tmp-verdict-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, w.permF)

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	bw := bufio.NewWriter(tmp)
	if _, err := bw.Write(b); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// 平台特定的原子替换（或最佳努力）
	if err := osReplace(tmpPath, w.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// 最佳努力：同步父目录，提升崩溃安全性
	_ = syncDir(dir)
	return nil
}
