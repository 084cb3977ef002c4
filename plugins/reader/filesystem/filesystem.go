package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bsparity/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ManifestName: manifest 文件名，按基名大小写不敏感匹配。默认 "info.dat"。
	ManifestName string `json:"manifest_name"`
}

const (
	defaultBuf      = 64 * 1024
	defaultManifest = "info.dat"
)

// FileSystem 从目录读取地图集：root 为地图集目录，或目录内的 manifest 文件本身。
type FileSystem struct {
	bufSize  int
	manifest string
}

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	b := defaultBuf
	m := defaultManifest
	if opts != nil {
		if opts.BufSize > 0 {
			b = opts.BufSize
		}
		if s := strings.TrimSpace(opts.ManifestName); s != "" {
			m = s
		}
	}
	return &FileSystem{bufSize: b, manifest: m}
}

// Open 定位地图集目录与 manifest。目录内多个大小写变体同时存在时报错。
func (r *FileSystem) Open(ctx context.Context, root string) (contract.MapSet, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: empty root", contract.ErrInvalidInput)
	}

	// 跟随符号链接：root 允许是指向目录或 manifest 的链接
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	dir := root
	switch {
	case info.IsDir():
	case info.Mode().IsRegular():
		if !strings.EqualFold(filepath.Base(root), r.manifest) {
			return nil, fmt.Errorf("%w: %s is neither a directory nor %s", contract.ErrInvalidInput, root, r.manifest)
		}
		dir = filepath.Dir(root)
	default:
		return nil, fmt.Errorf("%w: %s is not a regular file or directory", contract.ErrInvalidInput, root)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var found []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), r.manifest) {
			found = append(found, e.Name())
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: no %s in %s", contract.ErrManifestParse, r.manifest, dir)
	case 1:
	default:
		return nil, fmt.Errorf("%w: ambiguous manifest in %s: %v", contract.ErrManifestParse, dir, found)
	}
	return &dirSet{dir: dir, manifest: found[0], bufSize: r.bufSize}, nil
}

// dirSet 按需打开文件，不做缓存。
type dirSet struct {
	dir      string
	manifest string
	bufSize  int
}

func (s *dirSet) Manifest() (io.ReadCloser, error) {
	return s.open(filepath.Join(s.dir, s.manifest))
}

func (s *dirSet) Map(name string) (io.ReadCloser, error) {
	id, err := contract.MapFileID(name)
	if err != nil {
		return nil, err
	}
	return s.open(filepath.Join(s.dir, filepath.FromSlash(string(id))))
}

func (s *dirSet) Close() error { return nil }

// open 仅打开常规文件（允许指向常规文件的符号链接）。
func (s *dirSet) open(p string) (io.ReadCloser, error) {
	t, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if !t.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", contract.ErrPathInvalid, p)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	return newBufferedCloser(f, s.bufSize), nil
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func newBufferedCloser(c io.ReadCloser, bufSize int) *bufferedCloser {
	if bufSize <= 0 {
		bufSize = defaultBuf
	}
	return &bufferedCloser{Reader: bufio.NewReaderSize(c, bufSize), c: c}
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
