package tarball

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"bsparity/pkg/contract"
)

// Options 为 Tarball Reader 的可选配置（最小必要）。
type Options struct {
	// ManifestName: manifest 文件名，按基名大小写不敏感匹配。默认 "info.dat"。
	ManifestName string `json:"manifest_name"`
	// MaxBytes: 归档内所有常规文件的总大小上限。默认 256MiB。
	MaxBytes int64 `json:"max_bytes"`
}

const (
	defaultManifest = "info.dat"
	defaultMax      = 256 << 20
)

// Tarball 从 .tar 归档读取地图集；root 为 "-" 时从 STDIN 读取归档。
// 归档一次性载入内存：manifest 引用的文件可能以任意顺序出现。
type Tarball struct {
	manifest string
	max      int64
}

func New(opts *Options) *Tarball {
	t := &Tarball{manifest: defaultManifest, max: defaultMax}
	if opts != nil {
		if s := strings.TrimSpace(opts.ManifestName); s != "" {
			t.manifest = s
		}
		if opts.MaxBytes > 0 {
			t.max = opts.MaxBytes
		}
	}
	return t
}

func (t *Tarball) Open(ctx context.Context, root string) (contract.MapSet, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: empty root", contract.ErrInvalidInput)
	}
	if root == "-" {
		return t.load(ctx, os.Stdin)
	}
	f, err := os.Open(root)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return t.load(ctx, f)
}

func (t *Tarball) load(ctx context.Context, r io.Reader) (*memSet, error) {
	set := &memSet{files: make(map[contract.FileID][]byte)}
	var total int64
	tr := tar.NewReader(r)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return nil, fmt.Errorf("%w: %v", contract.ErrPathInvalid, err)
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		id, err := contract.MapFileID(hdr.Name)
		if err != nil {
			return nil, fmt.Errorf("archive entry: %w", err)
		}
		if _, dup := set.files[id]; dup {
			return nil, fmt.Errorf("%w: duplicate archive entry %q", contract.ErrInvalidInput, id)
		}
		total += hdr.Size
		if total > t.max {
			return nil, fmt.Errorf("%w: archive exceeds %d bytes", contract.ErrInvalidInput, t.max)
		}
		b, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", id, err)
		}
		set.files[id] = b
		// manifest 只在归档根目录查找
		if !strings.Contains(string(id), "/") && strings.EqualFold(string(id), t.manifest) {
			if set.manifest != "" {
				return nil, fmt.Errorf("%w: ambiguous manifest %q and %q", contract.ErrManifestParse, set.manifest, id)
			}
			set.manifest = id
		}
	}
	if set.manifest == "" {
		return nil, fmt.Errorf("%w: no %s in archive", contract.ErrManifestParse, t.manifest)
	}
	return set, nil
}

type memSet struct {
	manifest contract.FileID
	files    map[contract.FileID][]byte
}

func (s *memSet) Manifest() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.files[s.manifest])), nil
}

func (s *memSet) Map(name string) (io.ReadCloser, error) {
	id, err := contract.MapFileID(name)
	if err != nil {
		return nil, err
	}
	b, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path.Join("<archive>", string(id)), os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memSet) Close() error {
	s.files = nil
	return nil
}
