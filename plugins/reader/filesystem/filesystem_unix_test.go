//go:build !windows

package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"bsparity/pkg/contract"
)

// TestRootSymlink root 为指向目录的符号链接时跟随 (Unix only)
func TestRootSymlink(t *testing.T) {
	dir := writeSet(t, map[string]string{"info.dat": "M"})
	link := filepath.Join(t.TempDir(), "set")
	if err := os.Symlink(dir, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	set, err := New(nil).Open(context.Background(), link)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rc, err := set.Manifest()
	if got := readAll(t, rc, err); got != "M" {
		t.Fatalf("manifest %q", got)
	}
}

// TestMapSymlinkFile 指向常规文件的符号链接可读；失效链接返回错误 (Unix only)
func TestMapSymlinkFile(t *testing.T) {
	dir := writeSet(t, map[string]string{"info.dat": "M", "real.dat": "R"})
	os.Symlink(filepath.Join(dir, "real.dat"), filepath.Join(dir, "link.dat"))
	os.Symlink(filepath.Join(dir, "none.dat"), filepath.Join(dir, "dangling.dat"))
	set, _ := New(nil).Open(context.Background(), dir)
	rc, err := set.Map("link.dat")
	if got := readAll(t, rc, err); got != "R" {
		t.Fatalf("link %q", got)
	}
	if _, err := set.Map("dangling.dat"); err == nil {
		t.Fatalf("expect error for dangling symlink")
	}
}

// TestMapNonRegular 非常规文件被拒绝 (Unix only - uses mkfifo)
func TestMapNonRegular(t *testing.T) {
	dir := writeSet(t, map[string]string{"info.dat": "M"})
	if err := syscall.Mkfifo(filepath.Join(dir, "fifo.dat"), 0o644); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}
	set, _ := New(nil).Open(context.Background(), dir)
	rc, err := set.Map("fifo.dat")
	if !errors.Is(err, contract.ErrPathInvalid) {
		if rc != nil {
			io.Copy(io.Discard, rc)
		}
		t.Fatalf("want ErrPathInvalid, got %v", err)
	}
}
