package contract

import (
	"context"
	"io"
)

// Reader: 地图集来源抽象（目录/归档）。
// 约束：
// 1) 每次运行只打开一个地图集；
// 2) 不做业务解析，仅提供字节流；
// 3) 不在内部起并发。
type Reader interface {
	Open(ctx context.Context, root string) (MapSet, error)
}

// MapSet: 已打开的地图集，即 RunBatch 的地图文件解析器。
// Map 的 name 取自 manifest 的 _beatmapFilename；越界路径返回 ErrPathInvalid。
type MapSet interface {
	Manifest() (io.ReadCloser, error)
	Map(name string) (io.ReadCloser, error)
	Close() error
}
