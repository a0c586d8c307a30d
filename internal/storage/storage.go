package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound 表示目录或文件不存在，调用方应将其视为正常 miss 而非故障。
var ErrNotFound = errors.New("storage entry not found")

// Kind 区分目录条目的类型。
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

// Entry 描述目录迭代返回的单个子项。
type Entry struct {
	Name string
	Kind Kind
}

// Directory 是层级存储的目录句柄。句柄仅在获取它的那次调用期间有效，
// 不允许跨操作缓存（根句柄除外，由上层统一持有）。
type Directory interface {
	// Dir 返回名为 name 的子目录句柄。create 为 false 且子目录缺失时
	// 返回 ErrNotFound；name 指向的是文件时同样按 ErrNotFound 处理。
	Dir(name string, create bool) (Directory, error)

	// Open 以只读流打开名为 name 的文件。文件缺失返回 ErrNotFound。
	Open(name string) (io.ReadCloser, error)

	// Create 打开名为 name 的文件用于流式写入。写入内容先落到暂存位置,
	// Commit 之后才对读取方可见；Abort 丢弃全部已写数据。
	Create(name string) (WriteCommitter, error)

	// Remove 删除名为 name 的文件或空目录。条目缺失返回 ErrNotFound；
	// 删除非空目录由底层报错并原样透传。
	Remove(name string) error

	// Entries 列出当前目录的直接子项（文件/目录均含），忽略写入暂存文件。
	Entries(ctx context.Context) ([]Entry, error)
}

// WriteCommitter 是带显式提交语义的写入流。Commit 与 Abort 至多调用一次。
type WriteCommitter interface {
	io.Writer

	// Commit 关闭写入流并将内容原子地发布到目标文件名。
	Commit() error

	// Abort 关闭写入流并清理暂存数据，发布永远不会发生。
	Abort() error
}
