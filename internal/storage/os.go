package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// stagePrefix 标记写入途中的暂存文件，目录迭代与目录删除判断均会跳过它。
const stagePrefix = ".stage-"

// OpenRoot 打开（缺失时创建）basePath/<namespace> 并返回其目录句柄。
// namespace 即缓存实例的命名空间，不同实例的数据互不可见。
func OpenRoot(basePath, namespace string) (Directory, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}
	if err := validateName(namespace); err != nil {
		return nil, fmt.Errorf("invalid namespace: %w", err)
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	root := filepath.Join(abs, namespace)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	return &osDirectory{path: root}, nil
}

// osDirectory 基于本地文件系统实现 Directory，path 恒为绝对路径。
type osDirectory struct {
	path string
}

func (d *osDirectory) Dir(name string, create bool) (Directory, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	child := filepath.Join(d.path, name)
	info, err := os.Stat(child)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, ErrNotFound
		}
	case errors.Is(err, fs.ErrNotExist):
		if !create {
			return nil, ErrNotFound
		}
		if mkErr := os.Mkdir(child, 0o755); mkErr != nil && !errors.Is(mkErr, fs.ErrExist) {
			return nil, mkErr
		}
	default:
		return nil, err
	}

	return &osDirectory{path: child}, nil
}

func (d *osDirectory) Open(name string) (io.ReadCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(d.path, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}

	return f, nil
}

func (d *osDirectory) Create(name string) (WriteCommitter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	temp, err := os.CreateTemp(d.path, stagePrefix+"*")
	if err != nil {
		return nil, err
	}

	return &stagedFile{
		file:  temp,
		final: filepath.Join(d.path, name),
	}, nil
}

func (d *osDirectory) Remove(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(d.path, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (d *osDirectory) Entries(ctx context.Context) ([]Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	raw, err := os.ReadDir(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		if strings.HasPrefix(item.Name(), stagePrefix) {
			continue
		}
		kind := KindFile
		if item.IsDir() {
			kind = KindDirectory
		}
		entries = append(entries, Entry{Name: item.Name(), Kind: kind})
	}
	return entries, nil
}

// stagedFile 实现“临时文件 + rename”提交：Commit 前内容对读取方不可见，
// 进程中途崩溃只会残留可丢弃的暂存文件。
type stagedFile struct {
	file  *os.File
	final string
	done  bool
}

func (s *stagedFile) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

func (s *stagedFile) Commit() error {
	if s.done {
		return errors.New("write already finished")
	}
	s.done = true

	if err := s.file.Close(); err != nil {
		os.Remove(s.file.Name())
		return err
	}
	if err := os.Rename(s.file.Name(), s.final); err != nil {
		os.Remove(s.file.Name())
		return err
	}
	return nil
}

func (s *stagedFile) Abort() error {
	if s.done {
		return nil
	}
	s.done = true

	s.file.Close()
	return os.Remove(s.file.Name())
}

// validateName 拒绝空名、路径分隔符与 . / .. ，防止句柄越出所在目录。
func validateName(name string) error {
	if name == "" {
		return errors.New("empty entry name")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid entry name: %s", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("entry name contains path separator: %s", name)
	}
	return nil
}
