package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/file-cache/file-cache/internal/cachefs"
	"github.com/file-cache/file-cache/internal/cachepath"
)

// Cache 将 match/put/delete/keys 四个操作接到文件系统适配器上。
// 同一 storagePath 下不同 name 的实例各占一个根目录，数据互不可见。
type Cache struct {
	name string
	fs   *cachefs.Adapter
}

// Open 返回名为 name 的缓存实例。底层根目录延迟到首次存储操作时创建。
func Open(storagePath, name string) (*Cache, error) {
	if storagePath == "" {
		return nil, errors.New("storage path required")
	}
	if name == "" {
		return nil, errors.New("cache name required")
	}
	return &Cache{name: name, fs: cachefs.New(storagePath, name)}, nil
}

// Name 返回缓存的命名空间名。
func (c *Cache) Name() string {
	return c.name
}

// Match 查找 key 对应的条目。miss 返回 (nil, nil)；边车缺失时响应退回
// 默认元信息（200 / 空状态文案 / 空头部）。
func (c *Cache) Match(ctx context.Context, key any) (*Response, error) {
	resolved, err := cachepath.Resolve(key)
	if err != nil {
		return nil, err
	}

	result, err := c.fs.Read(ctx, resolved.Dir, resolved.File)
	if err != nil {
		if errors.Is(err, cachefs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	meta := result.Meta
	if meta == nil {
		meta = &cachefs.Metadata{Status: 200}
	}
	return NewResponse(meta.Status, meta.StatusText, meta.Headers, result.Body), nil
}

// Put 将响应写入 key 对应的条目，覆盖旧值。正文已被消费时在任何 I/O
// 之前返回 ErrBodyConsumed。
func (c *Cache) Put(ctx context.Context, key any, resp *Response) error {
	resolved, err := cachepath.Resolve(key)
	if err != nil {
		return err
	}
	if resp == nil {
		return errors.New("nil response")
	}
	if resp.BodyUsed() {
		return ErrBodyConsumed
	}

	body, err := resp.Body()
	if err != nil {
		return err
	}
	defer body.Close()

	meta := cachefs.Metadata{
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Headers:    resp.Headers,
	}
	return c.fs.Write(ctx, resolved.Dir, resolved.File, body, meta)
}

// Delete 删除 key 对应的条目，返回数据文件是否曾存在。缺失不是错误。
func (c *Cache) Delete(ctx context.Context, key any) (bool, error) {
	resolved, err := cachepath.Resolve(key)
	if err != nil {
		return false, err
	}
	return c.fs.Delete(ctx, resolved.Dir, resolved.File)
}

// Keys 列出已存储的条目，形式为以 / 开头的根相对路径（含查询串），
// 可直接回喂给 Match。key 为 nil 时列出全部；否则按精确存在性返回
// 单元素或空列表。跨目录分支的顺序不保证。
func (c *Cache) Keys(ctx context.Context, key any) ([]string, error) {
	if key == nil {
		paths, err := c.fs.List(ctx)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(paths))
		for _, path := range paths {
			keys = append(keys, "/"+strings.Join(path, "/"))
		}
		return keys, nil
	}

	resolved, err := cachepath.Resolve(key)
	if err != nil {
		return nil, err
	}
	ok, err := c.fs.Exists(ctx, resolved.Dir, resolved.File)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	segments := append(append([]string{}, resolved.Dir...), resolved.File)
	return []string{"/" + strings.Join(segments, "/")}, nil
}
