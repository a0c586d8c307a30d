package server

import (
	"errors"
	"fmt"
	"sort"

	"github.com/file-cache/file-cache/internal/cache"
	"github.com/file-cache/file-cache/internal/config"
)

// Registry 持有按命名空间预先打开的缓存实例。路由层只接受注册过的命名空间，
// 未注册的一律拒绝，避免任意请求在磁盘上创建目录。
type Registry struct {
	caches map[string]*cache.Cache
}

// NewRegistry 依据配置为每个命名空间打开缓存实例。
func NewRegistry(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(cfg.Namespaces) == 0 {
		return nil, errors.New("at least one namespace required")
	}

	caches := make(map[string]*cache.Cache, len(cfg.Namespaces))
	for _, name := range cfg.Namespaces {
		c, err := cache.Open(cfg.Global.StoragePath, name)
		if err != nil {
			return nil, fmt.Errorf("open cache %s: %w", name, err)
		}
		caches[name] = c
	}
	return &Registry{caches: caches}, nil
}

// Lookup 返回命名空间对应的缓存实例。
func (r *Registry) Lookup(name string) (*cache.Cache, bool) {
	c, ok := r.caches[name]
	return c, ok
}

// Names 返回已注册命名空间的有序列表，供诊断接口输出。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
