package config

import (
	"errors"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("StoragePath", "不能为空")
	}
	if g.ShutdownTimeout.DurationValue() <= 0 {
		return newFieldError("ShutdownTimeout", "必须大于 0")
	}

	if len(c.Namespaces) == 0 {
		return errors.New("至少需要配置一个命名空间")
	}

	seen := map[string]struct{}{}
	for _, name := range c.Namespaces {
		if name == "" {
			return newFieldError("Namespaces", "命名空间名不能为空")
		}
		if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
			return newFieldError(namespaceField(name), "命名空间名不能包含路径分隔符或 . / ..")
		}
		if _, dup := seen[name]; dup {
			return newFieldError(namespaceField(name), "命名空间名重复")
		}
		seen[name] = struct{}{}
	}

	return nil
}
