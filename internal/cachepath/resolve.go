// Package cachepath maps cache keys (raw strings, URLs, or requests) onto the
// hierarchical location an entry occupies on disk. Resolution is pure string
// work: it never touches storage, and the same key always resolves to the
// same location, which is what makes cache hits deterministic.
package cachepath

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Resolved 描述一个缓存键对应的目录段序列与最终文件名。
// File 已包含原样保留的查询串，因此 /models/a?rev=2 与 /models/a?rev=3
// 共享目录 models 却指向不同条目。
type Resolved struct {
	Dir  []string
	File string
}

// ValidationError 表示键在进入存储层之前就被拒绝，调用方可用 errors.As 识别。
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid cache key: " + e.Reason
}

// Resolve 将缓存键解析为条目位置。key 可以是字符串、*url.URL 或 *http.Request；
// 其余类型一律按校验错误拒绝。解析不做任何 I/O。
func Resolve(key any) (Resolved, error) {
	pathname, search, err := extract(key)
	if err != nil {
		return Resolved{}, err
	}

	segments := splitSegments(pathname)
	if len(segments) == 0 {
		return Resolved{}, ValidationError{Reason: "key resolves to zero path segments"}
	}
	for _, seg := range segments {
		if seg == "." || seg == ".." {
			return Resolved{}, ValidationError{Reason: fmt.Sprintf("path segment %q not allowed", seg)}
		}
	}

	last := len(segments) - 1
	return Resolved{
		Dir:  segments[:last],
		File: segments[last] + search,
	}, nil
}

// extract 取出 pathname 与 search（含前导 ? ，无查询串时为空字符串）。
// pathname 保持百分号转义形态，与原始字符串分支一致：%2F 不会被解码成
// 路径分隔符，因此 /a%2Fb 与 /a/b 是两个不同的条目。
func extract(key any) (pathname, search string, err error) {
	switch k := key.(type) {
	case string:
		if u, parseErr := url.Parse(k); parseErr == nil && u.IsAbs() {
			return u.EscapedPath(), searchOf(u), nil
		}
		// 非绝对 URL 的字符串按原始路径处理，在首个 ? 处手工切分。
		if idx := strings.Index(k, "?"); idx >= 0 {
			return k[:idx], k[idx:], nil
		}
		return k, "", nil
	case *url.URL:
		if k == nil {
			return "", "", ValidationError{Reason: "nil URL"}
		}
		return k.EscapedPath(), searchOf(k), nil
	case *http.Request:
		if k == nil || k.URL == nil {
			return "", "", ValidationError{Reason: "request has no URL"}
		}
		return k.URL.EscapedPath(), searchOf(k.URL), nil
	default:
		return "", "", ValidationError{Reason: "expected a string, request, or URL"}
	}
}

func searchOf(u *url.URL) string {
	if u.RawQuery != "" || u.ForceQuery {
		return "?" + u.RawQuery
	}
	return ""
}

// splitSegments 按 / 切分并丢弃空段，吞掉前导/尾随/重复斜杠。
func splitSegments(pathname string) []string {
	parts := strings.Split(pathname, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}
