package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/file-cache/file-cache/internal/cachefs"
	"github.com/file-cache/file-cache/internal/cachepath"
)

func TestMatchRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	headers := [][2]string{{"Content-Type", "application/octet-stream"}, {"ETag", "\"v2\""}}
	resp := NewBytesResponse(200, "OK", headers, []byte("weights"))
	if err := c.Put(ctx, "/models/bert/weights.bin?rev=2", resp); err != nil {
		t.Fatalf("Put 失败: %v", err)
	}

	matched, err := c.Match(ctx, "/models/bert/weights.bin?rev=2")
	if err != nil {
		t.Fatalf("Match 失败: %v", err)
	}
	if matched == nil {
		t.Fatalf("写入后应命中")
	}
	if matched.Status != 200 || matched.StatusText != "OK" {
		t.Fatalf("状态不一致: %d %q", matched.Status, matched.StatusText)
	}
	if matched.Header("Content-Type") != "application/octet-stream" || matched.Header("ETag") != "\"v2\"" {
		t.Fatalf("头部不一致: %v", matched.Headers)
	}
	if matched.Header("content-type") != "application/octet-stream" {
		t.Fatalf("头部查找应忽略大小写: %v", matched.Headers)
	}

	body, err := matched.Body()
	if err != nil {
		t.Fatalf("取正文失败: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if string(data) != "weights" {
		t.Fatalf("正文不一致: %s", data)
	}
}

func TestKeyFormsObserveSameEntry(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	raw := "https://example.com/models/a?rev=2"

	if err := c.Put(ctx, raw, NewBytesResponse(200, "", nil, []byte("v"))); err != nil {
		t.Fatalf("Put 失败: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("解析 URL 失败: %v", err)
	}
	req, err := http.NewRequest(http.MethodGet, raw, nil)
	if err != nil {
		t.Fatalf("构造请求失败: %v", err)
	}

	for name, key := range map[string]any{"string": raw, "url": u, "request": req} {
		matched, err := c.Match(ctx, key)
		if err != nil {
			t.Fatalf("%s 键 Match 失败: %v", name, err)
		}
		if matched == nil {
			t.Fatalf("%s 键应命中同一条目", name)
		}
		body, _ := matched.Body()
		body.Close()
	}
}

func TestMatchMissReturnsNil(t *testing.T) {
	c, _ := newTestCache(t)
	matched, err := c.Match(context.Background(), "/never/written")
	if err != nil {
		t.Fatalf("miss 不应返回错误: %v", err)
	}
	if matched != nil {
		t.Fatalf("未写入的键应返回 nil")
	}
}

func TestDeleteThenMiss(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	existed, err := c.Delete(ctx, "/untouched")
	if err != nil || existed {
		t.Fatalf("未写入的键删除应返回 false: %v %v", existed, err)
	}

	if err := c.Put(ctx, "/a/b/c", NewBytesResponse(200, "", nil, []byte("x"))); err != nil {
		t.Fatalf("Put 失败: %v", err)
	}
	existed, err = c.Delete(ctx, "/a/b/c")
	if err != nil || !existed {
		t.Fatalf("删除已有条目应返回 true: %v %v", existed, err)
	}

	matched, err := c.Match(ctx, "/a/b/c")
	if err != nil || matched != nil {
		t.Fatalf("删除后应 miss: %v %v", matched, err)
	}
	keys, err := c.Keys(ctx, nil)
	if err != nil {
		t.Fatalf("Keys 失败: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("删除后 Keys 不应包含条目: %v", keys)
	}
}

func TestKeysListing(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	stored := []string{"/config.json", "/models/a?x=1", "/models/a?x=2", "/models/bert/vocab.txt"}
	for _, key := range stored {
		if err := c.Put(ctx, key, NewBytesResponse(200, "", nil, []byte("x"))); err != nil {
			t.Fatalf("Put %s 失败: %v", key, err)
		}
	}

	keys, err := c.Keys(ctx, nil)
	if err != nil {
		t.Fatalf("Keys 失败: %v", err)
	}
	sort.Strings(keys)
	expected := append([]string{}, stored...)
	sort.Strings(expected)
	if len(keys) != len(expected) {
		t.Fatalf("条目数不一致: %v", keys)
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Fatalf("键不一致: expected %q got %q", expected[i], keys[i])
		}
	}

	// 列表中的键应当能直接回喂给 Match。
	for _, key := range keys {
		matched, err := c.Match(ctx, key)
		if err != nil || matched == nil {
			t.Fatalf("回喂键 %q 应命中: %v", key, err)
		}
		body, _ := matched.Body()
		body.Close()
	}
}

func TestKeysWithExactKey(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Put(ctx, "/models/a?x=1", NewBytesResponse(200, "", nil, nil)); err != nil {
		t.Fatalf("Put 失败: %v", err)
	}

	keys, err := c.Keys(ctx, "/models/a?x=1")
	if err != nil {
		t.Fatalf("Keys 失败: %v", err)
	}
	if len(keys) != 1 || keys[0] != "/models/a?x=1" {
		t.Fatalf("精确命中应返回单元素列表: %v", keys)
	}

	keys, err = c.Keys(ctx, "/models/a?x=9")
	if err != nil {
		t.Fatalf("Keys 失败: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("未命中应返回空列表: %v", keys)
	}
}

func TestPutRejectsConsumedBody(t *testing.T) {
	c, root := newTestCache(t)
	ctx := context.Background()

	resp := NewBytesResponse(200, "", nil, []byte("x"))
	body, err := resp.Body()
	if err != nil {
		t.Fatalf("取正文失败: %v", err)
	}
	body.Close()

	if err := c.Put(ctx, "/models/consumed", resp); !errors.Is(err, ErrBodyConsumed) {
		t.Fatalf("已消费正文应被拒绝, got %v", err)
	}

	// 校验失败必须发生在任何 I/O 之前，目录树不应出现任何痕迹。
	if _, err := os.Stat(filepath.Join(root, "models")); !os.IsNotExist(err) {
		t.Fatalf("被拒绝的 Put 不应写盘: %v", err)
	}
}

func TestPutRejectsInvalidKeyBeforeIO(t *testing.T) {
	c, _ := newTestCache(t)

	err := c.Put(context.Background(), "/a/../b", NewBytesResponse(200, "", nil, nil))
	var verr cachepath.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("越级路径应返回校验错误, got %v", err)
	}
}

func TestMatchDefaultsWhenSidecarRemoved(t *testing.T) {
	c, root := newTestCache(t)
	ctx := context.Background()

	headers := [][2]string{{"Content-Type", "text/plain"}}
	if err := c.Put(ctx, "/models/naked", NewBytesResponse(418, "I'm a teapot", headers, []byte("data"))); err != nil {
		t.Fatalf("Put 失败: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "models", "naked"+cachefs.MetaSuffix)); err != nil {
		t.Fatalf("删除边车失败: %v", err)
	}

	matched, err := c.Match(ctx, "/models/naked")
	if err != nil {
		t.Fatalf("边车缺失不应导致失败: %v", err)
	}
	if matched == nil {
		t.Fatalf("数据文件仍在应命中")
	}
	if matched.Status != 200 || matched.StatusText != "" || len(matched.Headers) != 0 {
		t.Fatalf("应退回默认元信息: %d %q %v", matched.Status, matched.StatusText, matched.Headers)
	}

	body, err := matched.Body()
	if err != nil {
		t.Fatalf("取正文失败: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "data" {
		t.Fatalf("正文应保持可读: %s", data)
	}
}

func TestOpenValidatesArguments(t *testing.T) {
	if _, err := Open("", "name"); err == nil {
		t.Fatalf("空存储路径应被拒绝")
	}
	if _, err := Open(t.TempDir(), ""); err == nil {
		t.Fatalf("空命名空间应被拒绝")
	}
}

// newTestCache returns a cache over a temp dir plus its on-disk root path.
func newTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	base := t.TempDir()
	c, err := Open(base, "test")
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	return c, filepath.Join(base, "test")
}
