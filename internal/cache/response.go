package cache

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// ErrBodyConsumed 表示响应正文已被读取，无法再次写入缓存。
// 属于校验错误：Put 在任何 I/O 发生之前返回它。
var ErrBodyConsumed = errors.New("response body already consumed")

// Response 是存取缓存时的响应载体：状态行 + 有序头部 + 可流式读取的正文。
// 正文只能消费一次，Put 与 Body 都会将其标记为已消费。
type Response struct {
	Status     int
	StatusText string
	Headers    [][2]string

	body io.ReadCloser
	used bool
}

// NewResponse 构造响应。body 可以为 nil，表示空正文。
func NewResponse(status int, statusText string, headers [][2]string, body io.ReadCloser) *Response {
	return &Response{
		Status:     status,
		StatusText: statusText,
		Headers:    headers,
		body:       body,
	}
}

// NewBytesResponse 以内存字节构造响应，主要服务测试与小对象。
func NewBytesResponse(status int, statusText string, headers [][2]string, body []byte) *Response {
	return NewResponse(status, statusText, headers, io.NopCloser(bytes.NewReader(body)))
}

// BodyUsed 报告正文是否已被消费。
func (r *Response) BodyUsed() bool {
	return r.used
}

// Body 取出正文流并把响应标记为已消费；再次调用返回 ErrBodyConsumed。
// 返回的流由调用方负责关闭。
func (r *Response) Body() (io.ReadCloser, error) {
	if r.used {
		return nil, ErrBodyConsumed
	}
	r.used = true
	if r.body == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return r.body, nil
}

// Header 返回第一个匹配名称的头部值，不存在时返回空串。
// HTTP 头部名不区分大小写，存储时保留原始写法，查找时忽略大小写。
func (r *Response) Header(name string) string {
	for _, pair := range r.Headers {
		if strings.EqualFold(pair[0], name) {
			return pair[1]
		}
	}
	return ""
}
