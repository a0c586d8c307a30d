package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/file-cache/file-cache/internal/cache"
	"github.com/file-cache/file-cache/internal/cachepath"
	"github.com/file-cache/file-cache/internal/logging"
)

// 条目元信息通过请求头携带：状态行走固定头，响应头逐个展开在前缀之后。
const (
	metaStatusHeader     = "X-Cache-Meta-Status"
	metaStatusTextHeader = "X-Cache-Meta-Status-Text"
	metaHeaderPrefix     = "X-Cache-Meta-Header-"
)

type handlers struct {
	logger   *logrus.Logger
	registry *Registry
}

// target 解析命名空间与缓存键。命名空间未注册时直接渲染 404 并返回 ok=false。
func (h *handlers) target(c fiber.Ctx) (*cache.Cache, string, bool) {
	namespace := c.Params("namespace")
	inst, ok := h.registry.Lookup(namespace)
	if !ok {
		h.logger.WithFields(logrus.Fields{
			"action":    "namespace_lookup",
			"namespace": namespace,
		}).Warn("namespace unknown")
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "namespace_unknown",
		})
		return nil, "", false
	}

	key := "/" + c.Params("*")
	if query := c.Request().URI().QueryString(); len(query) > 0 {
		key += "?" + string(query)
	}
	return inst, key, true
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// renderError 将校验错误映射为 400，其余按存储错误输出 500。
func (h *handlers) renderError(c fiber.Ctx, namespace, op, key string, err error) error {
	var verr cachepath.ValidationError
	if errors.As(err, &verr) || errors.Is(err, cache.ErrBodyConsumed) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "invalid_key",
			"detail": err.Error(),
		})
	}

	fields := logging.RequestFields(namespace, op, key, false)
	fields["request_id"] = RequestID(c)
	h.logger.WithError(err).WithFields(fields).Error("cache operation failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "storage_failure",
	})
}

func (h *handlers) match(c fiber.Ctx) error {
	inst, key, ok := h.target(c)
	if !ok {
		return nil
	}

	resp, err := inst.Match(requestContext(c), key)
	if err != nil {
		return h.renderError(c, inst.Name(), "match", key, err)
	}
	if resp == nil {
		h.logger.WithFields(logging.RequestFields(inst.Name(), "match", key, false)).Info("cache miss")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "cache_miss",
		})
	}

	for _, pair := range resp.Headers {
		c.Set(pair[0], pair[1])
	}
	c.Set("X-File-Cache-Hit", "true")
	c.Status(resp.Status)
	if resp.StatusText != "" {
		c.Response().Header.SetStatusMessage([]byte(resp.StatusText))
	}

	body, err := resp.Body()
	if err != nil {
		return h.renderError(c, inst.Name(), "match", key, err)
	}
	defer body.Close()

	h.logger.WithFields(logging.RequestFields(inst.Name(), "match", key, true)).Info("cache hit")
	if _, err := io.Copy(c.Response().BodyWriter(), body); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "read cache failed")
	}
	return nil
}

func (h *handlers) put(c fiber.Ctx) error {
	inst, key, ok := h.target(c)
	if !ok {
		return nil
	}

	status := fiber.StatusOK
	if raw := c.Get(metaStatusHeader); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  "invalid_meta_status",
				"detail": raw,
			})
		}
		status = parsed
	}

	// 正文优先走流式通道；小请求可能已被 fasthttp 整体读入，此时退回缓冲。
	var body io.Reader = c.Request().BodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}
	resp := cache.NewResponse(
		status,
		c.Get(metaStatusTextHeader),
		entryHeaders(c),
		io.NopCloser(body),
	)

	if err := inst.Put(requestContext(c), key, resp); err != nil {
		return h.renderError(c, inst.Name(), "put", key, err)
	}

	h.logger.WithFields(logging.RequestFields(inst.Name(), "put", key, false)).Info("entry stored")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"stored": key,
	})
}

func (h *handlers) delete(c fiber.Ctx) error {
	inst, key, ok := h.target(c)
	if !ok {
		return nil
	}

	existed, err := inst.Delete(requestContext(c), key)
	if err != nil {
		return h.renderError(c, inst.Name(), "delete", key, err)
	}

	h.logger.WithFields(logging.RequestFields(inst.Name(), "delete", key, existed)).Info("entry deleted")
	return c.JSON(fiber.Map{
		"deleted": existed,
	})
}

func (h *handlers) keys(c fiber.Ctx) error {
	namespace := c.Query("namespace")
	if namespace == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "namespace_required",
		})
	}
	inst, ok := h.registry.Lookup(namespace)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "namespace_unknown",
		})
	}

	keys, err := inst.Keys(requestContext(c), nil)
	if err != nil {
		return h.renderError(c, namespace, "keys", "", err)
	}
	return c.JSON(fiber.Map{
		"namespace": namespace,
		"keys":      keys,
	})
}

func (h *handlers) healthz(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "ok",
		"namespaces": h.registry.Names(),
	})
}

// entryHeaders 收集 X-Cache-Meta-Header-* 请求头，剥掉前缀后按出现顺序保留。
func entryHeaders(c fiber.Ctx) [][2]string {
	var headers [][2]string
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := string(key)
		if !strings.HasPrefix(name, metaHeaderPrefix) {
			return
		}
		headers = append(headers, [2]string{strings.TrimPrefix(name, metaHeaderPrefix), string(value)})
	})
	return headers
}
