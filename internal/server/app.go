package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   *Registry
	ListenPort int
}

const contextKeyRequestID = "_filecache_request_id"

// NewApp builds a Fiber application exposing the cache operations with
// request-ID middleware and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("cache registry is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		// 缓存面向超大载荷，请求与响应正文都必须流式经过，不落内存。
		StreamRequestBody: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &handlers{logger: opts.Logger, registry: opts.Registry}

	app.Get("/-/healthz", h.healthz)
	app.Get("/-/keys", h.keys)
	app.Get("/cache/:namespace/*", h.match)
	app.Put("/cache/:namespace/*", h.put)
	app.Delete("/cache/:namespace/*", h.delete)

	return app, nil
}

// requestIDMiddleware 为每个请求生成 uuid 并同时写入 Locals 与响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
