// Package web HTTP 服务：内嵌页面、资金流数据接口、导出与流式 AI 解读（SSE）。
package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"stockFundFlow/internal/analysis"
	"stockFundFlow/internal/trace"
	"stockFundFlow/internal/web/ui"
)

const (
	appName       = "stockFundFlow"
	headerTraceID = "X-Trace-Id"
)

// Pinger AI 服务连接测试与状态。
type Pinger interface {
	Ping(ctx context.Context) error
	Enabled() bool
	Model() string
}

// Options 页面与状态接口展示的只读信息。
type Options struct {
	Title   string
	BaseURL string
	Missing []string
}

type Server struct {
	app    *fiber.App
	svc    *analysis.Service
	pinger Pinger
	opts   Options
}

func New(svc *analysis.Service, pinger Pinger, opts Options) (*Server, error) {
	s := &Server{svc: svc, pinger: pinger, opts: opts}
	app := fiber.New(fiber.Config{
		AppName:               appName,
		ErrorHandler:          ErrHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(withTrace)

	api := app.Group("/api")
	api.Get("/status", s.getStatus)
	api.Get("/flow", s.getFlow)
	api.Get("/flow/markdown", s.getMarkdown)
	api.Get("/flow/export", s.getExport)
	api.Get("/analyze", s.getAnalyze)
	api.Get("/llm/ping", s.getPing)

	distFS, err := ui.BuildDistFS()
	if err != nil {
		return nil, err
	}
	app.Use("/", filesystem.New(filesystem.Config{
		Root:  distFS,
		Index: "index.html",
	}))
	s.app = app
	return s, nil
}

// App 供测试直接调用 app.Test。
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	trace.Log(context.Background(), "web: listen %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// withTrace 每个请求生成 trace id，放入 UserContext 并写回响应头。
func withTrace(c *fiber.Ctx) error {
	id := trace.NewTraceID()
	c.SetUserContext(trace.WithTraceID(c.UserContext(), id))
	c.Set(headerTraceID, id)
	return c.Next()
}
