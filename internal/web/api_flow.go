package web

import (
	"bytes"
	"strings"

	"github.com/gofiber/fiber/v2"
	"stockFundFlow/internal/analysis"
	"stockFundFlow/internal/errs"
	"stockFundFlow/internal/export"
	"stockFundFlow/internal/trace"
)

type FlowArgs struct {
	Code string `query:"code" validate:"required"`
	Days int    `query:"days" validate:"gte=0"`
}

type ExportArgs struct {
	Code   string `query:"code" validate:"required"`
	Days   int    `query:"days" validate:"gte=0"`
	Format string `query:"format" validate:"required"`
}

type statusResp struct {
	Title         string          `json:"title"`
	LLMConfigured bool            `json:"llm_configured"`
	Model         string          `json:"model"`
	BaseURL       string          `json:"base_url"`
	Missing       []string        `json:"missing"`
	Limits        analysis.Limits `json:"limits"`
	Formats       []string        `json:"formats"`
}

func (s *Server) getStatus(c *fiber.Ctx) error {
	missing := s.opts.Missing
	if missing == nil {
		missing = []string{}
	}
	return c.JSON(statusResp{
		Title:         s.opts.Title,
		LLMConfigured: s.pinger != nil && s.pinger.Enabled(),
		Model:         s.model(),
		BaseURL:       s.opts.BaseURL,
		Missing:       missing,
		Limits:        s.svc.Limits(),
		Formats:       export.Formats,
	})
}

func (s *Server) model() string {
	if s.pinger == nil {
		return ""
	}
	return s.pinger.Model()
}

// prepare 解析参数并生成报告；参数字符串拷贝一份，避免引用 fasthttp 复用的缓冲区。
func (s *Server) prepare(c *fiber.Ctx, code string, days int) (*analysis.Report, error) {
	return s.svc.Prepare(c.UserContext(), strings.Clone(code), days)
}

func (s *Server) getFlow(c *fiber.Ctx) error {
	var args FlowArgs
	if err := VerifyArg(c, &args, ArgQuery); err != nil {
		return err
	}
	rep, err := s.prepare(c, args.Code, args.Days)
	if err != nil {
		return err
	}
	return c.JSON(rep)
}

func (s *Server) getMarkdown(c *fiber.Ctx) error {
	var args FlowArgs
	if err := VerifyArg(c, &args, ArgQuery); err != nil {
		return err
	}
	rep, err := s.prepare(c, args.Code, args.Days)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	return c.SendString(rep.Markdown)
}

func (s *Server) getExport(c *fiber.Ctx) error {
	var args ExportArgs
	if err := VerifyArg(c, &args, ArgQuery); err != nil {
		return err
	}
	exp := export.New(args.Format)
	if exp == nil {
		return &BadFields{Items: []*BadField{{Field: "Format", Tag: "oneof=" + strings.Join(export.Formats, " "), Value: args.Format}}}
	}
	rep, err := s.prepare(c, args.Code, args.Days)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := exp.Export(&buf, rep.Derived); err != nil {
		trace.Error(c.UserContext(), "web: export %s fail err=%v", args.Format, err)
		return err
	}
	c.Attachment(export.FileName(rep.Derived, exp))
	c.Set(fiber.HeaderContentType, exp.ContentType())
	return c.Send(buf.Bytes())
}

func (s *Server) getPing(c *fiber.Ctx) error {
	if s.pinger == nil {
		return errs.New(errs.CodeNarrationUnavailable, "未配置 AI 服务")
	}
	if err := s.pinger.Ping(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "model": s.pinger.Model()})
}
