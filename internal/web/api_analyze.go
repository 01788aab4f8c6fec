package web

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"stockFundFlow/internal/analysis"
	"stockFundFlow/internal/errs"
	"stockFundFlow/internal/trace"
)

// SSE 事件名
const (
	EventReport = "report"
	EventChunk  = "chunk"
	EventDone   = "done"
	EventError  = "error"
)

// getAnalyze 先同步生成报告（失败按普通 JSON 错误返回），成功后以 SSE 依次推送 report、chunk...、done/error。
func (s *Server) getAnalyze(c *fiber.Ctx) error {
	var args FlowArgs
	if err := VerifyArg(c, &args, ArgQuery); err != nil {
		return err
	}
	rep, err := s.prepare(c, args.Code, args.Days)
	if err != nil {
		return err
	}
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	traceID := trace.TraceID(c.UserContext())

	c.Set(fiber.HeaderContentType, "text/event-stream; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// 处理函数返回后 fiber.Ctx 会被复用，流内只使用自建 context
		ctx, cancel := context.WithCancel(trace.WithTraceID(context.Background(), traceID))
		defer cancel()
		if err := writeEvent(w, EventReport, reportJSON); err != nil {
			trace.Log(ctx, "web: sse client gone before report err=%v", err)
			return
		}
		chunks := 0
		err := s.svc.Narrate(ctx, rep, func(text string) error {
			b, err := json.Marshal(text)
			if err != nil {
				return err
			}
			chunks++
			return writeEvent(w, EventChunk, b)
		})
		if err == nil {
			_ = writeEvent(w, EventDone, []byte(fmt.Sprintf(`{"chunks":%d}`, chunks)))
			return
		}
		if errs.CodeOf(err) == errs.CodeUnknown {
			// 写失败即客户端断开，无需再推送
			trace.Log(ctx, "web: sse stopped chunks=%d err=%v", chunks, err)
			return
		}
		b, _ := json.Marshal(ErrBody{Code: errs.CodeOf(err).String(), Msg: analysis.FailureNote(err)})
		_ = writeEvent(w, EventError, b)
	}))
	return nil
}

func writeEvent(w *bufio.Writer, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
