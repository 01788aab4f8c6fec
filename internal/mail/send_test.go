package mail

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"stockFundFlow/internal/flow"
)

func sampleReport() Report {
	return Report{
		Title:    "个股资金流分析专家",
		Symbol:   "600519.SH",
		Exchange: "上海证券交易所",
		Overview: flow.Overview{Days: 2, FirstDate: "2024-01-02", LatestDate: "2024-01-03", MainNetSum: null.FloatFrom(-1.5), LatestClose: null.FloatFrom(1700), LatestChangePct: null.FloatFrom(0.5)},
		Table: flow.Table{
			Columns: []string{"日期", "收盘价", "主力净流入-净额-MA3"},
			Rows: []flow.TableRow{
				{Date: "2024-01-03", Values: []null.Float{null.FloatFrom(1700), {}}},
				{Date: "2024-01-02", Values: []null.Float{null.FloatFrom(1690.5), {}}},
			},
		},
		Narration: "主力<流出>，注意风险",
	}
}

func TestBuildHTML(t *testing.T) {
	h := buildHTML(sampleReport())
	for _, want := range []string{
		"<h2>600519.SH（上海证券交易所）</h2>",
		"共 2 个交易日",
		"主力净流入合计 -1.50 亿元",
		"<th>主力净流入-净额-MA3</th>",
		"<td>1690.50</td><td>-</td>",
		"主力&lt;流出&gt;",
	} {
		if !strings.Contains(h, want) {
			t.Errorf("html missing %q", want)
		}
	}
	noNarr := sampleReport()
	noNarr.Narration = " "
	if strings.Contains(buildHTML(noNarr), "AI 解读") {
		t.Errorf("empty narration should be omitted")
	}
}

func TestBuildMessage(t *testing.T) {
	cfg := &SMTPConfig{From: "me@x.com"}
	rep := sampleReport()
	msg := string(buildMessage(cfg, rep.Subject(), "<p>x</p>", []string{"a@x.com", "b@x.com"}))
	if !strings.HasPrefix(msg, "From: me@x.com\r\nTo: a@x.com,b@x.com\r\nSubject: =?UTF-8?b?") {
		t.Errorf("headers = %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\n<p>x</p>") {
		t.Errorf("body = %q", msg)
	}
	if rep.Subject() != "个股资金流分析专家：600519.SH 近2日资金流分析" {
		t.Errorf("subject = %s", rep.Subject())
	}
}

func TestSendReportDisabled(t *testing.T) {
	if err := SendReport(context.Background(), &SMTPConfig{Server: "smtp.x.com"}, sampleReport()); err != nil {
		t.Fatalf("disabled config should be a no-op: %v", err)
	}
	if err := SendReport(context.Background(), nil, sampleReport()); err != nil {
		t.Fatalf("nil config should be a no-op: %v", err)
	}
	cfg := &SMTPConfig{Server: "s", From: "f", To: "t"}
	if !cfg.Enabled() {
		t.Fatalf("should be enabled")
	}
	empty := sampleReport()
	empty.Table.Rows = nil
	if err := SendReport(context.Background(), cfg, empty); err != nil {
		t.Fatalf("empty report should be skipped: %v", err)
	}
}

// 服务端接受连接却不发问候语时，SendReport 应在 ctx 截止时间附近返回
func TestSendReportHonorsDeadline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	defer func() {
		select {
		case c := <-accepted:
			c.Close()
		default:
		}
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)
	cfg := &SMTPConfig{Server: host, Port: p, From: "a@example.com", To: "b@example.com"}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = SendReport(ctx, cfg, sampleReport())
	if err == nil {
		t.Fatal("expected error from silent server")
	}
	if d := time.Since(start); d > 3*time.Second {
		t.Fatalf("SendReport took %s", d)
	}
}
