// Package mail 按 SMTP 配置发送个股资金流分析 HTML 邮件。
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"stockFundFlow/internal/flow"
	"stockFundFlow/internal/trace"
)

const (
	smtpTimeout     = 15 * time.Second
	defaultSMTPPort = 587
	implicitTLSPort = 465
)

type SMTPConfig struct {
	Server   string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

func (s *SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Server) != "" &&
		strings.TrimSpace(s.From) != "" &&
		strings.TrimSpace(s.To) != ""
}

// Report 邮件正文所需内容。
type Report struct {
	Title     string
	Symbol    string
	Exchange  string
	Overview  flow.Overview
	Table     flow.Table
	Narration string
}

func (r Report) Subject() string {
	return fmt.Sprintf("%s：%s 近%d日资金流分析", r.Title, r.Symbol, r.Overview.Days)
}

func SendReport(ctx context.Context, cfg *SMTPConfig, rep Report) error {
	if cfg == nil || !cfg.Enabled() {
		return nil
	}
	if len(rep.Table.Rows) == 0 {
		return nil
	}
	trace.Log(ctx, "mail: SendReport to=%s symbol=%s rows=%d", cfg.To, rep.Symbol, len(rep.Table.Rows))
	toList := strings.Split(cfg.To, ",")
	for i := range toList {
		toList[i] = strings.TrimSpace(toList[i])
	}
	err := send(ctx, cfg, rep.Subject(), buildHTML(rep), toList)
	if err != nil {
		trace.Error(ctx, "mail: send err=%v", err)
		return err
	}
	trace.Log(ctx, "mail: sent ok")
	return nil
}

func buildHTML(rep Report) string {
	var b strings.Builder
	esc := html.EscapeString
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>资金流分析</title></head><body>`)
	fmt.Fprintf(&b, "<h2>%s（%s）</h2>", esc(rep.Symbol), esc(rep.Exchange))
	ov := rep.Overview
	fmt.Fprintf(&b, "<p>区间 %s ~ %s，共 %d 个交易日；主力净流入合计 %s 亿元；最新收盘价 %s，涨跌幅 %s%%。</p>",
		esc(ov.FirstDate), esc(ov.LatestDate), ov.Days,
		flow.FormatValue(ov.MainNetSum), flow.FormatValue(ov.LatestClose), flow.FormatValue(ov.LatestChangePct))
	if strings.TrimSpace(rep.Narration) != "" {
		b.WriteString(`<h3>AI 解读</h3><pre style="white-space: pre-wrap; font-family: inherit;">`)
		b.WriteString(esc(rep.Narration))
		b.WriteString("</pre>")
	}
	b.WriteString(`<h3>资金流明细（净额：亿元，净占比：%）</h3>`)
	b.WriteString(`<table border="1" cellspacing="0" cellpadding="4" style="border-collapse: collapse; font-size: 12px;">`)
	b.WriteString(`<thead><tr style="background: #eee;">`)
	for _, c := range rep.Table.Columns {
		fmt.Fprintf(&b, "<th>%s</th>", esc(c))
	}
	b.WriteString("</tr></thead><tbody>")
	for i := range rep.Table.Rows {
		b.WriteString("<tr>")
		for _, cell := range rep.Table.Cells(i) {
			fmt.Fprintf(&b, "<td>%s</td>", esc(cell))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

func buildMessage(cfg *SMTPConfig, subject, htmlBody string, to []string) []byte {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n",
		cfg.From, strings.Join(to, ","), mime.BEncoding.Encode("UTF-8", subject))
	return []byte(headers + htmlBody)
}

// send 整个 SMTP 会话受 ctx 截止时间约束，ctx 无截止时间时使用 smtpTimeout。
func send(ctx context.Context, cfg *SMTPConfig, subject, htmlBody string, to []string) error {
	port := cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(port))

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(smtpTimeout)
	}
	dialer := &net.Dialer{Deadline: deadline}
	var conn net.Conn
	var err error
	if port == implicitTLSPort {
		td := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: cfg.Server}}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	// 服务端不回应时读写在截止时间返回
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("smtp deadline: %w", err)
	}
	// ctx 提前取消时关闭连接以中断阻塞中的读写
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, cfg.Server)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Server}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, t := range to {
		if t == "" {
			continue
		}
		if err := client.Rcpt(t); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", t, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(cfg, subject, htmlBody, to)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}
