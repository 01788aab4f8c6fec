// Package main 是个股资金流分析服务的入口：serve 启动网页与接口，analyze 在终端完成一次分析。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"stockFundFlow/internal/analysis"
	"stockFundFlow/internal/api"
	"stockFundFlow/internal/config"
	"stockFundFlow/internal/export"
	"stockFundFlow/internal/flow"
	"stockFundFlow/internal/llm"
	"stockFundFlow/internal/mail"
	"stockFundFlow/internal/model"
	"stockFundFlow/internal/trace"
	"stockFundFlow/internal/web"
)

// 子命令
const (
	cmdServe   = "serve"
	cmdAnalyze = "analyze"
)

const (
	// analyzeTimeout 终端单次分析总时长上限（解读自身另有超时）
	analyzeTimeout  = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
	mailTimeout     = 30 * time.Second
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	cmd, args := cmdServe, os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := trace.Setup(cfg.App.LogLevel, cfg.App.LogDir); err != nil {
		log.Fatalf("setup log: %v", err)
	}

	var code int
	switch cmd {
	case cmdServe:
		code = runServe(cfg)
	case cmdAnalyze:
		code = runAnalyze(cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, usage: stockFundFlow [serve|analyze] [flags]\n", cmd)
		code = 2
	}
	trace.Close()
	os.Exit(code)
}

func newNarrator(cfg *config.Config) *llm.Narrator {
	return llm.NewNarrator(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
}

func newService(cfg *config.Config, narrator analysis.Narrator) *analysis.Service {
	return analysis.NewService(api.NewClient(cfg.Flow.ProviderTimeout), narrator, analysis.Limits{
		MinDays:     config.MinDays,
		DefaultDays: cfg.Flow.DefaultDays,
		MaxDays:     cfg.Flow.MaxDays,
	})
}

// runServe 常驻进程，收到 SIGINT/SIGTERM 后优雅退出。
func runServe(cfg *config.Config) int {
	ctx := trace.WithTraceID(context.Background(), trace.NewTraceID())
	narrator := newNarrator(cfg)
	svc := newService(cfg, narrator)
	srv, err := web.New(svc, narrator, web.Options{
		Title:   cfg.App.Title,
		BaseURL: cfg.LLM.BaseURL,
		Missing: cfg.Missing(),
	})
	if err != nil {
		trace.Error(ctx, "main: 初始化服务失败 err=%v", err)
		return 1
	}
	if missing := cfg.Missing(); len(missing) > 0 {
		trace.Warn(ctx, "main: 缺少配置 %s，AI 解读不可用", strings.Join(missing, ", "))
	}
	trace.Log(ctx, "main: 配置 %s model=%s days=%d/%d", cfg.Path, cfg.LLM.Model, cfg.Flow.DefaultDays, cfg.Flow.MaxDays)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.App.Listen)
	}()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			trace.Error(ctx, "main: 服务退出 err=%v", err)
			return 1
		}
		return 0
	case s := <-sig:
		trace.Log(ctx, "main: 收到信号 %s，停止服务", s)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Shutdown() }()
	select {
	case err := <-done:
		if err != nil {
			trace.Error(ctx, "main: 停止服务失败 err=%v", err)
			return 1
		}
	case <-time.After(shutdownTimeout):
		trace.Warn(ctx, "main: 停止服务超时 %s", shutdownTimeout)
		return 1
	}
	return 0
}

type analyzeArgs struct {
	code   string
	days   int
	noLLM  bool
	export string
	mail   bool
}

func parseAnalyzeArgs(args []string) (analyzeArgs, error) {
	var a analyzeArgs
	fs := flag.NewFlagSet(cmdAnalyze, flag.ContinueOnError)
	fs.StringVar(&a.code, "code", "", "6 位股票代码，如 600519")
	fs.IntVar(&a.days, "days", 0, "回看交易日数，0 使用默认值")
	fs.BoolVar(&a.noLLM, "no-llm", false, "跳过 AI 解读")
	fs.StringVar(&a.export, "export", "", "导出文件路径，按扩展名选择格式（csv/json/xlsx/parquet）")
	fs.BoolVar(&a.mail, "mail", false, "分析完成后发送邮件报告")
	if err := fs.Parse(args); err != nil {
		return a, err
	}
	if a.code == "" && fs.NArg() > 0 {
		a.code = fs.Arg(0)
	}
	if a.code == "" {
		return a, errors.New("missing -code")
	}
	if a.export != "" && exporterFor(a.export) == nil {
		return a, fmt.Errorf("unsupported export file %q, want one of %s", a.export, strings.Join(export.Formats, "/"))
	}
	return a, nil
}

func exporterFor(path string) export.Exporter {
	return export.New(strings.TrimPrefix(filepath.Ext(path), "."))
}

// runAnalyze 终端分析：表格 → 流式解读 → 可选导出与邮件。报告生成失败返回 1，解读失败只追加提示。
func runAnalyze(cfg *config.Config, args []string) int {
	a, err := parseAnalyzeArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()
	ctx = trace.WithTraceID(ctx, trace.NewTraceID())

	var narrator analysis.Narrator
	if !a.noLLM {
		narrator = newNarrator(cfg)
	}
	svc := newService(cfg, narrator)
	var narration strings.Builder
	onReport := func(r *analysis.Report) error {
		if err := printReport(r); err != nil {
			return err
		}
		if !a.noLLM {
			fmt.Println("\n🤖 AI 解读")
		}
		return nil
	}
	var rep *analysis.Report
	if a.noLLM {
		if rep, err = svc.Prepare(ctx, a.code, a.days); err == nil {
			err = onReport(rep)
		}
	} else {
		rep, err = svc.Run(ctx, a.code, a.days, onReport, func(text string) error {
			narration.WriteString(text)
			_, err := fmt.Print(text)
			return err
		})
	}
	if rep == nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	if !a.noLLM {
		if err != nil {
			note := analysis.FailureNote(err)
			narration.WriteString("\n\n" + note)
			fmt.Printf("\n\n%s", note)
		}
		fmt.Println()
	}

	if a.export != "" {
		if err := writeExport(a.export, rep.Derived); err != nil {
			trace.Error(ctx, "main: 导出失败 %s err=%v", a.export, err)
			fmt.Fprintf(os.Stderr, "❌ 导出失败：%v\n", err)
			return 1
		}
		fmt.Printf("📁 已导出 %s\n", a.export)
	}

	if a.mail {
		mailCfg := buildMailConfig(cfg.SMTP)
		if !mailCfg.Enabled() {
			fmt.Fprintln(os.Stderr, "❌ 未配置 SMTP，跳过邮件")
			return 1
		}
		mctx, mcancel := context.WithTimeout(ctx, mailTimeout)
		defer mcancel()
		err := mail.SendReport(mctx, mailCfg, mail.Report{
			Title:     cfg.App.Title,
			Symbol:    rep.Symbol,
			Exchange:  rep.ExchangeName,
			Overview:  rep.Overview,
			Table:     rep.Table,
			Narration: narration.String(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ 邮件发送失败：%v\n", err)
			return 1
		}
		fmt.Println("📧 邮件已发送")
	}
	return 0
}

func writeExport(path string, d model.DerivedFlowSeries) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return exporterFor(path).Export(f, d)
}

// terminalColumns 终端宽度有限，只列主力均线与各口径净额。
func terminalColumns() []string {
	cols := []string{flow.ColClose, flow.ColChangePct}
	for _, b := range model.Buckets {
		cols = append(cols, flow.NetColumn(b))
	}
	for _, w := range model.MAWindows {
		cols = append(cols, flow.MAColumn(model.BucketMain, w))
	}
	return append(cols, flow.PctColumn(model.BucketMain))
}

func printReport(rep *analysis.Report) error {
	ov := rep.Overview
	fmt.Printf("📈 %s（%s）%s ~ %s 共 %d 个交易日\n", rep.Symbol, rep.ExchangeName, ov.FirstDate, ov.LatestDate, ov.Days)
	fmt.Printf("主力净流入合计 %s 亿元 | 最新收盘 %s | 最新涨跌幅 %s%%\n\n",
		flow.FormatValue(ov.MainNetSum), flow.FormatValue(ov.LatestClose), flow.FormatValue(ov.LatestChangePct))

	cols := terminalColumns()
	values := make([][]string, len(cols))
	for i, name := range cols {
		for _, v := range rep.Table.Column(name) {
			values[i] = append(values[i], flow.FormatValue(v))
		}
	}
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithRowAlignment(tw.AlignRight),
	)
	table.Header(append([]string{flow.ColDate}, cols...))
	for r, row := range rep.Table.Rows {
		line := []string{row.Date}
		for i := range cols {
			line = append(line, values[i][r])
		}
		if err := table.Append(line); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Println("净额单位：亿元")
	return nil
}

func buildMailConfig(smtpCfg *config.SMTP) *mail.SMTPConfig {
	if smtpCfg == nil {
		smtpCfg = &config.SMTP{}
	}
	return &mail.SMTPConfig{
		Server:   smtpCfg.Server,
		Port:     smtpCfg.Port,
		User:     smtpCfg.User,
		Password: smtpCfg.Password,
		From:     smtpCfg.From,
		To:       strings.Join(smtpCfg.Recipients(), ","),
	}
}
