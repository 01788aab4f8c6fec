// Package analysis 串联一次分析：代码判定 → 拉取资金流 → 均线与单位换算 → 表格 → AI 解读。
package analysis

import (
	"context"
	"errors"
	"fmt"

	"stockFundFlow/internal/errs"
	"stockFundFlow/internal/flow"
	"stockFundFlow/internal/llm"
	"stockFundFlow/internal/market"
	"stockFundFlow/internal/model"
	"stockFundFlow/internal/trace"
)

// MinDays 回看天数下限。
const MinDays = 10

type Fetcher interface {
	GetFundFlow(ctx context.Context, code string, ex model.Exchange, days int) (model.FlowSeries, error)
}

type Narrator interface {
	Narrate(ctx context.Context, req llm.Request, onChunk func(string) error) error
}

// Limits 回看天数范围与默认值。
type Limits struct {
	MinDays     int `json:"min_days"`
	DefaultDays int `json:"default_days"`
	MaxDays     int `json:"max_days"`
}

// Report 单次请求的计算结果，不跨请求保存。
type Report struct {
	Code         string         `json:"code"`
	Exchange     model.Exchange `json:"exchange"`
	ExchangeName string         `json:"exchange_name"`
	Symbol       string         `json:"symbol"`
	// RequestedDays 请求的回看天数；实际天数见 Overview.Days
	RequestedDays int                     `json:"requested_days"`
	Overview      flow.Overview           `json:"overview"`
	Table         flow.Table              `json:"table"`
	Cells         [][]string              `json:"cells"`
	Markdown      string                  `json:"markdown"`
	Series        model.FlowSeries        `json:"-"`
	Derived       model.DerivedFlowSeries `json:"-"`
}

type Service struct {
	fetcher  Fetcher
	narrator Narrator
	limits   Limits
}

// NewService narrator 可为 nil，此时解读返回 NarrationUnavailable。
func NewService(fetcher Fetcher, narrator Narrator, limits Limits) *Service {
	if limits.MinDays <= 0 {
		limits.MinDays = MinDays
	}
	if limits.MaxDays < limits.MinDays {
		limits.MaxDays = limits.MinDays
	}
	if limits.DefaultDays < limits.MinDays || limits.DefaultDays > limits.MaxDays {
		limits.DefaultDays = limits.MaxDays
	}
	return &Service{fetcher: fetcher, narrator: narrator, limits: limits}
}

func (s *Service) Limits() Limits { return s.limits }

// ResolveDays days<=0 取默认值；超出 [MinDays, MaxDays] 返回 InvalidLookback。
func (s *Service) ResolveDays(days int) (int, error) {
	if days <= 0 {
		return s.limits.DefaultDays, nil
	}
	if days < s.limits.MinDays || days > s.limits.MaxDays {
		return 0, errs.New(errs.CodeInvalidLookback, "回看天数 %d 超出范围 [%d, %d]", days, s.limits.MinDays, s.limits.MaxDays)
	}
	return days, nil
}

// Prepare 完成解读前的全部步骤。数据源无数据时返回 EmptyDataset。
func (s *Service) Prepare(ctx context.Context, rawCode string, days int) (*Report, error) {
	ex, err := market.Classify(rawCode)
	if err != nil {
		trace.Log(ctx, "analysis: 代码无效 %q err=%v", rawCode, err)
		return nil, err
	}
	code := market.Normalize(rawCode)
	n, err := s.ResolveDays(days)
	if err != nil {
		return nil, err
	}
	trace.Log(ctx, "analysis: 开始 %s days=%d", market.Display(code, ex), n)
	series, err := s.fetcher.GetFundFlow(ctx, code, ex, n)
	if err != nil {
		trace.Error(ctx, "analysis: 获取资金流失败 %s err=%v", code, err)
		return nil, err
	}
	if series.Len() == 0 {
		trace.Log(ctx, "analysis: %s 无数据", code)
		return nil, errs.New(errs.CodeEmptyDataset, "未获取到 %s 的资金流数据，请检查股票代码", market.Display(code, ex))
	}
	derived := flow.Derive(series)
	table := flow.BuildTable(derived)
	md, err := flow.Markdown(table)
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	rep := &Report{
		Code:          code,
		Exchange:      ex,
		ExchangeName:  ex.Name(),
		Symbol:        market.Display(code, ex),
		RequestedDays: n,
		Overview:      flow.Summarize(series),
		Table:         table,
		Cells:         table.Strings(),
		Markdown:      md,
		Series:        series,
		Derived:       derived,
	}
	trace.Log(ctx, "analysis: 数据就绪 %s rows=%d", rep.Symbol, len(table.Rows))
	return rep, nil
}

// Narrate 对已生成的报告做 AI 解读，片段通过 onChunk 逐段交付。
func (s *Service) Narrate(ctx context.Context, rep *Report, onChunk func(string) error) error {
	if s.narrator == nil {
		return errs.New(errs.CodeNarrationUnavailable, "未配置 AI 服务")
	}
	return s.narrator.Narrate(ctx, llm.Request{
		Code:     rep.Code,
		Exchange: rep.Exchange,
		Days:     rep.Overview.Days,
		Markdown: rep.Markdown,
	}, onChunk)
}

// Run 完整流程：报告生成后先交给 onReport，再流式解读。解读失败不影响已交付的报告与片段。
func (s *Service) Run(ctx context.Context, rawCode string, days int, onReport func(*Report) error, onChunk func(string) error) (*Report, error) {
	rep, err := s.Prepare(ctx, rawCode, days)
	if err != nil {
		return nil, err
	}
	if onReport != nil {
		if err := onReport(rep); err != nil {
			return rep, err
		}
	}
	return rep, s.Narrate(ctx, rep, onChunk)
}

// FailureNote 解读中断时附加在已输出文本之后的提示。
func FailureNote(err error) string {
	var e *errs.Error
	msg := "未知错误"
	if errors.As(err, &e) {
		msg = e.Short()
	} else if err != nil {
		msg = err.Error()
	}
	return "❌ AI 解读中断：" + msg
}
