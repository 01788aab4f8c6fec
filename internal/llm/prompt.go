package llm

import (
	"fmt"
	"strings"

	"stockFundFlow/internal/model"
)

// SystemPrompt 固定系统指令。
const SystemPrompt = `专业股票资金流分析师。分析要求：
1. **趋势**: 资金流向和MA均线方向
2. **结构**: 机构vs散户，协同vs背离
3. **信号**: 买卖信号和风险点
4. **建议**: 具体操作和观察重点

输出要求：结论先行，数据支撑，简明扼要。`

// Request 一次解读所需的全部输入。
type Request struct {
	Code     string
	Exchange model.Exchange
	// Days 实际交易日数，可能小于请求值
	Days     int
	Markdown string
}

// BuildPrompt 用户提示词：数据表 + 分析要求。
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("## 分析数据\n")
	fmt.Fprintf(&b, "以下是该股票%s(%s)最近%d个交易日的资金流数据，包含净额（亿元）和净占比（%%），按日期从新到旧排列，\"-\" 表示均线数据不足：\n\n",
		req.Code, req.Exchange.Upper(), req.Days)
	b.WriteString(strings.TrimSpace(req.Markdown))
	b.WriteString("\n\n## 分析要求\n")
	fmt.Fprintf(&b, "基于%d日资金流数据，简要回答：\n\n", req.Days)
	b.WriteString("**趋势**: 主力资金流向？MA均线方向？\n")
	b.WriteString("**结构**: 机构vs散户主导？资金协同性？\n")
	b.WriteString("**信号**: 买入/卖出信号？关键风险点？\n")
	b.WriteString("**建议**: 操作方向？重点观察指标？\n\n")
	b.WriteString("要求：数据支撑，结论简明，突出重点。")
	return b.String()
}
