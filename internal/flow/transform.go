// Package flow 资金流序列的均线计算、元转亿元换算与表格渲染。
package flow

import (
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
	"stockFundFlow/internal/model"
)

// 展示精度与单位
const (
	DisplayPlaces = 2
	yuanPerYi     = 100000000
)

var yiDivisor = decimal.NewFromInt(yuanPerYi)

// TrailingMean 末尾对齐的简单移动平均：下标 i 在 i >= w-1 时取 values[i-w+1..i] 的均值，否则为 null。
func TrailingMean(values []float64, w int) []null.Float {
	out := make([]null.Float, len(values))
	if w <= 0 {
		return out
	}
	for i := w - 1; i < len(values); i++ {
		out[i] = null.FloatFrom(stat.Mean(values[i-w+1:i+1], nil))
	}
	return out
}

// ToDisplayUnit 元转亿元并四舍五入（远离零）到两位小数。每个数值只应调用一次。
func ToDisplayUnit(base float64) float64 {
	return decimal.NewFromFloat(base).Div(yiDivisor).Round(DisplayPlaces).InexactFloat64()
}

// Round2 非金额字段（收盘价、涨跌幅、净占比）只做两位小数舍入。
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(DisplayPlaces).InexactFloat64()
}

func displayNull(v null.Float) null.Float {
	if !v.Valid {
		return v
	}
	return null.FloatFrom(ToDisplayUnit(v.Float64))
}

// Derive 以元为单位计算各口径净额的 MA3/MA5/MA10，再统一换算为亿元。结果日期升序。
func Derive(s model.FlowSeries) model.DerivedFlowSeries {
	out := model.DerivedFlowSeries{
		Code:     s.Code,
		Exchange: s.Exchange,
		Rows:     make([]model.DerivedRow, len(s.Records)),
	}
	for i, rec := range s.Records {
		out.Rows[i].Date = rec.Date
		out.Rows[i].Close = null.FloatFrom(Round2(rec.Close))
		out.Rows[i].ChangePct = null.FloatFrom(Round2(rec.ChangePct))
	}
	nets := make([]float64, len(s.Records))
	for _, b := range model.Buckets {
		for i, rec := range s.Records {
			nets[i] = rec.Flows[b].NetAmount
		}
		var mas [model.MACount][]null.Float
		for k, w := range model.MAWindows {
			mas[k] = TrailingMean(nets, w)
		}
		for i, rec := range s.Records {
			db := &out.Rows[i].Buckets[b]
			db.Net = null.FloatFrom(ToDisplayUnit(rec.Flows[b].NetAmount))
			db.NetPct = null.FloatFrom(Round2(rec.Flows[b].NetPct))
			for k := range model.MAWindows {
				db.MA[k] = displayNull(mas[k][i])
			}
		}
	}
	return out
}
