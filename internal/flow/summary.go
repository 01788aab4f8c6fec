package flow

import (
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
	"stockFundFlow/internal/model"
)

// BucketAvg 单个口径区间平均净占比(%)。
type BucketAvg struct {
	Bucket string     `json:"bucket"`
	Key    string     `json:"key"`
	AvgPct null.Float `json:"avg_pct"`
}

// Overview 区间概览：交易日数、主力净流入合计(亿元)、最新收盘价与涨跌幅、各口径平均净占比。
type Overview struct {
	Days            int         `json:"days"`
	FirstDate       string      `json:"first_date"`
	LatestDate      string      `json:"latest_date"`
	MainNetSum      null.Float  `json:"main_net_sum"`
	LatestClose     null.Float  `json:"latest_close"`
	LatestChangePct null.Float  `json:"latest_change_pct"`
	AvgNetPct       []BucketAvg `json:"avg_net_pct"`
}

// Summarize 基于元单位的原始序列汇总，主力净额合计只换算一次。
func Summarize(s model.FlowSeries) Overview {
	ov := Overview{Days: s.Len(), AvgNetPct: make([]BucketAvg, 0, model.BucketCount)}
	n := s.Len()
	for _, b := range model.Buckets {
		ov.AvgNetPct = append(ov.AvgNetPct, BucketAvg{Bucket: b.Name(), Key: b.Key()})
	}
	if n == 0 {
		return ov
	}
	first, last := s.Records[0], s.Records[n-1]
	ov.FirstDate = first.Date.Format(model.DateLayout)
	ov.LatestDate = last.Date.Format(model.DateLayout)
	ov.LatestClose = null.FloatFrom(Round2(last.Close))
	ov.LatestChangePct = null.FloatFrom(Round2(last.ChangePct))

	sum := decimal.Zero
	for _, rec := range s.Records {
		sum = sum.Add(decimal.NewFromFloat(rec.Flows[model.BucketMain].NetAmount))
	}
	ov.MainNetSum = null.FloatFrom(ToDisplayUnit(sum.InexactFloat64()))

	pcts := make([]float64, n)
	for i, b := range model.Buckets {
		for j, rec := range s.Records {
			pcts[j] = rec.Flows[b].NetPct
		}
		ov.AvgNetPct[i].AvgPct = null.FloatFrom(Round2(stat.Mean(pcts, nil)))
	}
	return ov
}
