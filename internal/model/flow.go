// Package model 定义交易所、资金流日线及衍生序列（均线 + 亿元单位）等数据结构。
package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// Bucket 按单笔成交规模划分的资金口径，顺序固定。
type Bucket int

const (
	BucketMain Bucket = iota
	BucketSuperLarge
	BucketLarge
	BucketMedium
	BucketSmall
)

// BucketCount 资金口径数量。
const BucketCount = 5

// Buckets 展示与计算使用的口径顺序：主力、超大单、大单、中单、小单。
var Buckets = [BucketCount]Bucket{BucketMain, BucketSuperLarge, BucketLarge, BucketMedium, BucketSmall}

var bucketNames = [BucketCount]string{"主力", "超大单", "大单", "中单", "小单"}

var bucketKeys = [BucketCount]string{"main", "super_large", "large", "medium", "small"}

// Name 中文名，如 "主力"、"超大单"。
func (b Bucket) Name() string {
	if b < 0 || int(b) >= BucketCount {
		return "?"
	}
	return bucketNames[b]
}

// Key 英文键，用于 JSON/导出列名。
func (b Bucket) Key() string {
	if b < 0 || int(b) >= BucketCount {
		return "unknown"
	}
	return bucketKeys[b]
}

// MAWindows 净额均线窗口：MA3、MA5、MA10。
var MAWindows = [3]int{3, 5, 10}

// MACount 每个净额列派生的均线数量。
const MACount = len(MAWindows)

// BucketFlow 单个口径当日净流入：净额(元) 与净占比(%)。
type BucketFlow struct {
	NetAmount float64
	NetPct    float64
}

// DailyFlowRecord 单个交易日的资金流数据。
type DailyFlowRecord struct {
	Date      time.Time
	Close     float64
	ChangePct float64
	Flows     [BucketCount]BucketFlow
}

// FlowSeries 日期升序、无重复日期，长度不超过请求的回看天数。
type FlowSeries struct {
	Code     string
	Exchange Exchange
	Records  []DailyFlowRecord
}

// Len 交易日数量。
func (s FlowSeries) Len() int { return len(s.Records) }

// DerivedBucket 单个口径的展示值：净额及均线已换算为亿元并保留两位小数；均线数据不足时为 null。
type DerivedBucket struct {
	Net    null.Float          `json:"net"`
	MA     [MACount]null.Float `json:"ma"`
	NetPct null.Float          `json:"net_pct"`
}

// DerivedRow 衍生序列中的一行。
type DerivedRow struct {
	Date      time.Time                  `json:"date"`
	Close     null.Float                 `json:"close"`
	ChangePct null.Float                 `json:"change_pct"`
	Buckets   [BucketCount]DerivedBucket `json:"buckets"`
}

// DerivedFlowSeries 仅在单次请求内存在，日期升序。
type DerivedFlowSeries struct {
	Code     string       `json:"code"`
	Exchange Exchange     `json:"exchange"`
	Rows     []DerivedRow `json:"rows"`
}

// DateLayout 日期展示格式。
const DateLayout = "2006-01-02"
