package model

import "strings"

// Exchange 交易所标识：sh/sz/bj。
type Exchange string

const (
	ExchangeShanghai Exchange = "sh"
	ExchangeShenzhen Exchange = "sz"
	ExchangeBeijing  Exchange = "bj"
)

// 东方财富 secid 市场号：上海 1，深圳/北京 0
const (
	eastMoneyMarketSH = "1"
	eastMoneyMarketSZ = "0"
)

// Name 中文名称。
func (e Exchange) Name() string {
	switch e {
	case ExchangeShanghai:
		return "上海证券交易所"
	case ExchangeShenzhen:
		return "深圳证券交易所"
	case ExchangeBeijing:
		return "北京证券交易所"
	default:
		return "未知"
	}
}

// Upper 大写后缀，如 "SH"，用于 600519.SH 形式展示。
func (e Exchange) Upper() string { return strings.ToUpper(string(e)) }

// EastMoneyMarket 东方财富接口的市场号。
func (e Exchange) EastMoneyMarket() string {
	if e == ExchangeShanghai {
		return eastMoneyMarketSH
	}
	return eastMoneyMarketSZ
}

// Valid 是否为已知交易所。
func (e Exchange) Valid() bool {
	return e == ExchangeShanghai || e == ExchangeShenzhen || e == ExchangeBeijing
}
