// Package market 根据 A 股 6 位代码前两位判定所属交易所。
package market

import (
	"strings"

	"stockFundFlow/internal/errs"
	"stockFundFlow/internal/model"
)

// CodeLen A 股代码长度。
const CodeLen = 6

// 代码前缀（前两位）
const (
	PrefixSHMain    = "60" // 沪市主板
	PrefixSHStar    = "68" // 科创板
	PrefixSHB       = "90" // 沪 B 股
	PrefixSZMain    = "00" // 深市主板
	PrefixSZChiNext = "30" // 创业板
	PrefixSZB       = "20" // 深 B 股
	PrefixBJ43      = "43"
	PrefixBJ83      = "83"
	PrefixBJ87      = "87"
	PrefixBJ88      = "88"
)

var prefixExchange = map[string]model.Exchange{
	PrefixSHMain:    model.ExchangeShanghai,
	PrefixSHStar:    model.ExchangeShanghai,
	PrefixSHB:       model.ExchangeShanghai,
	PrefixSZMain:    model.ExchangeShenzhen,
	PrefixSZChiNext: model.ExchangeShenzhen,
	PrefixSZB:       model.ExchangeShenzhen,
	PrefixBJ43:      model.ExchangeBeijing,
	PrefixBJ83:      model.ExchangeBeijing,
	PrefixBJ87:      model.ExchangeBeijing,
	PrefixBJ88:      model.ExchangeBeijing,
}

// Normalize 去掉首尾空白，不做其他改写。
func Normalize(raw string) string {
	return strings.TrimSpace(raw)
}

// Classify 判定交易所。非 6 位数字返回 InvalidCodeFormat；前缀不在已知集合返回 UnsupportedExchangePrefix。
func Classify(raw string) (model.Exchange, error) {
	code := Normalize(raw)
	if !isDigits(code, CodeLen) {
		return "", errs.New(errs.CodeInvalidCodeFormat, "股票代码格式错误：%q，需要 6 位数字", raw)
	}
	ex, ok := prefixExchange[code[:2]]
	if !ok {
		return "", errs.New(errs.CodeUnsupportedExchangePrefix, "不支持的代码前缀：%s（代码 %s）", code[:2], code)
	}
	return ex, nil
}

// SecID 东方财富 secid，如 1.600519、0.000001。
func SecID(code string, ex model.Exchange) string {
	return ex.EastMoneyMarket() + "." + code
}

// Display 展示形式，如 600519.SH。
func Display(code string, ex model.Exchange) string {
	return code + "." + ex.Upper()
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
