// Package api 封装东方财富个股资金流日线接口，单次请求、不重试，带 trace 日志。
package api

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"stockFundFlow/internal/errs"
	"stockFundFlow/internal/market"
	"stockFundFlow/internal/model"
	"stockFundFlow/internal/trace"
)

// 东方财富接口地址
const (
	EastMoneyFundFlowURL = "https://push2his.eastmoney.com/api/qt/stock/fflow/daykline/get"
	eastMoneyUT          = "b2884a393a59ad64002292a3e90d46a5"
	fundFlowFields1      = "f1,f2,f3,f7"
	fundFlowFields2      = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61,f62,f63,f64,f65"
	kLineDaily           = "101"
)

// klines 每行逗号分隔的列序号
const (
	colDate = iota
	colMainNet
	colSmallNet
	colMediumNet
	colLargeNet
	colSuperNet
	colMainPct
	colSmallPct
	colMediumPct
	colLargePct
	colSuperPct
	colClose
	colChangePct
	minFundFlowCols
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxRespLogLen      = 1200
	maxBodyBytes       = 8 << 20
)

// 请求头（模拟浏览器）
const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer        = "https://quote.eastmoney.com/"
	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

// netColumn 各资金口径在 klines 中的净额与净占比列
var netColumn = [model.BucketCount][2]int{
	model.BucketMain:       {colMainNet, colMainPct},
	model.BucketSuperLarge: {colSuperNet, colSuperPct},
	model.BucketLarge:      {colLargeNet, colLargePct},
	model.BucketMedium:     {colMediumNet, colMediumPct},
	model.BucketSmall:      {colSmallNet, colSmallPct},
}

type Client struct {
	HTTPClient *http.Client
	// FundFlowURL 为空时使用 EastMoneyFundFlowURL，测试可指向本地服务。
	FundFlowURL string
}

// NewClient timeout<=0 时使用默认 10 秒。
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{HTTPClient: &http.Client{Timeout: timeout}}
}

// GetFundFlow 拉取最近 days 个交易日的资金流，返回日期升序序列。
// 接口返回 data 为空或无 klines 时返回空序列与 nil，由调用方判定“无数据”。
func (c *Client) GetFundFlow(ctx context.Context, code string, ex model.Exchange, days int) (model.FlowSeries, error) {
	series := model.FlowSeries{Code: code, Exchange: ex}
	if days <= 0 {
		return series, errs.New(errs.CodeInvalidLookback, "回看天数必须为正数：%d", days)
	}
	q := url.Values{}
	q.Set("lmt", strconv.Itoa(days))
	q.Set("klt", kLineDaily)
	q.Set("secid", market.SecID(code, ex))
	q.Set("fields1", fundFlowFields1)
	q.Set("fields2", fundFlowFields2)
	q.Set("ut", eastMoneyUT)
	reqURL := c.fundFlowURL() + "?" + q.Encode()

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return series, err
	}
	recs, err := parseFundFlowGJSON(body, code)
	if err != nil {
		return series, err
	}
	if len(recs) > days {
		recs = recs[len(recs)-days:]
	}
	series.Records = recs
	trace.Log(ctx, "api: GetFundFlow %s days=%d got=%d", market.Display(code, ex), days, len(recs))
	return series, nil
}

func (c *Client) fundFlowURL() string {
	if c.FundFlowURL != "" {
		return c.FundFlowURL
	}
	return EastMoneyFundFlowURL
}

// get 单次 GET，传输错误与非 200 均归为 ProviderUnavailable。
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	if c == nil {
		return nil, errs.New(errs.CodeProviderUnavailable, "api client is nil")
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.CodeProviderUnavailable, err, "构造请求失败")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", acceptLanguage)
	trace.Log(ctx, "api: req GET %s", reqURL)
	resp, err := client.Do(req)
	if err != nil {
		trace.Error(ctx, "api: req fail url=%s err=%v", reqURL, err)
		return nil, errs.Wrap(errs.CodeProviderUnavailable, err, "数据源不可用")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errs.Wrap(errs.CodeProviderUnavailable, err, "读取数据源响应失败")
	}
	trace.Debug(ctx, "api: resp status=%d len=%d body=%s", resp.StatusCode, len(body), truncateForLog(body))
	if resp.StatusCode != http.StatusOK {
		trace.Error(ctx, "api: resp status=%d body=%s", resp.StatusCode, truncateForLog(body))
		return nil, errs.New(errs.CodeProviderUnavailable, "数据源返回 HTTP %d", resp.StatusCode)
	}
	return body, nil
}

// truncateForLog 截断位置回退到字符边界，避免切开多字节汉字。
func truncateForLog(b []byte) string {
	s := string(b)
	if len(b) > maxRespLogLen {
		cut := maxRespLogLen
		for cut > 0 && !utf8.RuneStart(b[cut]) {
			cut--
		}
		s = string(b[:cut]) + "..."
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", " "), "\n", " ")
}

// parseFundFlowGJSON 解析 data.klines；同一日期重复出现时后者覆盖前者，结果按日期升序。
func parseFundFlowGJSON(body []byte, code string) ([]model.DailyFlowRecord, error) {
	if !gjson.ValidBytes(body) {
		return nil, errs.New(errs.CodeProviderParseError, "数据源响应不是合法 JSON（%s）", code)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, errs.New(errs.CodeProviderParseError, "数据源响应结构异常（%s）", code)
	}
	data := root.Get("data")
	if !data.Exists() {
		return nil, errs.New(errs.CodeProviderParseError, "数据源响应缺少 data 字段（%s）", code)
	}
	if data.Type == gjson.Null {
		return nil, nil
	}
	klines := data.Get("klines")
	if !klines.Exists() || klines.Type == gjson.Null {
		return nil, nil
	}
	if !klines.IsArray() {
		return nil, errs.New(errs.CodeProviderParseError, "data.klines 不是数组（%s）", code)
	}
	byDate := make(map[string]model.DailyFlowRecord)
	for i, v := range klines.Array() {
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		rec, err := parseFundFlowLine(s)
		if err != nil {
			return nil, errs.Wrap(errs.CodeProviderParseError, err, "第 %d 行资金流数据无法解析（%s）", i+1, code)
		}
		byDate[rec.Date.Format(model.DateLayout)] = rec
	}
	out := make([]model.DailyFlowRecord, 0, len(byDate))
	for _, rec := range byDate {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func parseFundFlowLine(s string) (model.DailyFlowRecord, error) {
	var rec model.DailyFlowRecord
	parts := strings.Split(s, ",")
	if len(parts) < minFundFlowCols {
		return rec, fmt.Errorf("need %d fields, got %d: %q", minFundFlowCols, len(parts), s)
	}
	date, err := time.Parse(model.DateLayout, strings.TrimSpace(parts[colDate]))
	if err != nil {
		return rec, fmt.Errorf("date %q: %w", parts[colDate], err)
	}
	rec.Date = date
	num := func(idx int) (float64, error) {
		raw := strings.TrimSpace(parts[idx])
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("col %d %q: %w", idx, raw, err)
		}
		// ParseFloat 接受 NaN/Inf，后续 decimal 换算无法处理
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("col %d %q: not a finite number", idx, raw)
		}
		return f, nil
	}
	if rec.Close, err = num(colClose); err != nil {
		return rec, err
	}
	if rec.ChangePct, err = num(colChangePct); err != nil {
		return rec, err
	}
	for _, b := range model.Buckets {
		cols := netColumn[b]
		if rec.Flows[b].NetAmount, err = num(cols[0]); err != nil {
			return rec, err
		}
		if rec.Flows[b].NetPct, err = num(cols[1]); err != nil {
			return rec, err
		}
	}
	return rec, nil
}
