package flow

import (
	"bytes"
	"fmt"

	"github.com/guregu/null/v6"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/shopspring/decimal"
	"stockFundFlow/internal/model"
)

// 列名
const (
	ColDate      = "日期"
	ColClose     = "收盘价"
	ColChangePct = "涨跌幅"
	// UndefinedCell 均线数据不足时的占位
	UndefinedCell = "-"
)

// Table 展示用表格：Columns[0] 为日期列，Values 与 Columns[1:] 一一对应。行按日期降序（最新在前）。
type Table struct {
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}

type TableRow struct {
	Date   string       `json:"date"`
	Values []null.Float `json:"values"`
}

// NetColumn 如 "主力净流入-净额"。
func NetColumn(b model.Bucket) string { return b.Name() + "净流入-净额" }

// MAColumn 如 "主力净流入-净额-MA5"。
func MAColumn(b model.Bucket, w int) string { return fmt.Sprintf("%s-MA%d", NetColumn(b), w) }

// PctColumn 如 "主力净流入-净占比"。
func PctColumn(b model.Bucket) string { return b.Name() + "净流入-净占比" }

// Columns 完整列名：日期、收盘价、涨跌幅，各口径净额及其均线，最后各口径净占比。
func Columns() []string {
	cols := []string{ColDate, ColClose, ColChangePct}
	for _, b := range model.Buckets {
		cols = append(cols, NetColumn(b))
		for _, w := range model.MAWindows {
			cols = append(cols, MAColumn(b, w))
		}
	}
	for _, b := range model.Buckets {
		cols = append(cols, PctColumn(b))
	}
	return cols
}

// FormatValue 表格与 Markdown 共用的单元格格式：两位小数，未定义为 "-"。
func FormatValue(v null.Float) string {
	if !v.Valid {
		return UndefinedCell
	}
	return decimal.NewFromFloat(v.Float64).StringFixed(DisplayPlaces)
}

// BuildTable 衍生序列转为表格，最新交易日在前。
func BuildTable(d model.DerivedFlowSeries) Table {
	t := Table{Columns: Columns(), Rows: make([]TableRow, 0, len(d.Rows))}
	for i := len(d.Rows) - 1; i >= 0; i-- {
		r := d.Rows[i]
		vals := make([]null.Float, 0, len(t.Columns)-1)
		vals = append(vals, r.Close, r.ChangePct)
		for _, b := range model.Buckets {
			vals = append(vals, r.Buckets[b].Net)
			vals = append(vals, r.Buckets[b].MA[:]...)
		}
		for _, b := range model.Buckets {
			vals = append(vals, r.Buckets[b].NetPct)
		}
		t.Rows = append(t.Rows, TableRow{Date: r.Date.Format(model.DateLayout), Values: vals})
	}
	return t
}

// Cells 第 i 行格式化后的全部单元格（含日期）。
func (t Table) Cells(i int) []string {
	r := t.Rows[i]
	out := make([]string, 0, len(r.Values)+1)
	out = append(out, r.Date)
	for _, v := range r.Values {
		out = append(out, FormatValue(v))
	}
	return out
}

// Strings 所有行的格式化单元格。
func (t Table) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cells(i)
	}
	return out
}

// Column 按列名取该列数值（不含日期列），列不存在返回 nil。
func (t Table) Column(name string) []null.Float {
	idx := -1
	for i, c := range t.Columns {
		if c == name {
			idx = i - 1
			break
		}
	}
	if idx < 0 {
		return nil
	}
	out := make([]null.Float, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[idx]
	}
	return out
}

// Markdown 渲染为管道表格，供提示词与页面展示使用。
func Markdown(t Table) (string, error) {
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("flow: table has no columns")
	}
	var b bytes.Buffer
	table := tablewriter.NewTable(&b,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		// 列名含 "-MA3"，关闭自动格式化以免被改写
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithHeaderAutoWrap(tw.WrapNone),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
		tablewriter.WithRowAlignment(tw.AlignRight),
	)
	table.Header(t.Columns)
	for i := range t.Rows {
		if err := table.Append(t.Cells(i)); err != nil {
			return "", fmt.Errorf("flow: markdown row %d: %w", i, err)
		}
	}
	if err := table.Render(); err != nil {
		return "", fmt.Errorf("flow: render markdown: %w", err)
	}
	return b.String(), nil
}
