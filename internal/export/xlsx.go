package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"stockFundFlow/internal/flow"
	"stockFundFlow/internal/model"
)

const (
	defaultSheet = "Sheet1"
	// SheetName 导出工作表名
	SheetName = "资金流"
	numFormat = "0.00"
)

// XLSXExporter 数值单元格保留数值类型，未定义的均线留空。
type XLSXExporter struct{}

func (XLSXExporter) Extension() string { return "xlsx" }

func (XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXExporter) Export(w io.Writer, d model.DerivedFlowSeries) error {
	t := flow.BuildTable(d)
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(defaultSheet, SheetName); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: header: %w", err)
	}
	for i, r := range t.Rows {
		row := make([]interface{}, 0, len(r.Values)+1)
		row = append(row, r.Date)
		for _, v := range r.Values {
			if v.Valid {
				row = append(row, v.Float64)
			} else {
				row = append(row, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("xlsx: row %d: %w", i+2, err)
		}
	}
	if len(t.Rows) > 0 {
		style, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(numFormat)})
		if err != nil {
			return fmt.Errorf("xlsx: style: %w", err)
		}
		from, _ := excelize.CoordinatesToCellName(2, 2)
		to, _ := excelize.CoordinatesToCellName(len(t.Columns), len(t.Rows)+1)
		if err := f.SetCellStyle(SheetName, from, to, style); err != nil {
			return fmt.Errorf("xlsx: apply style: %w", err)
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, XSplit: 1, YSplit: 1, TopLeftCell: "B2", ActivePane: "bottomRight"}); err != nil {
		return fmt.Errorf("xlsx: panes: %w", err)
	}
	return f.Write(w)
}

func strPtr(s string) *string { return &s }
