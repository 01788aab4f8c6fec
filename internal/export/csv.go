package export

import (
	"encoding/csv"
	"io"

	"stockFundFlow/internal/flow"
	"stockFundFlow/internal/model"
)

// CSVExporter 与页面表格相同的列与格式化文本，带 UTF-8 BOM 便于 Excel 直接打开。
type CSVExporter struct{}

func (CSVExporter) Extension() string { return "csv" }

func (CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVExporter) Export(w io.Writer, d model.DerivedFlowSeries) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	t := flow.BuildTable(d)
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Strings()); err != nil {
		return err
	}
	return cw.Error()
}
