// Package export 将资金流衍生表导出为 csv/json/xlsx/parquet。
package export

import (
	"io"
	"strings"

	"stockFundFlow/internal/model"
)

// Exporter 按格式写出衍生序列。
type Exporter interface {
	Export(w io.Writer, d model.DerivedFlowSeries) error
	Extension() string
	ContentType() string
}

// Formats 支持的导出格式。
var Formats = []string{"csv", "json", "xlsx", "parquet"}

// New 按格式创建导出器，不支持的格式返回 nil。
func New(format string) Exporter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVExporter{}
	case "json":
		return JSONExporter{}
	case "xlsx", "excel":
		return XLSXExporter{}
	case "parquet":
		return ParquetExporter{}
	default:
		return nil
	}
}

// FileName 如 600519_SH_fund_flow.xlsx。
func FileName(d model.DerivedFlowSeries, e Exporter) string {
	return d.Code + "_" + d.Exchange.Upper() + "_fund_flow." + e.Extension()
}
