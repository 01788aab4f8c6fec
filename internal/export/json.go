package export

import (
	"encoding/json"
	"io"

	"stockFundFlow/internal/flow"
	"stockFundFlow/internal/model"
)

// JSONExporter 输出 {code, exchange, columns, rows}，未定义的均线为 null。
type JSONExporter struct{}

func (JSONExporter) Extension() string { return "json" }

func (JSONExporter) ContentType() string { return "application/json; charset=utf-8" }

func (JSONExporter) Export(w io.Writer, d model.DerivedFlowSeries) error {
	t := flow.BuildTable(d)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Code     string         `json:"code"`
		Exchange model.Exchange `json:"exchange"`
		flow.Table
	}{d.Code, d.Exchange, t})
}
