package export

import (
	"io"

	"github.com/parquet-go/parquet-go"
	"stockFundFlow/internal/model"
)

// flowRow parquet 行，按日期升序；金额单位亿元，未定义的均线为 null。
type flowRow struct {
	Date      string   `parquet:"date"`
	Close     *float64 `parquet:"close,optional"`
	ChangePct *float64 `parquet:"change_pct,optional"`

	MainNet    *float64 `parquet:"main_net,optional"`
	MainMA3    *float64 `parquet:"main_net_ma3,optional"`
	MainMA5    *float64 `parquet:"main_net_ma5,optional"`
	MainMA10   *float64 `parquet:"main_net_ma10,optional"`
	SuperNet   *float64 `parquet:"super_large_net,optional"`
	SuperMA3   *float64 `parquet:"super_large_net_ma3,optional"`
	SuperMA5   *float64 `parquet:"super_large_net_ma5,optional"`
	SuperMA10  *float64 `parquet:"super_large_net_ma10,optional"`
	LargeNet   *float64 `parquet:"large_net,optional"`
	LargeMA3   *float64 `parquet:"large_net_ma3,optional"`
	LargeMA5   *float64 `parquet:"large_net_ma5,optional"`
	LargeMA10  *float64 `parquet:"large_net_ma10,optional"`
	MediumNet  *float64 `parquet:"medium_net,optional"`
	MediumMA3  *float64 `parquet:"medium_net_ma3,optional"`
	MediumMA5  *float64 `parquet:"medium_net_ma5,optional"`
	MediumMA10 *float64 `parquet:"medium_net_ma10,optional"`
	SmallNet   *float64 `parquet:"small_net,optional"`
	SmallMA3   *float64 `parquet:"small_net_ma3,optional"`
	SmallMA5   *float64 `parquet:"small_net_ma5,optional"`
	SmallMA10  *float64 `parquet:"small_net_ma10,optional"`
	MainPct    *float64 `parquet:"main_pct,optional"`
	SuperPct   *float64 `parquet:"super_large_pct,optional"`
	LargePct   *float64 `parquet:"large_pct,optional"`
	MediumPct  *float64 `parquet:"medium_pct,optional"`
	SmallPct   *float64 `parquet:"small_pct,optional"`
}

type ParquetExporter struct{}

func (ParquetExporter) Extension() string { return "parquet" }

func (ParquetExporter) ContentType() string { return "application/vnd.apache.parquet" }

func (ParquetExporter) Export(w io.Writer, d model.DerivedFlowSeries) error {
	rows := make([]flowRow, 0, len(d.Rows))
	for _, r := range d.Rows {
		row := flowRow{
			Date:      r.Date.Format(model.DateLayout),
			Close:     r.Close.Ptr(),
			ChangePct: r.ChangePct.Ptr(),
		}
		nets := [model.BucketCount][1 + model.MACount]**float64{
			model.BucketMain:       {&row.MainNet, &row.MainMA3, &row.MainMA5, &row.MainMA10},
			model.BucketSuperLarge: {&row.SuperNet, &row.SuperMA3, &row.SuperMA5, &row.SuperMA10},
			model.BucketLarge:      {&row.LargeNet, &row.LargeMA3, &row.LargeMA5, &row.LargeMA10},
			model.BucketMedium:     {&row.MediumNet, &row.MediumMA3, &row.MediumMA5, &row.MediumMA10},
			model.BucketSmall:      {&row.SmallNet, &row.SmallMA3, &row.SmallMA5, &row.SmallMA10},
		}
		pcts := [model.BucketCount]**float64{
			model.BucketMain:       &row.MainPct,
			model.BucketSuperLarge: &row.SuperPct,
			model.BucketLarge:      &row.LargePct,
			model.BucketMedium:     &row.MediumPct,
			model.BucketSmall:      &row.SmallPct,
		}
		for _, b := range model.Buckets {
			db := r.Buckets[b]
			*nets[b][0] = db.Net.Ptr()
			for k := range model.MAWindows {
				*nets[b][k+1] = db.MA[k].Ptr()
			}
			*pcts[b] = db.NetPct.Ptr()
		}
		rows = append(rows, row)
	}
	return parquet.Write(w, rows)
}
