package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
	"stockFundFlow/internal/flow"
	"stockFundFlow/internal/model"
)

func derived(days int) model.DerivedFlowSeries {
	s := model.FlowSeries{Code: "000001", Exchange: model.ExchangeShenzhen}
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		rec := model.DailyFlowRecord{Date: start.AddDate(0, 0, i), Close: 11.5, ChangePct: -0.3}
		for _, b := range model.Buckets {
			rec.Flows[b] = model.BucketFlow{NetAmount: float64(i+1) * 1e7, NetPct: 1.25}
		}
		s.Records = append(s.Records, rec)
	}
	return flow.Derive(s)
}

func TestNew(t *testing.T) {
	for _, f := range Formats {
		e := New(f)
		if e == nil {
			t.Fatalf("New(%s) = nil", f)
		}
		if e.Extension() != f {
			t.Errorf("New(%s).Extension() = %s", f, e.Extension())
		}
	}
	if New(" XLSX ") == nil || New("excel") == nil {
		t.Errorf("format matching should be case-insensitive")
	}
	if New("pdf") != nil {
		t.Errorf("pdf should be unsupported")
	}
	if got := FileName(derived(1), CSVExporter{}); got != "000001_SZ_fund_flow.csv" {
		t.Errorf("FileName = %s", got)
	}
}

func TestCSVMatchesTable(t *testing.T) {
	d := derived(4)
	var buf bytes.Buffer
	if err := (CSVExporter{}).Export(&buf, d); err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := strings.TrimPrefix(buf.String(), "\ufeff")
	recs, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	tbl := flow.BuildTable(d)
	if len(recs) != len(tbl.Rows)+1 {
		t.Fatalf("csv rows = %d", len(recs))
	}
	if strings.Join(recs[0], ",") != strings.Join(tbl.Columns, ",") {
		t.Errorf("header = %v", recs[0])
	}
	for i := range tbl.Rows {
		if strings.Join(recs[i+1], ",") != strings.Join(tbl.Cells(i), ",") {
			t.Errorf("row %d = %v, want %v", i, recs[i+1], tbl.Cells(i))
		}
	}
	// 最新一天在前，4 天时 MA5 未定义
	if recs[1][0] != "2024-05-04" || recs[1][5] != "-" {
		t.Errorf("first row = %v", recs[1])
	}
}

func TestJSONNulls(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONExporter{}).Export(&buf, derived(3)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	var got struct {
		Code    string   `json:"code"`
		Columns []string `json:"columns"`
		Rows    []struct {
			Date   string     `json:"date"`
			Values []*float64 `json:"values"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Code != "000001" || len(got.Rows) != 3 {
		t.Fatalf("got = %+v", got)
	}
	// Values[3] 是主力 MA3：最旧一天为 null，最新一天为 0.2
	if got.Rows[2].Values[3] != nil {
		t.Errorf("oldest MA3 should be null")
	}
	if v := got.Rows[0].Values[3]; v == nil || *v != 0.2 {
		t.Errorf("newest MA3 = %v", v)
	}
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := (XLSXExporter{}).Export(&buf, derived(2)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0][0] != flow.ColDate || rows[1][0] != "2024-05-02" {
		t.Errorf("rows = %v", rows[:2])
	}
	v, err := f.GetCellValue(SheetName, "D2", excelize.Options{RawCellValue: true})
	if err != nil || v != "0.2" {
		t.Errorf("D2 = %q err=%v", v, err)
	}
}

func TestParquetRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := (ParquetExporter{}).Export(&buf, derived(3)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	rows, err := parquet.Read[flowRow](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 || rows[0].Date != "2024-05-01" {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].MainMA3 != nil || rows[2].MainMA3 == nil || *rows[2].MainMA3 != 0.2 {
		t.Errorf("main MA3 = %v / %v", rows[0].MainMA3, rows[2].MainMA3)
	}
	if rows[1].SmallPct == nil || *rows[1].SmallPct != 1.25 {
		t.Errorf("small pct = %v", rows[1].SmallPct)
	}
	if rows[2].SuperMA10 != nil {
		t.Errorf("MA10 should be null with 3 rows")
	}
}
