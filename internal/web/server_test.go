package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockFundFlow/internal/analysis"
	"stockFundFlow/internal/api"
	"stockFundFlow/internal/errs"
	"stockFundFlow/internal/llm"
	"stockFundFlow/internal/model"
)

type fakeFetcher struct {
	series model.FlowSeries
	err    error
	panic  string
}

func (f *fakeFetcher) GetFundFlow(ctx context.Context, code string, ex model.Exchange, days int) (model.FlowSeries, error) {
	if f.panic != "" {
		panic(f.panic)
	}
	s := f.series
	s.Code, s.Exchange = code, ex
	return s, f.err
}

type fakeNarrator struct {
	chunks []string
	err    error
}

func (f *fakeNarrator) Narrate(ctx context.Context, req llm.Request, onChunk func(string) error) error {
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return f.err
}

type fakePinger struct {
	enabled bool
	err     error
}

func (p *fakePinger) Ping(ctx context.Context) error { return p.err }
func (p *fakePinger) Enabled() bool                  { return p.enabled }
func (p *fakePinger) Model() string                  { return "gpt-test" }

func testSeries(days int) model.FlowSeries {
	var s model.FlowSeries
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		rec := model.DailyFlowRecord{Date: start.AddDate(0, 0, i), Close: 10 + float64(i), ChangePct: 1}
		rec.Flows[model.BucketMain] = model.BucketFlow{NetAmount: float64(i+1) * 1e8, NetPct: 2}
		s.Records = append(s.Records, rec)
	}
	return s
}

func newTestServer(t *testing.T, f *fakeFetcher, n *fakeNarrator, p *fakePinger) *Server {
	t.Helper()
	var narrator analysis.Narrator
	if n != nil {
		narrator = n
	}
	svc := analysis.NewService(f, narrator, analysis.Limits{MinDays: 10, DefaultDays: 30, MaxDays: 50})
	var pinger Pinger
	if p != nil {
		pinger = p
	}
	s, err := New(svc, pinger, Options{Title: "个股资金流分析专家", BaseURL: "http://llm.local/v1", Missing: []string{"OPENAI_API_KEY"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func doGet(t *testing.T, s *Server, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	if err != nil {
		t.Fatalf("GET %s: %v", target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, nil, &fakePinger{})
	resp, body := doGet(t, s, "/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get(headerTraceID) == "" {
		t.Error("missing trace id header")
	}
	var st statusResp
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.LLMConfigured || st.Model != "gpt-test" || st.Title != "个股资金流分析专家" {
		t.Errorf("status = %+v", st)
	}
	if len(st.Missing) != 1 || st.Missing[0] != "OPENAI_API_KEY" {
		t.Errorf("missing = %v", st.Missing)
	}
	if st.Limits.MinDays != 10 || st.Limits.DefaultDays != 30 || st.Limits.MaxDays != 50 {
		t.Errorf("limits = %+v", st.Limits)
	}
	if len(st.Formats) != 4 {
		t.Errorf("formats = %v", st.Formats)
	}
}

func TestGetFlow(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{series: testSeries(12)}, nil, nil)
	resp, body := doGet(t, s, "/api/flow?code=600519&days=12")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	var rep analysis.Report
	if err := json.Unmarshal(body, &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Symbol != "600519.SH" || rep.Overview.Days != 12 {
		t.Errorf("report = %s days=%d", rep.Symbol, rep.Overview.Days)
	}
	if len(rep.Cells) != 12 || rep.Cells[0][0] != "2024-03-12" {
		t.Errorf("first row = %v", rep.Cells[0])
	}
	// 最早一行 MA3 未定义，JSON 中为 null
	last := rep.Table.Rows[len(rep.Table.Rows)-1]
	if last.Values[3].Valid {
		t.Errorf("oldest MA3 should be null, got %v", last.Values[3])
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		name    string
		fetcher *fakeFetcher
		target  string
		status  int
		code    string
	}{
		{"non digit", &fakeFetcher{}, "/api/flow?code=abc123", http.StatusBadRequest, "InvalidCodeFormat"},
		{"bad prefix", &fakeFetcher{}, "/api/flow?code=123456", http.StatusBadRequest, "UnsupportedExchangePrefix"},
		{"missing code", &fakeFetcher{}, "/api/flow", http.StatusBadRequest, codeInvalidArgs},
		{"days too small", &fakeFetcher{}, "/api/flow?code=000001&days=5", http.StatusBadRequest, "InvalidLookback"},
		{"empty", &fakeFetcher{}, "/api/flow?code=000001", http.StatusNotFound, "EmptyDataset"},
		{"provider down", &fakeFetcher{err: errs.New(errs.CodeProviderUnavailable, "HTTP 503")}, "/api/flow?code=000001", http.StatusBadGateway, "ProviderUnavailable"},
		{"parse error", &fakeFetcher{err: errs.New(errs.CodeProviderParseError, "bad json")}, "/api/flow?code=000001", http.StatusBadGateway, "ProviderParseError"},
		{"bad format", &fakeFetcher{series: testSeries(12)}, "/api/flow/export?code=000001&format=pdf", http.StatusBadRequest, codeInvalidArgs},
		{"analyze bad code", &fakeFetcher{}, "/api/analyze?code=12", http.StatusBadRequest, "InvalidCodeFormat"},
		{"handler panic", &fakeFetcher{panic: "boom"}, "/api/flow?code=000001", http.StatusInternalServerError, "Unknown"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := newTestServer(t, c.fetcher, nil, nil)
			resp, body := doGet(t, s, c.target)
			if resp.StatusCode != c.status {
				t.Fatalf("status = %d, want %d body=%s", resp.StatusCode, c.status, body)
			}
			var eb ErrBody
			if err := json.Unmarshal(body, &eb); err != nil {
				t.Fatalf("decode: %v body=%s", err, body)
			}
			if eb.Code != c.code || eb.Msg == "" {
				t.Errorf("body = %+v, want code %s", eb, c.code)
			}
		})
	}
}

// 行情接口返回 NaN 时应得到 502，服务继续可用
func TestNonFiniteProviderValue(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"rc":0,"data":{"klines":["2024-05-06,NaN,1,1,1,1,1,1,1,1,1,10.5,0.3,0,0"]}}`)
	}))
	defer provider.Close()
	client := api.NewClient(time.Second)
	client.FundFlowURL = provider.URL
	svc := analysis.NewService(client, nil, analysis.Limits{MinDays: 10, DefaultDays: 30, MaxDays: 50})
	s, err := New(svc, nil, Options{Title: "t"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 2; i++ {
		resp, body := doGet(t, s, "/api/flow?code=600519")
		if resp.StatusCode != http.StatusBadGateway {
			t.Fatalf("round %d status = %d body=%s", i, resp.StatusCode, body)
		}
		var eb ErrBody
		if err := json.Unmarshal(body, &eb); err != nil || eb.Code != "ProviderParseError" {
			t.Fatalf("round %d body = %s", i, body)
		}
	}
}

func TestMarkdown(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{series: testSeries(12)}, nil, nil)
	resp, body := doGet(t, s, "/api/flow/markdown?code=300750")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/markdown") {
		t.Errorf("content type = %s", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), "主力净流入-净额-MA3") {
		t.Errorf("markdown missing header:\n%s", body)
	}
}

func TestExport(t *testing.T) {
	cases := []struct {
		format string
		ctype  string
		file   string
	}{
		{"csv", "text/csv", "600519_SH_fund_flow.csv"},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "600519_SH_fund_flow.xlsx"},
		{"json", "application/json", "600519_SH_fund_flow.json"},
	}
	s := newTestServer(t, &fakeFetcher{series: testSeries(12)}, nil, nil)
	for _, c := range cases {
		t.Run(c.format, func(t *testing.T) {
			resp, body := doGet(t, s, "/api/flow/export?code=600519&format="+c.format)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d body=%s", resp.StatusCode, body)
			}
			if !strings.HasPrefix(resp.Header.Get("Content-Type"), c.ctype) {
				t.Errorf("content type = %s", resp.Header.Get("Content-Type"))
			}
			if !strings.Contains(resp.Header.Get("Content-Disposition"), c.file) {
				t.Errorf("disposition = %s", resp.Header.Get("Content-Disposition"))
			}
			if len(body) == 0 {
				t.Error("empty body")
			}
		})
	}
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(body string) []sseEvent {
	var out []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				ev.name = v
			} else if v, ok := strings.CutPrefix(line, "data: "); ok {
				ev.data += v
			}
		}
		out = append(out, ev)
	}
	return out
}

func TestAnalyzeStream(t *testing.T) {
	n := &fakeNarrator{chunks: []string{"主力资金", "持续流入"}}
	s := newTestServer(t, &fakeFetcher{series: testSeries(12)}, n, nil)
	resp, body := doGet(t, s, "/api/analyze?code=000001&days=12")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", resp.StatusCode, body)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Errorf("content type = %s", resp.Header.Get("Content-Type"))
	}
	events := parseSSE(string(body))
	want := []string{EventReport, EventChunk, EventChunk, EventDone}
	if len(events) != len(want) {
		t.Fatalf("events = %+v", events)
	}
	for i, name := range want {
		if events[i].name != name {
			t.Errorf("event %d = %s, want %s", i, events[i].name, name)
		}
	}
	var rep analysis.Report
	if err := json.Unmarshal([]byte(events[0].data), &rep); err != nil || rep.Symbol != "000001.SZ" {
		t.Errorf("report event = %v %s", err, rep.Symbol)
	}
	var text string
	if err := json.Unmarshal([]byte(events[2].data), &text); err != nil || text != "持续流入" {
		t.Errorf("chunk = %q err=%v", text, err)
	}
}

func TestAnalyzeNarrationFailure(t *testing.T) {
	n := &fakeNarrator{chunks: []string{"部分"}, err: errs.New(errs.CodeNarrationTimeout, "AI 解读超时")}
	s := newTestServer(t, &fakeFetcher{series: testSeries(12)}, n, nil)
	_, body := doGet(t, s, "/api/analyze?code=830799")
	events := parseSSE(string(body))
	if len(events) != 3 || events[0].name != EventReport || events[1].name != EventChunk || events[2].name != EventError {
		t.Fatalf("events = %+v", events)
	}
	var eb ErrBody
	if err := json.Unmarshal([]byte(events[2].data), &eb); err != nil {
		t.Fatalf("decode error event: %v", err)
	}
	if eb.Code != "NarrationTimeout" || !strings.HasPrefix(eb.Msg, "❌ AI 解读中断") {
		t.Errorf("error event = %+v", eb)
	}
}

func TestAnalyzeWithoutNarrator(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{series: testSeries(12)}, nil, nil)
	_, body := doGet(t, s, "/api/analyze?code=600000")
	events := parseSSE(string(body))
	if len(events) != 2 || events[1].name != EventError {
		t.Fatalf("events = %+v", events)
	}
	if !strings.Contains(events[1].data, "NarrationUnavailable") {
		t.Errorf("error event = %s", events[1].data)
	}
}

func TestPing(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, nil, &fakePinger{enabled: true})
	resp, body := doGet(t, s, "/api/llm/ping")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "gpt-test") {
		t.Errorf("ping ok = %d %s", resp.StatusCode, body)
	}

	s = newTestServer(t, &fakeFetcher{}, nil, &fakePinger{err: errs.New(errs.CodeNarrationUnavailable, "未配置 OPENAI_API_KEY")})
	resp, _ = doGet(t, s, "/api/llm/ping")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ping fail status = %d", resp.StatusCode)
	}

	s = newTestServer(t, &fakeFetcher{}, nil, nil)
	resp, _ = doGet(t, s, "/api/llm/ping")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("no pinger status = %d", resp.StatusCode)
	}
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, nil, nil)
	resp, body := doGet(t, s, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "/api/analyze") {
		t.Error("index page not served")
	}
}

func TestStatusOf(t *testing.T) {
	cases := map[errs.Code]int{
		errs.CodeInvalidCodeFormat:         400,
		errs.CodeUnsupportedExchangePrefix: 400,
		errs.CodeInvalidLookback:           400,
		errs.CodeEmptyDataset:              404,
		errs.CodeProviderUnavailable:       502,
		errs.CodeProviderParseError:        502,
		errs.CodeNarrationUnavailable:      503,
		errs.CodeNarrationTimeout:          504,
		errs.CodeUnknown:                   500,
	}
	for code, want := range cases {
		if got := StatusOf(code); got != want {
			t.Errorf("StatusOf(%s) = %d, want %d", code, got, want)
		}
	}
}
