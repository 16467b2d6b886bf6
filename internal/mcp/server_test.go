package mcp

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/logging"
	"github.com/fyrsmithlabs/wonquotes/internal/matching"
	"github.com/fyrsmithlabs/wonquotes/internal/oracle"
	"github.com/fyrsmithlabs/wonquotes/internal/quotes"
	"github.com/fyrsmithlabs/wonquotes/internal/winprob"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type testEnv struct {
	session *mcp.ClientSession
	store   *quotes.Store
	logs    *logging.TestLogger
	reader  *sdkmetric.ManualReader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := quotes.NewStore(quotes.NewMemoryBackend(), quotes.Options{Now: clock})
	engine := matching.NewEngine(store, matching.WithClock(clock))
	agg := history.NewAggregator(engine, nil)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	logs := logging.NewTestLogger()

	server, err := NewServer(&Config{
		Name:          "wonquotes-test",
		Version:       "test",
		Logger:        logs.Logger,
		MeterProvider: mp,
	}, Services{
		KnowledgeBase: store,
		Matcher:       engine,
		History:       agg,
		Estimator:     winprob.NewEstimator(agg),
		Oracle:        oracle.New(agg, oracle.WithStats(store), oracle.WithClock(clock), oracle.WithMeterProvider(mp)),
	})
	require.NoError(t, err)

	serverT, clientT := mcp.NewInMemoryTransports()
	_, err = server.Connect(ctx, serverT)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return &testEnv{session: session, store: store, logs: logs, reader: reader}
}

func (e *testEnv) call(t *testing.T, name string, args any) *mcp.CallToolResult {
	t.Helper()
	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, res.IsError, "tool %s failed: %v", name, toolText(res))
	return res
}

func (e *testEnv) callErr(t *testing.T, name string, args any) string {
	t.Helper()
	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return err.Error()
	}
	require.True(t, res.IsError, "expected %s to fail", name)
	return toolText(res)
}

func toolText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func monthsAgo(m int) string {
	return now.AddDate(0, -m, 0).Format("2006-01-02")
}

func price(v float64) *float64 { return &v }

// seed stores three awards for gloves and one unpriced line.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	res := e.call(t, "quotes_ingest", ingestInput{Records: []recordInput{
		{OrderNumber: "PO-1", ItemCode: "6515-001", Description: "Nitrile exam gloves large", UnitPrice: price(100), AwardDate: monthsAgo(2), Department: "CDCR"},
		{OrderNumber: "PO-2", ItemCode: "6515-001", Description: "Nitrile exam gloves large", UnitPrice: price(104), AwardDate: monthsAgo(3), Department: "CDCR"},
		{OrderNumber: "PO-3", ItemCode: "6515-001", Description: "Nitrile exam gloves large", UnitPrice: price(98), AwardDate: monthsAgo(4), Department: "CalVet"},
		{OrderNumber: "PO-4", ItemCode: "6515-001", Description: "Nitrile exam gloves large"},
	}})
	out := decode[ingestOutput](t, res)
	require.Equal(t, ingestOutput{Ingested: 3, Skipped: 1}, out)
}

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := NewServer(nil, Services{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge base is required")
	assert.Contains(t, err.Error(), "oracle is required")
}

func TestListTools(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"price_batch", "price_recommend", "pricing_health",
		"quotes_history", "quotes_ingest", "quotes_search", "quotes_stats",
		"win_probability",
	}, names)
}

func TestQuotesIngest_Single(t *testing.T) {
	env := newTestEnv(t)
	in := ingestInput{Records: []recordInput{{
		OrderNumber: "PO-9", ItemCode: "7510-22", Description: "Copy paper, letter", UnitPrice: price(42.5),
	}}}

	first := decode[ingestOutput](t, env.call(t, "quotes_ingest", in))
	assert.Equal(t, 1, first.Ingested)
	assert.Regexp(t, `^wq_[0-9a-f]{12}$`, first.ID)

	in.Records[0].UnitPrice = price(40)
	second := decode[ingestOutput](t, env.call(t, "quotes_ingest", in))
	assert.Equal(t, ingestOutput{ID: first.ID, Updated: 1}, second)

	rec, ok := env.store.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, 40.0, rec.UnitPrice)
	assert.Equal(t, quotes.SourceLive, rec.Source)
}

func TestQuotesIngest_SingleWithoutPriceIsSkipped(t *testing.T) {
	env := newTestEnv(t)

	for name, unitPrice := range map[string]*float64{"zero": price(0), "missing": nil, "negative": price(-3)} {
		t.Run(name, func(t *testing.T) {
			res := env.call(t, "quotes_ingest", ingestInput{Records: []recordInput{{
				OrderNumber: "PO-1", ItemCode: "X", Description: "Widget", UnitPrice: unitPrice,
			}}})
			assert.False(t, res.IsError)
			assert.Equal(t, ingestOutput{Skipped: 1}, decode[ingestOutput](t, res))
			assert.Contains(t, toolText(res), "Skipped 1 record")
		})
	}
	assert.Equal(t, 0, env.store.Len())
}

func TestQuotesIngest_Rejects(t *testing.T) {
	env := newTestEnv(t)

	msg := env.callErr(t, "quotes_ingest", map[string]any{"records": []any{}})
	assert.Contains(t, msg, "records cannot be empty")
	assert.Equal(t, 0, env.store.Len())
}

func TestQuotesSearch(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out := decode[searchOutput](t, env.call(t, "quotes_search", searchInput{ItemCode: "6515-001"}))
	require.Equal(t, 3, out.Count)
	for _, m := range out.Matches {
		assert.Equal(t, 1.0, m.Confidence)
		assert.Equal(t, []string{"exact_item_number"}, m.Reasons)
		assert.Equal(t, 1.0, m.FreshnessWeight)
	}

	none := decode[searchOutput](t, env.call(t, "quotes_search", searchInput{Description: "hydraulic pump assembly"}))
	assert.Zero(t, none.Count)
	assert.Empty(t, none.Matches)

	assert.Contains(t, env.callErr(t, "quotes_search", searchInput{}), "item_code or description is required")
}

func TestQuotesSearch_MinConfidence(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	res := env.call(t, "quotes_search", map[string]any{"description": "nitrile exam gloves large", "min_confidence": 0})
	assert.Equal(t, 3, decode[searchOutput](t, res).Count)

	res = env.call(t, "quotes_search", map[string]any{"description": "nitrile exam gloves large", "min_confidence": 0.99})
	assert.Equal(t, 0, decode[searchOutput](t, res).Count)

	msg := env.callErr(t, "quotes_search", map[string]any{"item_code": "6515-001", "min_confidence": 1.5})
	assert.Contains(t, msg, "min_confidence must be between 0 and 1")
}

func TestQuotesHistory(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out := decode[historyOutput](t, env.call(t, "quotes_history", historyInput{ItemCode: "6515-001"}))
	assert.Equal(t, 3, out.Matches)
	require.NotNil(t, out.MedianPrice)
	assert.Equal(t, 100.0, *out.MedianPrice)
	assert.Equal(t, 98.0, *out.MinPrice)
	assert.Equal(t, 104.0, *out.MaxPrice)
	assert.Equal(t, string(history.TrendInsufficient), out.Trend)
	assert.Len(t, out.DataPoints, 3)

	empty := decode[historyOutput](t, env.call(t, "quotes_history", historyInput{ItemCode: "NOPE-1"}))
	assert.Zero(t, empty.Matches)
	assert.Nil(t, empty.MedianPrice)
}

func TestQuotesStats(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	st := decode[quotes.Stats](t, env.call(t, "quotes_stats", map[string]any{}))
	assert.Equal(t, 3, st.TotalRecords)
	require.NotEmpty(t, st.Departments)
	assert.Equal(t, quotes.NameCount{Name: "CDCR", Count: 2}, st.Departments[0])
	assert.InDelta(t, 302.0, st.TotalValue, 1e-9)
}

func TestWinProbability(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	est := decode[winprob.Estimate](t, env.call(t, "win_probability", winProbabilityInput{Price: 100, ItemCode: "6515-001"}))
	assert.Greater(t, est.Probability, 0.5)
	assert.Less(t, est.Probability, 0.6)
	assert.Equal(t, 3, est.DataPoints)
	assert.Equal(t, winprob.LevelMedium, est.ConfidenceLevel)

	noData := decode[winprob.Estimate](t, env.call(t, "win_probability", winProbabilityInput{Price: 10, Description: "unmatched thing"}))
	assert.Equal(t, winprob.NoDataProbability, noData.Probability)
	assert.Equal(t, winprob.NoDataReasoning, noData.Reasoning)

	assert.Contains(t, env.callErr(t, "win_probability", winProbabilityInput{Price: 0, ItemCode: "6515-001"}), "price must be greater than zero")
}

func TestPriceRecommend(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rec := decode[oracle.Recommendation](t, env.call(t, "price_recommend", recommendInput{
		ItemCode:     "6515-001",
		Description:  "Nitrile exam gloves large",
		SupplierCost: price(60),
	}))
	require.NotNil(t, rec.Recommended)
	require.NotNil(t, rec.Aggressive)
	require.NotNil(t, rec.Safe)
	assert.Equal(t, oracle.QualityFull, rec.DataQuality)
	assert.LessOrEqual(t, rec.Aggressive.Price, rec.Recommended.Price)
	assert.LessOrEqual(t, rec.Recommended.Price, rec.Safe.Price)
	assert.Equal(t, 3, rec.History.Matches)

	manual := decode[oracle.Recommendation](t, env.call(t, "price_recommend", recommendInput{Description: "unmatched thing"}))
	assert.Nil(t, manual.Recommended)
	assert.Equal(t, oracle.QualityNoData, manual.DataQuality)
	assert.Contains(t, manual.Flags, oracle.FlagNoPricingData)
}

func TestPriceBatch(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out := decode[batchOutput](t, env.call(t, "price_batch", batchInput{
		SolicitationNumber: "RFQ-2025-17",
		Agency:             "CDCR",
		LineItems: []lineItemInput{
			{LineNumber: 1, ItemCode: "6515-001", Description: "Nitrile exam gloves large", PricePerUnit: price(60), Quantity: 10},
			{LineNumber: 2, Description: "unmatched thing"},
		},
	}))
	assert.Equal(t, "RFQ-2025-17", out.RFQID)
	assert.Equal(t, "CDCR", out.Agency)
	require.Len(t, out.Items, 2)
	assert.Equal(t, 10.0, out.Items[0].Quantity)
	assert.Equal(t, 1, out.Summary.Priced)
	assert.Equal(t, 1, out.Summary.NeedsManual)
	require.NotNil(t, out.Items[0].Recommendation.Recommended)
	assert.InDelta(t, out.Items[0].Recommendation.Recommended.Price*10, out.Summary.TotalRecommended, 0.01)

	assert.Contains(t, env.callErr(t, "price_batch", batchInput{}), "line_items cannot be empty")
}

func TestPricingHealth(t *testing.T) {
	env := newTestEnv(t)
	degraded := decode[oracle.Health](t, env.call(t, "pricing_health", map[string]any{}))
	assert.Equal(t, oracle.StatusDegraded, degraded.Status)

	env.seed(t)
	h := decode[oracle.Health](t, env.call(t, "pricing_health", map[string]any{}))
	assert.Equal(t, oracle.StatusHealthy, h.Status)
	assert.Equal(t, 3, h.Records)
	assert.Len(t, h.Issues, 1)
}

func TestToolCalls_MetricsAndLogs(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.callErr(t, "quotes_search", searchInput{})

	var rm metricdata.ResourceMetrics
	require.NoError(t, env.reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				counts[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), counts["wonquotes.mcp.tool.invocations_total"])
	assert.Equal(t, int64(1), counts["wonquotes.mcp.tool.errors_total"])

	env.logs.AssertLogged(t, zapcore.WarnLevel, "tool call failed")
	entries := env.logs.FilterMessage("tool call failed").All()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ContextMap()["request.id"])
}
