package perf

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmafoods/api/models"
)

type sliceQueue struct {
	mu    sync.Mutex
	items []models.PerformanceMetric
	err   error
}

func (q *sliceQueue) Enqueue(m models.PerformanceMetric) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, m)
	return nil
}

func allCaps() Capabilities {
	return Capabilities{PerformanceObserver: true, Navigation: true, Memory: true, Connection: true}
}

func fullReport() Report {
	return Report{
		PagePath:       "/shop",
		PageTitle:      "Shop",
		ConnectionType: "4g",
		ViewportWidth:  1280,
		ViewportHeight: 800,
		Capabilities:   allCaps(),
		Entries: []Entry{
			{EntryType: EntryLCP, StartTime: 900, Element: "IMG"},
			{EntryType: EntryLCP, StartTime: 1800, Element: "H1"},
			{EntryType: EntryFirstInput, Name: "click", StartTime: 2000, ProcessingStart: 2040},
			{EntryType: EntryLayoutShift, Value: 0.05},
			{EntryType: EntryLayoutShift, Value: 0.5, HadRecentInput: true},
			{EntryType: EntryLayoutShift, Value: 0.02},
			{EntryType: EntryResource, Name: "/hero.jpg", Duration: 250, InitiatorType: "img", TransferSize: 1024},
			{EntryType: EntryResource, Name: "/tiny.css", Duration: 100, InitiatorType: "link"},
			{EntryType: EntryMemory, UsedJSHeapSize: 1 << 20, TotalJSHeapSize: 2 << 20},
			{EntryType: EntryNetwork, Downlink: 10, EffectiveType: "4g", RTT: 50},
		},
	}
}

func byName(metrics []models.PerformanceMetric) map[string]models.PerformanceMetric {
	out := make(map[string]models.PerformanceMetric, len(metrics))
	for _, m := range metrics {
		out[m.MetricName] = m
	}
	return out
}

func TestSampler_Bounds(t *testing.T) {
	never := NewSampler(0, 1)
	always := NewSampler(1, 1)
	for i := 0; i < 1000; i++ {
		require.False(t, never.Sample())
		require.True(t, always.Sample())
	}
}

func TestSampler_SeedIsDeterministic(t *testing.T) {
	a := NewSampler(0.5, 42)
	b := NewSampler(0.5, 42)
	hits := 0
	for i := 0; i < 1000; i++ {
		got := a.Sample()
		require.Equal(t, got, b.Sample())
		if got {
			hits++
		}
	}
	assert.InDelta(t, 500, hits, 100)
}

func TestMonitor_UnsampledSessionEnqueuesNothing(t *testing.T) {
	q := &sliceQueue{}
	m := NewMonitor(q, zerolog.Nop())

	sampler := NewSampler(0, 7)
	n, err := m.Observe(Scope{SessionID: "s1", Sampled: sampler.Sample()}, fullReport())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, q.items)
}

func TestMonitor_SampledSessionEnqueuesEveryEligibleMetric(t *testing.T) {
	q := &sliceQueue{}
	m := NewMonitor(q, zerolog.Nop())

	sampler := NewSampler(1, 7)
	n, err := m.Observe(Scope{SessionID: "s1", Sampled: sampler.Sample(), UserAgent: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0"}, fullReport())
	require.NoError(t, err)

	// FID, resource_load, memory_used, network_info, LCP, CLS.
	assert.Equal(t, 6, n)
	require.Len(t, q.items, 6)
	for _, metric := range q.items {
		assert.Equal(t, "s1", metric.SessionID)
		assert.Equal(t, "/shop", metric.PagePath)
		assert.Equal(t, "desktop", metric.DeviceType)
		assert.Equal(t, "Chrome", metric.Browser)
		assert.Equal(t, "4g", metric.ConnectionType)
		assert.NotEmpty(t, metric.MetricID)
	}
}

func TestMetrics_CoreWebVitals(t *testing.T) {
	got := byName(Metrics(fullReport()))

	lcp := got["LCP"]
	assert.Equal(t, models.MetricTypeCoreWebVitals, lcp.MetricType)
	assert.Equal(t, 1800.0, lcp.MetricValue)
	assert.Equal(t, "H1", lcp.AdditionalData["element"])

	assert.Equal(t, 40.0, got["FID"].MetricValue)

	cls := got["CLS"]
	assert.InDelta(t, 0.07, cls.MetricValue, 1e-9)
	assert.Equal(t, "score", cls.MetricUnit)

	res := got["resource_load"]
	assert.Equal(t, 250.0, res.MetricValue)
	assert.Equal(t, "/hero.jpg", res.AdditionalData["resourceUrl"])
}

func TestMetrics_SkipsMissingCapabilities(t *testing.T) {
	r := fullReport()
	r.Capabilities = Capabilities{}
	assert.Empty(t, Metrics(r))

	r.Capabilities = Capabilities{Memory: true}
	got := Metrics(r)
	require.Len(t, got, 1)
	assert.Equal(t, "memory_used", got[0].MetricName)
	assert.Equal(t, "bytes", got[0].MetricUnit)
}

func TestMetrics_Navigation(t *testing.T) {
	r := Report{
		Capabilities: Capabilities{Navigation: true},
		Entries: []Entry{{
			EntryType:                EntryNavigation,
			DomainLookupStart:        5,
			DomainLookupEnd:          25,
			ConnectStart:             25,
			ConnectEnd:               85,
			SecureConnectionStart:    45,
			RequestStart:             90,
			ResponseStart:            300,
			ResponseEnd:              400,
			DOMContentLoadedEventEnd: 1200,
			DOMComplete:              2000,
			LoadEventEnd:             2100,
		}},
	}
	got := byName(Metrics(r))

	assert.Equal(t, 20.0, got["DNS_lookup"].MetricValue)
	assert.Equal(t, 60.0, got["TCP_connection"].MetricValue)
	assert.Equal(t, 40.0, got["SSL_negotiation"].MetricValue)
	assert.Equal(t, 210.0, got["TTFB"].MetricValue)
	assert.Equal(t, 1200.0, got["DOM_content_loaded"].MetricValue)
	assert.Equal(t, 2100.0, got["page_load_complete"].MetricValue)
	assert.Equal(t, 1600.0, got["DOM_processing"].MetricValue)

	r.Entries[0].SecureConnectionStart = 0
	_, ok := byName(Metrics(r))["SSL_negotiation"]
	assert.False(t, ok)
}

func TestMonitor_PropagatesEnqueueError(t *testing.T) {
	closed := errors.New("closed")
	m := NewMonitor(&sliceQueue{err: closed}, zerolog.Nop())

	_, err := m.Observe(Scope{SessionID: "s1", Sampled: true}, fullReport())
	assert.ErrorIs(t, err, closed)
}

func TestApplyBudget(t *testing.T) {
	in := models.PerformanceInsight{MetricName: "LCP", P95: 3100}
	ApplyBudget(&in)
	require.NotNil(t, in.Budget)
	assert.Equal(t, 2500.0, *in.Budget)
	assert.True(t, in.OverBudget)

	in = models.PerformanceInsight{MetricName: "CLS", P95: 0.05}
	ApplyBudget(&in)
	assert.False(t, in.OverBudget)

	in = models.PerformanceInsight{MetricName: "DNS_lookup", P95: 900}
	ApplyBudget(&in)
	assert.Nil(t, in.Budget)
}
